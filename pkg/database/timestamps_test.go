package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestNonDateCreatedAt(t *testing.T) {
	raw, err := bson.MarshalExtJSON(nonDateCreatedAt(), false, false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"createdAt":{"$exists":true,"$not":{"$type":"date"}}}`, string(raw))
}

func TestCreatedAtToDate(t *testing.T) {
	pipeline := createdAtToDate()
	require.Len(t, pipeline, 1)

	raw, err := bson.MarshalExtJSON(pipeline[0], false, false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"$set":{"createdAt":{"$convert":{"input":"$createdAt","to":"date","onError":"$createdAt","onNull":"$createdAt"}}}}`, string(raw))
}
