package repository

import (
	"testing"
	"time"

	"cute-chat/internal/domain/message"
	"cute-chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestNormalizeTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 15, 250000000, time.UTC)
	ms := want.UnixMilli()

	tests := []struct {
		name  string
		value any
		want  time.Time
	}{
		{name: "time", value: want.In(time.FixedZone("X", 7200)), want: want},
		{name: "bson datetime", value: bson.NewDateTimeFromTime(want), want: want},
		{name: "bson timestamp", value: bson.Timestamp{T: uint32(want.Unix())}, want: want.Truncate(time.Second)},
		{name: "int64 millis", value: ms, want: want},
		{name: "int32 millis", value: int32(1000), want: time.UnixMilli(1000).UTC()},
		{name: "int millis", value: int(ms), want: want},
		{name: "float millis", value: float64(ms), want: want},
		{name: "rfc3339", value: "2024-03-01T12:30:15.25Z", want: want},
		{name: "offset", value: "2024-03-01T14:30:15.250+02:00", want: want},
		{name: "numeric string", value: "1000", want: time.UnixMilli(1000).UTC()},
		{name: "date only", value: "2024-03-01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeTimestamp(tt.value)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestNormalizeTimestamp_Invalid(t *testing.T) {
	for _, value := range []any{nil, "yesterday", true, []byte("x")} {
		_, err := normalizeTimestamp(value)
		assert.Error(t, err, "%v", value)
	}
}

func TestDocIDRoundTrip(t *testing.T) {
	oid := bson.NewObjectID()
	assert.Equal(t, oid.Hex(), docIDString(oid))
	assert.Equal(t, oid, docIDValue(oid.Hex()))

	assert.Equal(t, "custom-id", docIDString("custom-id"))
	assert.Equal(t, "custom-id", docIDValue("custom-id"))
	assert.Equal(t, "", docIDString(nil))
	assert.Equal(t, "42", docIDString(int32(42)))

	assert.Equal(t, bson.A{oid, "x"}, docIDValues([]string{oid.Hex(), "x"}))
}

func TestMetadataMap(t *testing.T) {
	assert.Nil(t, metadataMap(nil))

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	got := metadataMap(map[string]any{
		"reply": bson.D{{Key: "to", Value: "m1"}},
		"tags":  bson.A{"a", bson.M{"b": int32(1)}},
		"at":    bson.NewDateTimeFromTime(at),
		"n":     3,
	})

	assert.Equal(t, map[string]any{"to": "m1"}, got["reply"])
	assert.Equal(t, []any{"a", map[string]any{"b": int32(1)}}, got["tags"])
	assert.Equal(t, at, got["at"])
	assert.Equal(t, 3, got["n"])
}

func TestDecodeMessages_SkipsCorruptDocuments(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := []messageDoc{
		{ID: "d2", MessageID: "m2", CreatedAt: bson.NewDateTimeFromTime(at)},
		{ID: "d1", MessageID: "m1", CreatedAt: "yesterday"},
		{ID: "d0", MessageID: "m0", CreatedAt: at.Add(-time.Minute)},
	}

	docs := decodeMessages(raw, logger.Nop())
	require.Len(t, docs, 2)
	assert.Equal(t, "m2", docs[0].MessageID)
	assert.Equal(t, "m0", docs[1].MessageID)
	assert.Equal(t, []string{}, docs[1].ReadByIDs)
}

func TestLiveWindow_ScopesDeletes(t *testing.T) {
	oid := bson.NewObjectID()
	window := newLiveWindow([]message.Document{{DocID: oid.Hex()}, {DocID: "d1"}})

	deleted := func(id any) changeEvent {
		var e changeEvent
		e.OperationType = "delete"
		e.DocumentKey.ID = id
		return e
	}
	assert.True(t, window.affectedBy(deleted(oid)))
	assert.True(t, window.affectedBy(deleted("d1")))
	assert.False(t, window.affectedBy(deleted(bson.NewObjectID())), "delete elsewhere in the collection")
	assert.True(t, window.affectedBy(changeEvent{OperationType: "insert"}))
	assert.True(t, window.affectedBy(changeEvent{OperationType: "update"}))
	assert.False(t, liveWindow{}.affectedBy(deleted("d1")))
}
