package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// TimestampReport is the outcome of NormalizeTimestamps.
type TimestampReport struct {
	Converted int64
	// Remaining counts documents whose createdAt could not be converted and still sort
	// outside the Date range.
	Remaining int64
}

// nonDateCreatedAt matches messages whose createdAt is stored as anything but a BSON Date:
// ISO-8601 strings, epoch milliseconds or BSON timestamps written by other clients.
func nonDateCreatedAt() bson.D {
	return bson.D{{Key: "createdAt", Value: bson.D{
		{Key: "$exists", Value: true},
		{Key: "$not", Value: bson.D{{Key: "$type", Value: "date"}}},
	}}}
}

// createdAtToDate rewrites createdAt in place. Values $convert cannot parse are left as
// they were so nothing is lost.
func createdAtToDate() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "createdAt", Value: bson.D{{Key: "$convert", Value: bson.D{
			{Key: "input", Value: "$createdAt"},
			{Key: "to", Value: "date"},
			{Key: "onError", Value: "$createdAt"},
			{Key: "onNull", Value: "$createdAt"},
		}}}}}}},
	}
}

// NormalizeTimestamps converts stored createdAt values to BSON Date. Range filters and
// the newest-first sort compare createdAt within one BSON type, so paging and the live
// window only see Date values correctly.
func NormalizeTimestamps(ctx context.Context, db *mongo.Database) (TimestampReport, error) {
	messages := db.Collection("messages")
	res, err := messages.UpdateMany(ctx, nonDateCreatedAt(), createdAtToDate())
	if err != nil {
		return TimestampReport{}, fmt.Errorf("failed to normalize message timestamps: %w", err)
	}
	remaining, err := messages.CountDocuments(ctx, nonDateCreatedAt())
	if err != nil {
		return TimestampReport{}, fmt.Errorf("failed to count message timestamps: %w", err)
	}
	return TimestampReport{Converted: res.ModifiedCount, Remaining: remaining}, nil
}
