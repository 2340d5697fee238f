package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cute-chat/pkg/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collections lists every collection the service reads or writes.
var Collections = []string{"messages", "chats", "attachments", "users"}

// SeedConfig holds configuration for seeding a development database
type SeedConfig struct {
	ConversationID string
	UserCount      int
	MessageCount   int
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{
		ConversationID: "demo",
		UserCount:      3,
		MessageCount:   45,
	}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	ConversationID string
	UserIDs        []string
	Messages       int
}

var seedNames = []string{"Alice", "Bob", "Carol", "Dave", "Erin", "Frank"}

// Seed writes users and one conversation with alternating messages. Message ids are
// derived from the position so running it twice fails on the unique index instead of
// duplicating history.
func Seed(ctx context.Context, db *mongo.Database, cfg *SeedConfig, l *logger.Logger) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	if cfg.UserCount < 1 || cfg.UserCount > len(seedNames) {
		return nil, fmt.Errorf("user count must be between 1 and %d", len(seedNames))
	}

	result := &SeedResult{ConversationID: cfg.ConversationID}
	l.Infof("Starting database seeding...")

	users := db.Collection("users")
	for _, name := range seedNames[:cfg.UserCount] {
		id := fmt.Sprintf("user-%s", strings.ToLower(name))
		doc := bson.M{
			"name":     name,
			"username": strings.ToLower(name),
			"avatar":   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", id),
		}
		if _, err := users.UpdateByID(ctx, id, bson.M{"$set": doc}, upsert()); err != nil {
			return nil, fmt.Errorf("failed to seed user %s: %w", name, err)
		}
		result.UserIDs = append(result.UserIDs, id)
	}

	start := time.Now().Add(-time.Duration(cfg.MessageCount) * time.Minute).UTC().Truncate(time.Millisecond)
	docs := make([]any, 0, cfg.MessageCount)
	var last bson.M
	for i := 0; i < cfg.MessageCount; i++ {
		sender := result.UserIDs[i%len(result.UserIDs)]
		last = bson.M{
			"_id":            bson.NewObjectID(),
			"messageId":      uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", cfg.ConversationID, i))).String(),
			"conversationId": cfg.ConversationID,
			"createdAt":      start.Add(time.Duration(i) * time.Minute),
			"content":        fmt.Sprintf("Message #%d", i+1),
			"senderId":       sender,
			"senderRef":      bson.M{"collection": "users", "id": sender},
			"readByIds":      []string{sender},
		}
		docs = append(docs, last)
	}
	if len(docs) > 0 {
		if _, err := db.Collection("messages").InsertMany(ctx, docs); err != nil {
			return nil, fmt.Errorf("failed to seed messages: %w", err)
		}
		summary := bson.M{
			"lastMessage": bson.M{
				"docId":     last["_id"].(bson.ObjectID).Hex(),
				"messageId": last["messageId"],
				"content":   last["content"],
				"senderId":  last["senderId"],
				"createdAt": last["createdAt"],
				"readByIds": last["readByIds"],
			},
			"updatedAt": time.Now().UTC(),
		}
		if _, err := db.Collection("chats").UpdateByID(ctx, cfg.ConversationID, bson.M{"$set": summary}, upsert()); err != nil {
			return nil, fmt.Errorf("failed to seed conversation summary: %w", err)
		}
	}
	result.Messages = len(docs)

	l.Infof("Database seeding completed successfully!")
	return result, nil
}

// CollectionCounts reports the number of documents per collection.
func CollectionCounts(ctx context.Context, db *mongo.Database) (map[string]int64, error) {
	counts := make(map[string]int64, len(Collections))
	for _, name := range Collections {
		n, err := db.Collection(name).CountDocuments(ctx, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}

// Truncate removes every document but keeps collections and their indexes.
func Truncate(ctx context.Context, db *mongo.Database) error {
	for _, name := range Collections {
		if _, err := db.Collection(name).DeleteMany(ctx, bson.D{}); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", name, err)
		}
	}
	return nil
}

func upsert() *options.UpdateOneOptionsBuilder {
	return options.UpdateOne().SetUpsert(true)
}
