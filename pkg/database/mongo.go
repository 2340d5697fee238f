package database

import (
	"context"
	"fmt"
	"time"

	"cute-chat/config"
	"cute-chat/pkg/logger"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Connect opens the document store and verifies it answers a ping. Change streams and
// multi-document transactions need a replica set.
func Connect(ctx context.Context, cfg *config.Config, l *logger.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.MongoConnectTimeout)
	defer cancel()

	opts := options.Client().ApplyURI(cfg.MongoURI)
	if cfg.MongoUsername != "" && cfg.MongoPassword != "" {
		opts.SetAuth(options.Credential{
			Username: cfg.MongoUsername,
			Password: cfg.MongoPassword,
		})
	}
	opts.SetMaxPoolSize(100)
	opts.SetMinPoolSize(5)
	opts.SetMaxConnIdleTime(time.Hour)
	opts.SetServerSelectionTimeout(cfg.MongoConnectTimeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	l.Infof("Database connection established (%s)", cfg.MongoDB)
	return client, nil
}

// EnsureIndexes creates the indexes the view's queries rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	messages := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "conversationId", Value: 1}, {Key: "messageId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := db.Collection("messages").Indexes().CreateMany(ctx, messages); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	attachments := mongo.IndexModel{
		Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "messageDocId", Value: 1}, {Key: "createdAt", Value: 1}},
	}
	if _, err := db.Collection("attachments").Indexes().CreateOne(ctx, attachments); err != nil {
		return fmt.Errorf("failed to create attachment indexes: %w", err)
	}
	return nil
}

// HealthCheck pings the primary.
func HealthCheck(ctx context.Context, client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(ctx, nil)
}

// Close disconnects, waiting at most five seconds for in-use connections.
func Close(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}
