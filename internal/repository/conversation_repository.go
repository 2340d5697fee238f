package repository

import (
	"context"
	"errors"
	"time"

	"cute-chat/internal/domain/conversation"
	cutechat_errors "cute-chat/pkg/errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type MongoConversationRepository struct {
	chats *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *MongoConversationRepository {
	return &MongoConversationRepository{chats: db.Collection(ChatsCollection)}
}

type summaryDoc struct {
	ID          string          `bson:"_id"`
	LastMessage *lastMessageDoc `bson:"lastMessage,omitempty"`
	UpdatedAt   time.Time       `bson:"updatedAt"`
}

func (r *MongoConversationRepository) GetSummary(ctx context.Context, conversationID string) (conversation.Summary, error) {
	var d summaryDoc
	if err := r.chats.FindOne(ctx, bson.D{{Key: "_id", Value: conversationID}}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return conversation.Summary{}, cutechat_errors.ErrNotFound
		}
		return conversation.Summary{}, err
	}

	summary := conversation.Summary{ID: d.ID, UpdatedAt: d.UpdatedAt}
	if d.LastMessage != nil {
		summary.LastMessage = &conversation.LastMessage{
			DocID:     d.LastMessage.DocID,
			MessageID: d.LastMessage.MessageID,
			Content:   d.LastMessage.Content,
			Image:     d.LastMessage.Image,
			SenderID:  d.LastMessage.SenderID,
			CreatedAt: d.LastMessage.CreatedAt,
			ReadByIDs: d.LastMessage.ReadByIDs,
		}
	}
	return summary, nil
}

func (r *MongoConversationRepository) MarkLastMessageRead(ctx context.Context, conversationID, viewerID string) error {
	filter := bson.D{
		{Key: "_id", Value: conversationID},
		{Key: "lastMessage", Value: bson.D{{Key: "$exists", Value: true}}},
	}
	update := bson.D{{Key: "$addToSet", Value: bson.D{{Key: "lastMessage.readByIds", Value: viewerID}}}}
	res, err := r.chats.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return cutechat_errors.ErrNotFound
	}
	return nil
}
