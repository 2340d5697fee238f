package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cute-chat/internal/domain/message"
	"cute-chat/internal/domain/user"
	cutechat_errors "cute-chat/pkg/errors"
	"cute-chat/pkg/logger"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type MongoMessageRepository struct {
	client      *mongo.Client
	messages    *mongo.Collection
	chats       *mongo.Collection
	attachments *mongo.Collection
	log         *logger.Logger
}

func NewMessageRepository(db *mongo.Database, l *logger.Logger) *MongoMessageRepository {
	if l == nil {
		l = logger.Nop()
	}
	return &MongoMessageRepository{
		client:      db.Client(),
		messages:    db.Collection(MessagesCollection),
		chats:       db.Collection(ChatsCollection),
		attachments: db.Collection(AttachmentsCollection),
		log:         l,
	}
}

type messageDoc struct {
	ID             any               `bson:"_id,omitempty"`
	MessageID      string            `bson:"messageId"`
	ConversationID string            `bson:"conversationId"`
	CreatedAt      any               `bson:"createdAt"`
	Content        string            `bson:"content,omitempty"`
	SenderID       string            `bson:"senderId"`
	SenderRef      *user.DocumentRef `bson:"senderRef,omitempty"`
	Image          string            `bson:"image,omitempty"`
	ReadByIDs      []string          `bson:"readByIds"`
	Metadata       map[string]any    `bson:"metadata,omitempty"`
}

type attachmentDoc struct {
	ID             bson.ObjectID `bson:"_id"`
	ConversationID string        `bson:"conversationId"`
	MessageDocID   string        `bson:"messageDocId"`
	URL            string        `bson:"url"`
	CreatedAt      time.Time     `bson:"createdAt"`
}

type lastMessageDoc struct {
	DocID     string    `bson:"docId"`
	MessageID string    `bson:"messageId"`
	Content   string    `bson:"content,omitempty"`
	Image     string    `bson:"image,omitempty"`
	SenderID  string    `bson:"senderId"`
	CreatedAt time.Time `bson:"createdAt"`
	ReadByIDs []string  `bson:"readByIds"`
}

func (d messageDoc) toDocument() (message.Document, error) {
	createdAt, err := normalizeTimestamp(d.CreatedAt)
	if err != nil {
		return message.Document{}, fmt.Errorf("message %s: %w", docIDString(d.ID), err)
	}
	readBy := d.ReadByIDs
	if readBy == nil {
		readBy = []string{}
	}
	return message.Document{
		DocID:          docIDString(d.ID),
		MessageID:      d.MessageID,
		ConversationID: d.ConversationID,
		CreatedAt:      createdAt,
		Content:        d.Content,
		SenderID:       d.SenderID,
		SenderRef:      d.SenderRef,
		Image:          d.Image,
		ReadByIDs:      readBy,
		Metadata:       metadataMap(d.Metadata),
	}, nil
}

// newestFirst is the single ordering used by live queries and pages.
var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

// find returns the decoded documents and how many documents the query matched before
// undecodable ones were skipped.
func (r *MongoMessageRepository) find(ctx context.Context, filter bson.D, limit int) ([]message.Document, int, error) {
	opts := options.Find().SetSort(newestFirst).SetLimit(int64(limit))
	cur, err := r.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var raw []messageDoc
	if err := cur.All(ctx, &raw); err != nil {
		return nil, 0, err
	}
	return decodeMessages(raw, r.log), len(raw), nil
}

func decodeMessages(raw []messageDoc, l *logger.Logger) []message.Document {
	docs := make([]message.Document, 0, len(raw))
	for _, d := range raw {
		doc, err := d.toDocument()
		if err != nil {
			// one corrupt document must not hide the rest of the conversation
			l.Warnf("skipping message document: %v", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func (r *MongoMessageRepository) latest(ctx context.Context, conversationID string, limit int) ([]message.Document, int, error) {
	return r.find(ctx, bson.D{{Key: "conversationId", Value: conversationID}}, limit)
}

// changeEvent is the part of a change stream event needed to scope deletes.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID any `bson:"_id"`
	} `bson:"documentKey"`
}

// liveWindow holds the document ids of the last emitted snapshot. Deletes carry no
// conversation id, so a delete only matters when it removes one of these.
type liveWindow map[string]struct{}

func newLiveWindow(docs []message.Document) liveWindow {
	w := make(liveWindow, len(docs))
	for _, d := range docs {
		w[d.DocID] = struct{}{}
	}
	return w
}

func (w liveWindow) affectedBy(event changeEvent) bool {
	if event.OperationType != "delete" {
		return true
	}
	_, ok := w[docIDString(event.DocumentKey.ID)]
	return ok
}

func (r *MongoMessageRepository) Subscribe(ctx context.Context, conversationID string, limit int, onNext SnapshotFunc, onError ErrorFunc) (CancelFunc, error) {
	if onNext == nil {
		return nil, cutechat_errors.ErrInvalidInput
	}
	if onError == nil {
		onError = func(error) {}
	}

	ctx, cancel := context.WithCancel(ctx)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "fullDocument.conversationId", Value: conversationID}},
			bson.D{{Key: "operationType", Value: "delete"}},
		}}}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	// The stream is opened before the first read so no write can fall between them.
	stream, err := r.messages.Watch(ctx, pipeline, opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch messages: %w", err)
	}

	go func() {
		defer stream.Close(context.Background())

		window := liveWindow{}
		emit := func() {
			docs, matched, err := r.latest(ctx, conversationID, limit)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				onError(err)
				return
			}
			window = newLiveWindow(docs)
			onNext(docs, matched >= limit)
		}
		affected := func() bool {
			var event changeEvent
			if err := stream.Decode(&event); err != nil {
				return true
			}
			return window.affectedBy(event)
		}

		emit()
		for stream.Next(ctx) {
			// collapse bursts into a single snapshot
			dirty := affected()
			for stream.TryNext(ctx) {
				if affected() {
					dirty = true
				}
			}
			if dirty {
				emit()
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			onError(err)
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func (r *MongoMessageRepository) ListBefore(ctx context.Context, conversationID string, cursor message.Cursor, limit int) ([]message.Document, error) {
	filter := bson.D{
		{Key: "conversationId", Value: conversationID},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "createdAt", Value: bson.D{{Key: "$lt", Value: cursor.CreatedAt}}}},
			bson.D{
				{Key: "createdAt", Value: cursor.CreatedAt},
				{Key: "_id", Value: bson.D{{Key: "$lt", Value: docIDValue(cursor.DocID)}}},
			},
		}},
	}
	docs, _, err := r.find(ctx, filter, limit)
	return docs, err
}

func (r *MongoMessageRepository) FirstAttachment(ctx context.Context, conversationID, docID string) (message.Attachment, error) {
	filter := bson.D{
		{Key: "conversationId", Value: conversationID},
		{Key: "messageDocId", Value: docID},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	var a attachmentDoc
	if err := r.attachments.FindOne(ctx, filter, opts).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return message.Attachment{}, cutechat_errors.ErrNotFound
		}
		return message.Attachment{}, err
	}
	return message.Attachment{
		ID:             a.ID.Hex(),
		ConversationID: a.ConversationID,
		MessageDocID:   a.MessageDocID,
		URL:            a.URL,
		CreatedAt:      a.CreatedAt,
	}, nil
}

func (r *MongoMessageRepository) MarkRead(ctx context.Context, conversationID string, docIDs []string, viewerID string) error {
	if len(docIDs) == 0 {
		return nil
	}
	filter := bson.D{
		{Key: "conversationId", Value: conversationID},
		{Key: "_id", Value: bson.D{{Key: "$in", Value: docIDValues(docIDs)}}},
	}
	update := bson.D{{Key: "$addToSet", Value: bson.D{{Key: "readByIds", Value: viewerID}}}}
	_, err := r.messages.UpdateMany(ctx, filter, update)
	return err
}

func (r *MongoMessageRepository) Send(ctx context.Context, conversationID string, doc message.Document, attachment *message.Attachment) (string, error) {
	oid := bson.NewObjectID()
	readBy := doc.ReadByIDs
	if readBy == nil {
		readBy = []string{}
	}
	record := messageDoc{
		ID:             oid,
		MessageID:      doc.MessageID,
		ConversationID: conversationID,
		CreatedAt:      doc.CreatedAt,
		Content:        doc.Content,
		SenderID:       doc.SenderID,
		SenderRef:      doc.SenderRef,
		Image:          doc.Image,
		ReadByIDs:      readBy,
		Metadata:       doc.Metadata,
	}
	last := lastMessageDoc{
		DocID:     oid.Hex(),
		MessageID: doc.MessageID,
		Content:   doc.Content,
		Image:     doc.Image,
		SenderID:  doc.SenderID,
		CreatedAt: doc.CreatedAt,
		ReadByIDs: readBy,
	}

	session, err := r.client.StartSession()
	if err != nil {
		return "", err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		if _, err := r.messages.InsertOne(ctx, record); err != nil {
			return nil, err
		}
		if attachment != nil {
			a := attachmentDoc{
				ID:             bson.NewObjectID(),
				ConversationID: conversationID,
				MessageDocID:   oid.Hex(),
				URL:            attachment.URL,
				CreatedAt:      doc.CreatedAt,
			}
			if _, err := r.attachments.InsertOne(ctx, a); err != nil {
				return nil, err
			}
		}
		update := bson.D{{Key: "$set", Value: bson.D{
			{Key: "lastMessage", Value: last},
			{Key: "updatedAt", Value: time.Now().UTC()},
		}}}
		_, err := r.chats.UpdateOne(ctx, bson.D{{Key: "_id", Value: conversationID}}, update, options.UpdateOne().SetUpsert(true))
		return nil, err
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// a retry of a write that already landed
			existing, findErr := r.findByMessageID(ctx, conversationID, doc.MessageID)
			if findErr != nil {
				return "", findErr
			}
			return existing, cutechat_errors.ErrAlreadyExists
		}
		return "", err
	}
	return oid.Hex(), nil
}

func (r *MongoMessageRepository) findByMessageID(ctx context.Context, conversationID, messageID string) (string, error) {
	filter := bson.D{
		{Key: "conversationId", Value: conversationID},
		{Key: "messageId", Value: messageID},
	}
	var d messageDoc
	if err := r.messages.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", cutechat_errors.ErrNotFound
		}
		return "", err
	}
	return docIDString(d.ID), nil
}
