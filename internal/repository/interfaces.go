package repository

import (
	"context"

	"cute-chat/internal/domain/conversation"
	"cute-chat/internal/domain/message"
	"cute-chat/internal/domain/user"
)

// CancelFunc tears a subscription down. It is safe to call more than once.
type CancelFunc func()

// SnapshotFunc receives the full, newest-first result set of a live query. full reports
// whether the query hit its limit, counting stored documents that could not be decoded,
// so the snapshot may not reach the start of the conversation.
type SnapshotFunc func(docs []message.Document, full bool)

// ErrorFunc receives subscription delivery errors.
type ErrorFunc func(err error)

type MessageRepository interface {
	// Subscribe delivers the newest limit documents of the conversation, newest first,
	// once on start and again whenever the underlying documents change.
	Subscribe(ctx context.Context, conversationID string, limit int, onNext SnapshotFunc, onError ErrorFunc) (CancelFunc, error)
	// ListBefore returns up to limit documents strictly older than cursor, newest first.
	ListBefore(ctx context.Context, conversationID string, cursor message.Cursor, limit int) ([]message.Document, error)
	// FirstAttachment returns the oldest attachment of a message, or ErrNotFound.
	FirstAttachment(ctx context.Context, conversationID, docID string) (message.Attachment, error)
	// MarkRead adds viewerID to readByIds of every listed document in one write.
	MarkRead(ctx context.Context, conversationID string, docIDs []string, viewerID string) error
	// Send writes the message, its optional attachment and the summary's lastMessage
	// pointer atomically and returns the new document id.
	Send(ctx context.Context, conversationID string, doc message.Document, attachment *message.Attachment) (string, error)
}

type UserRepository interface {
	// Resolve dereferences a stored sender pointer. Missing documents yield ErrNotFound.
	Resolve(ctx context.Context, ref user.DocumentRef) (user.Ref, error)
}

type ConversationRepository interface {
	GetSummary(ctx context.Context, conversationID string) (conversation.Summary, error)
	MarkLastMessageRead(ctx context.Context, conversationID, viewerID string) error
}

// UserCache stores resolved senders across pages. GetUser returns nil, nil on a miss.
type UserCache interface {
	GetUser(ctx context.Context, ref user.DocumentRef) (*user.Ref, error)
	SetUser(ctx context.Context, ref user.DocumentRef, u user.Ref) error
}
