package message

import (
	"fmt"
	"strings"
	"time"

	"cute-chat/internal/domain/user"
	cutechat_errors "cute-chat/pkg/errors"

	"github.com/google/uuid"
)

// Draft is an outgoing message built by the UI before submission.
type Draft struct {
	ID        string
	CreatedAt time.Time
	Text      string
	Image     string
	Sender    user.Ref
	Metadata  map[string]any
}

// NewDraft builds a text draft from sender stamped with a fresh id and the current time.
func NewDraft(sender user.Ref, text string) Draft {
	return Draft{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Text:      text,
		Sender:    sender,
	}
}

// Validate checks the draft can be persisted. Errors wrap ErrInvalidDraft.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", cutechat_errors.ErrInvalidDraft)
	}
	if d.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", cutechat_errors.ErrInvalidDraft)
	}
	if strings.TrimSpace(d.Text) == "" && strings.TrimSpace(d.Image) == "" {
		return fmt.Errorf("%w: text or image is required", cutechat_errors.ErrInvalidDraft)
	}
	if strings.TrimSpace(d.Sender.ID) == "" {
		return fmt.Errorf("%w: sender id is required", cutechat_errors.ErrInvalidDraft)
	}
	return nil
}

// Document builds the durable form of the draft. The timestamp is normalized to UTC
// millisecond precision, which is what the backend stores.
func (d Draft) Document(conversationID string) Document {
	ref := user.RefTo(d.Sender.ID)
	return Document{
		MessageID:      d.ID,
		ConversationID: conversationID,
		CreatedAt:      NormalizeTime(d.CreatedAt),
		Content:        d.Text,
		SenderID:       d.Sender.ID,
		SenderRef:      &ref,
		Image:          d.Image,
		ReadByIDs:      []string{d.Sender.ID},
		Metadata:       d.Metadata,
	}
}

// Record builds the optimistic local record for the draft.
func (d Draft) Record() Record {
	sender := d.Sender
	return Record{
		ID:        d.ID,
		CreatedAt: NormalizeTime(d.CreatedAt),
		Text:      d.Text,
		Image:     d.Image,
		Sender:    &sender,
		ReadByIDs: ReadBySet([]string{d.Sender.ID}),
		Metadata:  d.Metadata,
		Delivery:  DeliveryPending,
	}
}

// NormalizeTime truncates to milliseconds in UTC.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
