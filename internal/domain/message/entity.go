package message

import (
	"time"

	"cute-chat/internal/domain/user"
)

// Document is a message as stored in chats/{conversationId}/messages.
// CreatedAt is normalized on read regardless of how the backend encoded it.
type Document struct {
	DocID          string
	MessageID      string
	ConversationID string
	CreatedAt      time.Time
	Content        string
	SenderID       string
	SenderRef      *user.DocumentRef
	Image          string
	ReadByIDs      []string
	Metadata       map[string]any
}

// Record is the UI-facing message. Records are built from Documents by the view's
// translator, or from a Draft while the send is outstanding.
type Record struct {
	ID        string
	DocID     string // empty until the backend has the document
	CreatedAt time.Time
	Text      string
	Image     string
	Sender    *user.Ref
	IsSystem  bool
	ReadByIDs map[string]struct{}
	Metadata  map[string]any
	Delivery  DeliveryState
}

// ReadBy reports whether viewerID has a read receipt on the record.
func (r Record) ReadBy(viewerID string) bool {
	_, ok := r.ReadByIDs[viewerID]
	return ok
}

// ReadByList returns the receipt set as a slice (unordered).
func (r Record) ReadByList() []string {
	ids := make([]string, 0, len(r.ReadByIDs))
	for id := range r.ReadByIDs {
		ids = append(ids, id)
	}
	return ids
}

// Cursor points at the oldest document of the last loaded page.
type Cursor struct {
	DocID     string
	CreatedAt time.Time
}

// CursorOf returns a cursor to the last (oldest) document of a newest-first page,
// or nil when the page is empty.
func CursorOf(docs []Document) *Cursor {
	if len(docs) == 0 {
		return nil
	}
	last := docs[len(docs)-1]
	return &Cursor{DocID: last.DocID, CreatedAt: last.CreatedAt}
}

// ReadBySet builds a receipt set from a list of viewer ids.
func ReadBySet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}
