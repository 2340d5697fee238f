package message

import "time"

// Attachment is an entry of a message's attachment sub-collection.
type Attachment struct {
	ID             string
	ConversationID string
	MessageDocID   string
	URL            string
	CreatedAt      time.Time
}
