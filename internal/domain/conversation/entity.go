package conversation

import "time"

// Summary is the chats/{conversationId} document.
type Summary struct {
	ID          string
	LastMessage *LastMessage
	UpdatedAt   time.Time
}

// LastMessage is the summary's pointer to the newest message.
type LastMessage struct {
	DocID     string
	MessageID string
	Content   string
	Image     string
	SenderID  string
	CreatedAt time.Time
	ReadByIDs []string
}

// ReadBy reports whether viewerID has read the last message. A summary without a last
// message counts as read.
func (s Summary) ReadBy(viewerID string) bool {
	if s.LastMessage == nil {
		return true
	}
	for _, id := range s.LastMessage.ReadByIDs {
		if id == viewerID {
			return true
		}
	}
	return false
}
