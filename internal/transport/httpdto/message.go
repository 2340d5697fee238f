package httpdto

import (
	"sort"
	"time"

	"cute-chat/internal/domain/message"
	"cute-chat/internal/domain/user"

	"github.com/google/uuid"
)

// Websocket frame types.
const (
	FrameMessages    = "messages"
	FrameLoading     = "loading"
	FrameSendFailed  = "send_failed"
	FrameError       = "error"
	FrameViewers     = "viewers"
	FrameSend        = "send"
	FrameLoadEarlier = "load_earlier"
	FrameRetry       = "retry"
	FrameCancel      = "cancel"
)

type UserDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// MessageDTO is one chat bubble as rendered by the client.
type MessageDTO struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	CreatedAt string         `json:"created_at"`
	Image     string         `json:"image,omitempty"`
	User      *UserDTO       `json:"user,omitempty"`
	System    bool           `json:"system,omitempty"`
	Status    string         `json:"status"`
	ReadBy    []string       `json:"read_by"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// BubbleRenderer converts a record to its wire form. Hosts swap it to customize bubbles.
type BubbleRenderer func(rec message.Record) MessageDTO

// DefaultBubble renders every field of the record.
func DefaultBubble(rec message.Record) MessageDTO {
	dto := MessageDTO{
		ID:        rec.ID,
		Text:      rec.Text,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		Image:     rec.Image,
		System:    rec.IsSystem,
		Status:    string(rec.Delivery),
		ReadBy:    rec.ReadByList(),
		Metadata:  rec.Metadata,
	}
	sort.Strings(dto.ReadBy)
	if rec.Sender != nil {
		dto.User = &UserDTO{
			ID:       rec.Sender.ID,
			Name:     rec.Sender.Name,
			Username: rec.Sender.Username,
			Avatar:   rec.Sender.Avatar,
		}
	}
	return dto
}

// RenderList renders a newest-first list with render, or DefaultBubble when nil.
func RenderList(records []message.Record, render BubbleRenderer) []MessageDTO {
	if render == nil {
		render = DefaultBubble
	}
	out := make([]MessageDTO, len(records))
	for i, r := range records {
		out[i] = render(r)
	}
	return out
}

// ServerFrame is pushed from the server to the rendering client.
type ServerFrame struct {
	Type       string       `json:"type"`
	Messages   []MessageDTO `json:"messages,omitempty"`
	HasEarlier *bool        `json:"has_earlier,omitempty"`
	Loading    *bool        `json:"loading,omitempty"`
	DraftID    string       `json:"draft_id,omitempty"`
	Error      string       `json:"error,omitempty"`
	Code       string       `json:"code,omitempty"`
	Viewers    []string     `json:"viewers,omitempty"`
}

func MessagesFrame(messages []MessageDTO, hasEarlier bool) ServerFrame {
	if messages == nil {
		messages = []MessageDTO{}
	}
	return ServerFrame{Type: FrameMessages, Messages: messages, HasEarlier: &hasEarlier}
}

func LoadingFrame(loading bool) ServerFrame {
	return ServerFrame{Type: FrameLoading, Loading: &loading}
}

// SendFailedFrame asks the client to offer retry or cancel for the draft.
func SendFailedFrame(draftID string, err error) ServerFrame {
	return ServerFrame{Type: FrameSendFailed, DraftID: draftID, Error: err.Error()}
}

func ErrorFrame(msg, code string) ServerFrame {
	return ServerFrame{Type: FrameError, Error: msg, Code: code}
}

// ViewersFrame lists who else has the conversation open.
func ViewersFrame(viewerIDs []string) ServerFrame {
	return ServerFrame{Type: FrameViewers, Viewers: viewerIDs}
}

// ClientFrame is received from the rendering client.
type ClientFrame struct {
	Type      string         `json:"type"`
	ID        string         `json:"id,omitempty"`
	Text      string         `json:"text,omitempty"`
	Image     string         `json:"image,omitempty"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Draft builds the outgoing draft of a send frame. Missing ids and timestamps are
// filled in; the sender is always the connection's viewer.
func (f ClientFrame) Draft(sender user.Ref, now time.Time) message.Draft {
	d := message.Draft{
		ID:        f.ID,
		CreatedAt: now,
		Text:      f.Text,
		Image:     f.Image,
		Sender:    sender,
		Metadata:  f.Metadata,
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if f.CreatedAt != nil && !f.CreatedAt.IsZero() {
		d.CreatedAt = *f.CreatedAt
	}
	return d
}
