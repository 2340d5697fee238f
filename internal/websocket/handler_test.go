package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cute-chat/internal/domain/message"
	"cute-chat/internal/domain/user"
	"cute-chat/internal/middleware"
	"cute-chat/internal/redis"
	"cute-chat/internal/repository"
	"cute-chat/internal/transport/httpdto"
	"cute-chat/internal/view"
	cutechat_errors "cute-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryMessages struct {
	mu       sync.Mutex
	docs     []message.Document
	sendErrs []error
	sent     []message.Document
	onNext   repository.SnapshotFunc
}

func (m *memoryMessages) snapshot() []message.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]message.Document, len(m.docs))
	for i := range m.docs {
		out[len(m.docs)-1-i] = m.docs[i]
	}
	return out
}

func (m *memoryMessages) Subscribe(ctx context.Context, conversationID string, limit int, onNext repository.SnapshotFunc, onError repository.ErrorFunc) (repository.CancelFunc, error) {
	m.mu.Lock()
	m.onNext = onNext
	m.mu.Unlock()
	onNext(m.snapshot(), false)
	return func() {}, nil
}

func (m *memoryMessages) ListBefore(ctx context.Context, conversationID string, cursor message.Cursor, limit int) ([]message.Document, error) {
	return nil, nil
}

func (m *memoryMessages) FirstAttachment(ctx context.Context, conversationID, docID string) (message.Attachment, error) {
	return message.Attachment{}, cutechat_errors.ErrNotFound
}

func (m *memoryMessages) MarkRead(ctx context.Context, conversationID string, docIDs []string, viewerID string) error {
	return nil
}

func (m *memoryMessages) Send(ctx context.Context, conversationID string, doc message.Document, attachment *message.Attachment) (string, error) {
	m.mu.Lock()
	if len(m.sendErrs) > 0 {
		err := m.sendErrs[0]
		m.sendErrs = m.sendErrs[1:]
		m.mu.Unlock()
		return "", err
	}
	doc.DocID = "doc-" + doc.MessageID
	m.docs = append(m.docs, doc)
	m.sent = append(m.sent, doc)
	onNext := m.onNext
	m.mu.Unlock()

	onNext(m.snapshot(), false)
	return doc.DocID, nil
}

func (m *memoryMessages) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type memoryUsers map[string]user.Ref

func (u memoryUsers) Resolve(ctx context.Context, ref user.DocumentRef) (user.Ref, error) {
	if r, ok := u[ref.ID]; ok {
		return r, nil
	}
	return user.Ref{}, cutechat_errors.ErrNotFound
}

func seedDoc(id, sender string, at time.Time) message.Document {
	ref := user.RefTo(sender)
	return message.Document{DocID: "doc-" + id, MessageID: id, CreatedAt: at, Content: "text " + id, SenderID: sender, SenderRef: &ref, ReadByIDs: []string{sender}}
}

func newTestServer(t *testing.T, msgs *memoryMessages, configure ...func(*Handler)) (*httptest.Server, *Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	base := view.Options{
		Messages: msgs,
		Users:    memoryUsers{"u1": {ID: "u1", Name: "Alice"}, "u2": {ID: "u2", Name: "Bob"}},
	}
	h := NewHandler(base, hub, nil, nil, nil)
	for _, fn := range configure {
		fn(h)
	}

	r := gin.New()
	r.GET("/v1/conversations/:conversationId/ws", middleware.ViewerMiddleware(), h.Connect)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/conversations/c1/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(httpdto.ServerFrame) bool) httpdto.ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame httpdto.ServerFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if match(frame) {
			return frame
		}
	}
}

func hasMessage(frame httpdto.ServerFrame, id, status string) bool {
	if frame.Type != httpdto.FrameMessages {
		return false
	}
	for _, m := range frame.Messages {
		if m.ID == id && (status == "" || m.Status == status) {
			return true
		}
	}
	return false
}

func TestHandler_StreamsConversation(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := &memoryMessages{docs: []message.Document{
		seedDoc("m1", "u2", base),
		seedDoc("m2", "u1", base.Add(time.Minute)),
	}}
	srv, hub := newTestServer(t, msgs)
	conn := dial(t, srv, "viewer_id=u1&name=Alice")

	loading := readUntil(t, conn, func(f httpdto.ServerFrame) bool { return f.Type == httpdto.FrameLoading })
	require.NotNil(t, loading.Loading)
	assert.True(t, *loading.Loading)

	frame := readUntil(t, conn, func(f httpdto.ServerFrame) bool { return f.Type == httpdto.FrameMessages })
	require.Len(t, frame.Messages, 2)
	assert.Equal(t, "m2", frame.Messages[0].ID)
	assert.Equal(t, "m1", frame.Messages[1].ID)
	require.NotNil(t, frame.Messages[1].User)
	assert.Equal(t, "Bob", frame.Messages[1].User.Name)

	require.Eventually(t, func() bool { return hub.GetConversationViewerCount("c1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(httpdto.ClientFrame{Type: httpdto.FrameSend, ID: "m3", Text: "hello"}))
	readUntil(t, conn, func(f httpdto.ServerFrame) bool { return hasMessage(f, "m3", "pending") })
	readUntil(t, conn, func(f httpdto.ServerFrame) bool { return hasMessage(f, "m3", "confirmed") })
	assert.Equal(t, 1, msgs.sentCount())
}

func TestHandler_FailedSendCanBeCancelled(t *testing.T) {
	msgs := &memoryMessages{sendErrs: []error{errors.New("backend unavailable")}}
	srv, _ := newTestServer(t, msgs)
	conn := dial(t, srv, "viewer_id=u1")

	require.NoError(t, conn.WriteJSON(httpdto.ClientFrame{Type: httpdto.FrameSend, ID: "m1", Text: "hello"}))
	failed := readUntil(t, conn, func(f httpdto.ServerFrame) bool { return f.Type == httpdto.FrameSendFailed })
	assert.Equal(t, "m1", failed.DraftID)
	assert.Contains(t, failed.Error, "backend unavailable")

	require.NoError(t, conn.WriteJSON(httpdto.ClientFrame{Type: httpdto.FrameCancel, ID: "m1"}))
	readUntil(t, conn, func(f httpdto.ServerFrame) bool { return f.Type == httpdto.FrameMessages && len(f.Messages) == 0 })
	assert.Equal(t, 0, msgs.sentCount())
}

func TestHandler_FailedSendCanBeRetried(t *testing.T) {
	msgs := &memoryMessages{sendErrs: []error{errors.New("backend unavailable")}}
	srv, _ := newTestServer(t, msgs)
	conn := dial(t, srv, "viewer_id=u1")

	require.NoError(t, conn.WriteJSON(httpdto.ClientFrame{Type: httpdto.FrameSend, ID: "m1", Text: "hello"}))
	readUntil(t, conn, func(f httpdto.ServerFrame) bool { return f.Type == httpdto.FrameSendFailed })

	require.NoError(t, conn.WriteJSON(httpdto.ClientFrame{Type: httpdto.FrameRetry, ID: "m1"}))
	readUntil(t, conn, func(f httpdto.ServerFrame) bool { return hasMessage(f, "m1", "confirmed") })
	assert.Equal(t, 1, msgs.sentCount())
}

func TestHandler_InvalidFrames(t *testing.T) {
	srv, _ := newTestServer(t, &memoryMessages{})
	conn := dial(t, srv, "viewer_id=u1")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frame := readUntil(t, conn, func(f httpdto.ServerFrame) bool { return f.Type == httpdto.FrameError })
	assert.Equal(t, "INVALID_REQUEST", frame.Code)
}

func TestHandler_InvalidDraftIsDroppedSilently(t *testing.T) {
	msgs := &memoryMessages{}
	srv, _ := newTestServer(t, msgs)
	conn := dial(t, srv, "viewer_id=u1")
	readUntil(t, conn, func(f httpdto.ServerFrame) bool { return f.Type == httpdto.FrameMessages })

	require.NoError(t, conn.WriteJSON(httpdto.ClientFrame{Type: httpdto.FrameSend, ID: "m1", Text: "  "}))
	require.NoError(t, conn.WriteJSON(httpdto.ClientFrame{Type: httpdto.FrameSend, ID: "m2", Text: "hello"}))

	var seen []httpdto.ServerFrame
	readUntil(t, conn, func(f httpdto.ServerFrame) bool {
		seen = append(seen, f)
		return hasMessage(f, "m2", "confirmed")
	})
	for _, f := range seen {
		assert.NotEqual(t, httpdto.FrameError, f.Type)
		assert.False(t, hasMessage(f, "m1", ""), "invalid draft must never be rendered")
	}
	assert.Equal(t, 1, msgs.sentCount())
}

func TestHandler_RequiresViewer(t *testing.T) {
	srv, _ := newTestServer(t, &memoryMessages{})

	resp, err := http.Get(srv.URL + "/v1/conversations/c1/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type denyAfter struct {
	mu      sync.Mutex
	allowed int
	err     error
}

func (d *denyAfter) AllowSend(ctx context.Context, viewerID string) (*redis.RateLimitResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if d.allowed > 0 {
		d.allowed--
		return &redis.RateLimitResult{Allowed: true, Limit: 1}, nil
	}
	return &redis.RateLimitResult{Allowed: false, Limit: 1}, nil
}

func TestHandler_SendRateLimited(t *testing.T) {
	msgs := &memoryMessages{}
	srv, _ := newTestServer(t, msgs, func(h *Handler) { h.limiter = &denyAfter{allowed: 1} })
	conn := dial(t, srv, "viewer_id=u1")

	require.NoError(t, conn.WriteJSON(httpdto.ClientFrame{Type: httpdto.FrameSend, ID: "m1", Text: "one"}))
	readUntil(t, conn, func(f httpdto.ServerFrame) bool { return hasMessage(f, "m1", "confirmed") })

	require.NoError(t, conn.WriteJSON(httpdto.ClientFrame{Type: httpdto.FrameSend, ID: "m2", Text: "two"}))
	frame := readUntil(t, conn, func(f httpdto.ServerFrame) bool { return f.Type == httpdto.FrameError })
	assert.Equal(t, "RATE_LIMITED", frame.Code)
	assert.Equal(t, 1, msgs.sentCount())
}

func TestHandler_SendLimiterFailsOpen(t *testing.T) {
	msgs := &memoryMessages{}
	srv, _ := newTestServer(t, msgs, func(h *Handler) { h.limiter = &denyAfter{err: errors.New("redis down")} })
	conn := dial(t, srv, "viewer_id=u1")

	require.NoError(t, conn.WriteJSON(httpdto.ClientFrame{Type: httpdto.FrameSend, ID: "m1", Text: "one"}))
	readUntil(t, conn, func(f httpdto.ServerFrame) bool { return hasMessage(f, "m1", "confirmed") })
}
