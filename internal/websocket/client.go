package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"cute-chat/internal/transport/httpdto"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client represents a WebSocket client connection
type Client struct {
	ID             string          // Unique client ID
	ViewerID       string          // Host-supplied viewer id
	ConversationID string          // Conversation shown on this connection
	Conn           *websocket.Conn // WebSocket connection
	Send           chan []byte     // Outbound message channel

	mu        sync.Mutex // Protects conn writes
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, viewerID, conversationID string) *Client {
	return &Client{
		ID:             uuid.New().String(),
		ViewerID:       viewerID,
		ConversationID: conversationID,
		Conn:           conn,
		Send:           make(chan []byte, 256),
		done:           make(chan struct{}),
	}
}

// WriteLoop handles outbound messages from the Send channel
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg := <-c.Send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

// Close closes the WebSocket connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		_ = c.Conn.Close()
		c.mu.Unlock()
	})
}

// Done is closed once the connection has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// SendMessage queues a message (non-blocking). It reports false when the message was
// dropped because the buffer is full or the connection is gone.
func (c *Client) SendMessage(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// SendFrame encodes and queues a server frame.
func (c *Client) SendFrame(frame httpdto.ServerFrame) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		return false
	}
	return c.SendMessage(payload)
}
