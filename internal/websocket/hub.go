package websocket

import (
	"context"
	"sync"

	"cute-chat/internal/transport/httpdto"
)

// Hub tracks live connections per conversation and closes them all on shutdown.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client
	clients map[string]*Client

	// conversations maps conversation id to the clients viewing it
	conversations map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		conversations: make(map[string]map[*Client]struct{}),
		register:      make(chan *Client, 256),
		unregister:    make(chan *Client, 256),
		stopped:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. When ctx is done every remaining client is closed,
// which unmounts its view.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register adds a new client to the hub. After shutdown the client is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
		client.Close()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetConversationViewerCount returns the number of connections showing a conversation
func (h *Hub) GetConversationViewerCount(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conversations[conversationID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	if _, ok := h.conversations[client.ConversationID]; !ok {
		h.conversations[client.ConversationID] = make(map[*Client]struct{})
	}
	h.conversations[client.ConversationID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if viewers, ok := h.conversations[client.ConversationID]; ok {
		delete(viewers, client)
		if len(viewers) == 0 {
			delete(h.conversations, client.ConversationID)
		}
	}
	delete(h.clients, client.ID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.conversations = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for pending := true; pending; {
		select {
		case c := <-h.register:
			clients = append(clients, c)
		default:
			pending = false
		}
	}
	for _, c := range clients {
		c.Close()
	}
}

// Broadcast queues frame on every local connection to the conversation.
func (h *Hub) Broadcast(conversationID string, frame httpdto.ServerFrame) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.conversations[conversationID]))
	for c := range h.conversations[conversationID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.SendFrame(frame) {
			sent++
		}
	}
	return sent
}
