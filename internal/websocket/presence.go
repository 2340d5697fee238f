package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"cute-chat/internal/redis"
	"cute-chat/internal/transport/httpdto"
	"cute-chat/pkg/logger"
)

// Presence records which viewers have a conversation open. Implemented by
// redis.PresenceStore.
type Presence interface {
	Join(ctx context.Context, conversationID, viewerID, clientID string) error
	Heartbeat(ctx context.Context, conversationID, viewerID, clientID string) error
	Leave(ctx context.Context, conversationID, viewerID, clientID string) error
}

// ViewerSubscriber delivers published viewer events. Implemented by redis.Subscriber.
type ViewerSubscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}

const presenceHeartbeat = 30 * time.Second

// trackPresence joins the conversation and heartbeats until ctx is done, then leaves.
// Presence failures are logged and never affect the connection.
func trackPresence(ctx context.Context, p Presence, client *Client, l *logger.Logger) {
	if err := p.Join(ctx, client.ConversationID, client.ViewerID, client.ID); err != nil {
		l.Warnf("presence join: %v", err)
	}

	ticker := time.NewTicker(presenceHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.Leave(leaveCtx, client.ConversationID, client.ViewerID, client.ID); err != nil {
				l.Warnf("presence leave: %v", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := p.Heartbeat(ctx, client.ConversationID, client.ViewerID, client.ID); err != nil {
				l.Warnf("presence heartbeat: %v", err)
			}
		}
	}
}

// RelayViewers forwards published viewer events to the hub's local connections. It
// resubscribes after a failure until ctx is done.
func RelayViewers(ctx context.Context, sub ViewerSubscriber, hub *Hub, l *logger.Logger) {
	if l == nil {
		l = logger.Nop()
	}
	handle := func(channel string, payload []byte) {
		relayViewersEvent(hub, channel, payload, l)
	}
	for {
		err := sub.Subscribe(ctx, []string{redis.ViewersChannelPrefix + "*"}, handle)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Warnf("viewer relay subscription: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func relayViewersEvent(hub *Hub, channel string, payload []byte, l *logger.Logger) {
	var event redis.ViewersEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		l.Warnf("malformed viewers event on %s: %v", channel, err)
		return
	}
	if event.ConversationID == "" {
		event.ConversationID = strings.TrimPrefix(channel, redis.ViewersChannelPrefix)
	}
	hub.Broadcast(event.ConversationID, httpdto.ViewersFrame(event.ViewerIDs))
}
