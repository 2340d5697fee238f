package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ViewersEvent is published whenever the set of viewers of a conversation changes.
type ViewersEvent struct {
	ConversationID string    `json:"conversation_id"`
	ViewerIDs      []string  `json:"viewer_ids"`
	At             time.Time `json:"at"`
}

// PresenceStore tracks which viewers have a conversation open. A viewer with several
// connections stays present until the last one leaves.
type PresenceStore struct {
	client    *goredis.Client
	publisher *Publisher
	ttl       time.Duration
}

// Redis key prefixes for presence
const (
	presenceKeyPrefix     = "presence:conversation:" // Sorted set of viewer/client pairs scored by heartbeat
	ViewersChannelPrefix  = "channel:viewers:"
	presenceMemberDivider = "|"
)

func NewPresenceStore(client *goredis.Client, publisher *Publisher, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 2 * time.Minute
	}
	return &PresenceStore{client: client, publisher: publisher, ttl: ttl}
}

func presenceKey(conversationID string) string {
	return presenceKeyPrefix + conversationID
}

// ViewersChannel is the pub/sub channel carrying ViewersEvent for a conversation.
func ViewersChannel(conversationID string) string {
	return ViewersChannelPrefix + conversationID
}

func presenceMember(viewerID, clientID string) string {
	return viewerID + presenceMemberDivider + clientID
}

// Join records a connection of viewerID to the conversation and publishes the new
// viewer set.
func (p *PresenceStore) Join(ctx context.Context, conversationID, viewerID, clientID string) error {
	if err := p.touch(ctx, conversationID, viewerID, clientID); err != nil {
		return err
	}
	return p.publish(ctx, conversationID)
}

// Heartbeat keeps a connection from being swept as stale.
func (p *PresenceStore) Heartbeat(ctx context.Context, conversationID, viewerID, clientID string) error {
	return p.touch(ctx, conversationID, viewerID, clientID)
}

func (p *PresenceStore) touch(ctx context.Context, conversationID, viewerID, clientID string) error {
	key := presenceKey(conversationID)
	pipe := p.client.Pipeline()
	pipe.ZAdd(ctx, key, goredis.Z{
		Score:  float64(time.Now().Unix()),
		Member: presenceMember(viewerID, clientID),
	})
	pipe.Expire(ctx, key, p.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Leave removes one connection and publishes the new viewer set.
func (p *PresenceStore) Leave(ctx context.Context, conversationID, viewerID, clientID string) error {
	if err := p.client.ZRem(ctx, presenceKey(conversationID), presenceMember(viewerID, clientID)).Err(); err != nil {
		return err
	}
	return p.publish(ctx, conversationID)
}

// Viewers returns the distinct viewers with a live connection, sorted. Connections whose
// last heartbeat is older than the store's ttl are swept first.
func (p *PresenceStore) Viewers(ctx context.Context, conversationID string) ([]string, error) {
	key := presenceKey(conversationID)
	cutoff := time.Now().Add(-p.ttl).Unix()
	if err := p.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", cutoff)).Err(); err != nil {
		return nil, err
	}
	members, err := p.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return viewerIDs(members), nil
}

func viewerIDs(members []string) []string {
	seen := make(map[string]struct{}, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		id, _, _ := strings.Cut(m, presenceMemberDivider)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *PresenceStore) publish(ctx context.Context, conversationID string) error {
	if p.publisher == nil {
		return nil
	}
	ids, err := p.Viewers(ctx, conversationID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ViewersEvent{ConversationID: conversationID, ViewerIDs: ids, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return p.publisher.Publish(ctx, ViewersChannel(conversationID), data)
}
