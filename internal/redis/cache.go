package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cute-chat/internal/domain/user"

	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - user:{collection}:{id} - sender profile resolved from a senderRef

// CacheConfig contains configuration for caching
type CacheConfig struct {
	UserTTL time.Duration // TTL for sender profiles (default 5m)
}

// DefaultCacheConfig returns sensible defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{UserTTL: 5 * time.Minute}
}

// CacheStore handles caching in Redis
type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

// NewCacheStore creates a new cache store
func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	if config.UserTTL <= 0 {
		config.UserTTL = DefaultCacheConfig().UserTTL
	}
	return &CacheStore{
		client: client,
		config: config,
	}
}

func userKey(ref user.DocumentRef) string {
	collection := ref.Collection
	if collection == "" {
		collection = user.UsersCollection
	}
	return fmt.Sprintf("user:%s:%s", collection, ref.ID)
}

// GetUser retrieves a sender from cache
func (c *CacheStore) GetUser(ctx context.Context, ref user.DocumentRef) (*user.Ref, error) {
	data, err := c.client.Get(ctx, userKey(ref)).Result()
	if err == goredis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}

	var u user.Ref
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUser stores a sender in cache
func (c *CacheStore) SetUser(ctx context.Context, ref user.DocumentRef, u user.Ref) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, userKey(ref), data, c.config.UserTTL).Err()
}

