package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{viewer_id}:sends - per-window outgoing message limit
// - ratelimit:{viewer_id}:uploads - per-window image upload limit

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	SendLimit    int           // Max sends per window
	SendWindow   time.Duration // Send rate limit window
	UploadLimit  int           // Max uploads per window
	UploadWindow time.Duration // Upload rate limit window
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		SendLimit:    60, // 60 messages per minute
		SendWindow:   60 * time.Second,
		UploadLimit:  10, // 10 images per minute
		UploadWindow: 60 * time.Second,
	}
}

// RateLimiter counts actions per viewer in fixed Redis windows.
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool          // Whether the action is allowed
	Remaining int           // Remaining actions in the window
	ResetIn   time.Duration // Time until the window resets
	Limit     int           // The limit for this action
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// AllowSend checks if a viewer can send another message
func (r *RateLimiter) AllowSend(ctx context.Context, viewerID string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, sendKey(viewerID), r.config.SendLimit, r.config.SendWindow)
}

// AllowUpload checks if a viewer can upload another image
func (r *RateLimiter) AllowUpload(ctx context.Context, viewerID string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, uploadKey(viewerID), r.config.UploadLimit, r.config.UploadWindow)
}

// ResetViewer clears every limit of a viewer.
func (r *RateLimiter) ResetViewer(ctx context.Context, viewerID string) error {
	return r.client.Del(ctx, sendKey(viewerID), uploadKey(viewerID)).Err()
}

func sendKey(viewerID string) string {
	return fmt.Sprintf("ratelimit:%s:sends", viewerID)
}

func uploadKey(viewerID string) string {
	return fmt.Sprintf("ratelimit:%s:uploads", viewerID)
}

// The window starts on the first counted action; INCR and EXPIRE run atomically.
var limitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if current == 0 then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	end
	return {0, 0, ttl}
`)

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := limitScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	return &RateLimitResult{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetIn:   time.Duration(result[2]) * time.Second,
		Limit:     limit,
	}, nil
}
