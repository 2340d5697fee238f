package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publisher fans events out to every instance subscribed to a channel.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}
