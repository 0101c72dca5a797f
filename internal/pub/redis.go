package pub

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type redisPub struct{ cli *redis.Client }

// NewRedis publishes to Redis pub/sub channels.
func NewRedis(c *redis.Client) *redisPub { return &redisPub{cli: c} }

func (r *redisPub) PublishRaw(ctx context.Context, channel string, payload []byte) error {
	return r.cli.Publish(ctx, channel, payload).Err()
}
