package codes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rentgate/pkg/platform/sentinel"
)

const claimedCodeKeyPrefix = "rentgate:code:"

// RedisCache shares claimed codes between gateway instances. Codes are stored
// hashed and expire through the key TTL.
type RedisCache struct {
	client redis.UniversalClient
	window time.Duration
}

type RedisOption func(*RedisCache)

func WithRedisWindow(window time.Duration) RedisOption {
	return func(c *RedisCache) {
		if window > 0 {
			c.window = window
		}
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisCache {
	c := &RedisCache{client: client, window: DefaultWindow}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Claim uses SET NX so exactly one caller wins across instances.
func (c *RedisCache) Claim(ctx context.Context, code string) error {
	sum := sha256.Sum256([]byte(code))
	key := claimedCodeKeyPrefix + hex.EncodeToString(sum[:])
	ok, err := c.client.SetNX(ctx, key, "1", c.window).Result()
	if err != nil {
		return fmt.Errorf("claim authorization code: %w", err)
	}
	if !ok {
		return fmt.Errorf("authorization code: %w", sentinel.ErrAlreadyUsed)
	}
	return nil
}
