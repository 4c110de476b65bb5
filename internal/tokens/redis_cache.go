package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "morningai:blacklist:"

// RedisCache stores revoked JTIs as expiring keys
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a connected Redis client
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Mark(ctx context.Context, jti string, ttl time.Duration) error {
	return c.client.Set(ctx, keyPrefix+jti, "1", ttl).Err()
}

func (c *RedisCache) IsMarked(ctx context.Context, jti string) (bool, error) {
	err := c.client.Get(ctx, keyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
