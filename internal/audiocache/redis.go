package audiocache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/voxpal/pkg/provider/tts"
)

const (
	fieldData        = "data"
	fieldContentType = "ct"
)

// RedisCache stores audio as a redis hash with the fields data and ct.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the redis server at addr and pings it.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("audiocache: redis ping: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements [Cache].
func (c *RedisCache) Get(ctx context.Context, key string) (*tts.Audio, bool, error) {
	vals, err := c.client.HGetAll(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("audiocache: get %s: %w", key, err)
	}
	data, ok := vals[fieldData]
	if !ok || data == "" {
		return nil, false, nil
	}
	return &tts.Audio{Data: []byte(data), ContentType: vals[fieldContentType]}, true, nil
}

// Set implements [Cache].
func (c *RedisCache) Set(ctx context.Context, key string, audio *tts.Audio, ttl time.Duration) error {
	if audio == nil {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fieldData, audio.Data, fieldContentType, audio.ContentType)
		if ttl > 0 {
			p.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("audiocache: set %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection. It backs the readiness probe.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
