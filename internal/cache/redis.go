package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient keeps per-client request counters for the rate limiter.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(ctx context.Context, addr string) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", addr, err)
	}

	return &RedisClient{client: client}, nil
}

// Hit increments the counter stored at key and returns its new value and
// the time left before it resets. The window starts on the first hit.
func (r *RedisClient) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return count, window, fmt.Errorf("failed to set expiry on %s: %w", key, err)
		}
		return count, window, nil
	}

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return count, 0, fmt.Errorf("failed to read ttl of %s: %w", key, err)
	}
	// a key left without expiry would block the client forever
	if ttl < 0 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return count, 0, fmt.Errorf("failed to restore expiry on %s: %w", key, err)
		}
		ttl = window
	}
	return count, ttl, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
