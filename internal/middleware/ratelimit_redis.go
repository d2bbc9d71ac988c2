package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter keeps fixed-window counters in Redis so that every instance
// behind a load balancer shares the same limits.
//
// Each key is an integer counter that expires with its window. The first
// increment in a window sets the expiry.
type RedisLimiter struct {
	client      *redis.Client
	prefix      string
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger
}

// NewRedisLimiter creates a limiter whose keys are namespaced by prefix.
func NewRedisLimiter(client *redis.Client, prefix string, maxAttempts int, window time.Duration, logger *slog.Logger) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
	}
}

func (l *RedisLimiter) key(k string) string {
	return "forgea:rl:" + l.prefix + ":" + k
}

// incr increments the counter and starts the window on the first hit.
func (l *RedisLimiter) incr(ctx context.Context, key string) (int64, error) {
	count, err := l.client.Incr(ctx, l.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis limiter incr: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, l.key(key), l.window).Err(); err != nil {
			return 0, fmt.Errorf("redis limiter expire: %w", err)
		}
	}

	return count, nil
}

// Allow counts an attempt and reports whether it is within the limit.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.incr(ctx, key)
	if err != nil {
		return false, err
	}
	return count <= int64(l.maxAttempts), nil
}

// Exceeded reads the counter without incrementing it.
func (l *RedisLimiter) Exceeded(ctx context.Context, key string) (bool, error) {
	raw, err := l.client.Get(ctx, l.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis limiter get: %w", err)
	}

	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("redis limiter counter %q: %w", raw, err)
	}
	return count >= int64(l.maxAttempts), nil
}

// RecordFailure counts an attempt without checking the limit.
func (l *RedisLimiter) RecordFailure(ctx context.Context, key string) error {
	_, err := l.incr(ctx, key)
	return err
}

// Reset deletes the counter.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("redis limiter del: %w", err)
	}
	return nil
}

// TimeUntilReset returns the remaining TTL of the counter.
func (l *RedisLimiter) TimeUntilReset(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.client.PTTL(ctx, l.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis limiter pttl: %w", err)
	}
	// Negative values mean no key or no expiry.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

var (
	_ Limiter = (*RateLimiter)(nil)
	_ Limiter = (*RedisLimiter)(nil)
)
