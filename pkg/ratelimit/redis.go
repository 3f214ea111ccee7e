package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every instance pointing
// at the same Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// Allow increments the window counter for key. INCR, the first-hit PEXPIRE
// and PTTL run in one MULTI/EXEC so a counter never outlives its window.
func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (Result, error) {
	if rule.Max <= 0 || rule.Window <= 0 {
		return Result{Allowed: true}, nil
	}

	fullKey := fmt.Sprintf("%s:%s", l.prefix, key)

	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fullKey)
		// go-redis has no PExpireNX helper.
		pipe.Do(ctx, "pexpire", fullKey, rule.Window.Milliseconds(), "NX")
		pttl = pipe.PTTL(ctx, fullKey)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit incr: %w", err)
	}

	count := incr.Val()
	ttl := pttl.Val()
	if ttl <= 0 {
		ttl = rule.Window
	}

	if count > int64(rule.Max) {
		return Result{Allowed: false, RetryAfter: ttl}, nil
	}
	return Result{Allowed: true, Remaining: rule.Max - int(count)}, nil
}

var _ Limiter = (*RedisLimiter)(nil)
var _ Limiter = (*MemoryLimiter)(nil)
