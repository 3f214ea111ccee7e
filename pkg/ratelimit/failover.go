package ratelimit

import (
	"context"

	"go.uber.org/zap"
)

// FailoverLimiter consults primary and falls back to a local limiter when the
// primary store is unreachable, so an outage never lifts the limits.
type FailoverLimiter struct {
	primary  Limiter
	fallback Limiter
	logger   *zap.Logger
}

// NewFailoverLimiter constructs a FailoverLimiter.
func NewFailoverLimiter(primary, fallback Limiter, logger *zap.Logger) *FailoverLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FailoverLimiter{primary: primary, fallback: fallback, logger: logger}
}

// Allow implements Limiter.
func (f *FailoverLimiter) Allow(ctx context.Context, key string, rule Rule) (Result, error) {
	res, err := f.primary.Allow(ctx, key, rule)
	if err == nil {
		return res, nil
	}
	f.logger.Warn("rate limit store unavailable, using local counters", zap.Error(err))
	return f.fallback.Allow(ctx, key, rule)
}
