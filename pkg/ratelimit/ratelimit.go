// Package ratelimit provides per-key request counters shared by the
// authorization gate. Keys are opaque; callers compose them from the client
// address and route class.
package ratelimit

import (
	"context"
	"time"
)

// Rule is a request budget: at most Max requests per Window.
type Rule struct {
	Max    int
	Window time.Duration
}

// Result reports the outcome of a single Allow call.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests per key. Implementations must be safe for
// concurrent use and must never admit more than Rule.Max requests for one
// key inside a window.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Result, error)
}

// RetryAfterSeconds rounds a wait up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
