package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepInterval = time.Minute

type bucket struct {
	lim    *rate.Limiter
	rule   Rule
	seenAt time.Time
}

// MemoryLimiter is a process-local token bucket limiter.
type MemoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryLimiter constructs an empty MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

// Allow consumes one token for key when available.
func (m *MemoryLimiter) Allow(_ context.Context, key string, rule Rule) (Result, error) {
	if rule.Max <= 0 || rule.Window <= 0 {
		return Result{Allowed: true}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	b, ok := m.buckets[key]
	if !ok || b.rule != rule {
		b = &bucket{
			lim:  rate.NewLimiter(rate.Every(rule.Window/time.Duration(rule.Max)), rule.Max),
			rule: rule,
		}
		m.buckets[key] = b
	}
	b.seenAt = now

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return Result{Allowed: false, RetryAfter: rule.Window}, nil
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return Result{Allowed: false, RetryAfter: delay}, nil
	}

	remaining := int(b.lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining}, nil
}

// sweep drops buckets idle for longer than their window; a refilled bucket
// is indistinguishable from a new one.
func (m *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < sweepInterval {
		return
	}
	m.lastSweep = now
	for key, b := range m.buckets {
		if now.Sub(b.seenAt) > b.rule.Window {
			delete(m.buckets, key)
		}
	}
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
