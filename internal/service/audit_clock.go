package service

import (
	"crypto/rand"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// monotonicClock hands out strictly increasing microsecond timestamps so
// records written by one process keep arrival order even when the wall
// clock stalls or steps back.
type monotonicClock struct {
	last atomic.Int64
	now  func() time.Time
}

func newMonotonicClock(now func() time.Time) *monotonicClock {
	if now == nil {
		now = time.Now
	}
	return &monotonicClock{now: now}
}

func (c *monotonicClock) Now() time.Time {
	for {
		candidate := c.now().UnixMicro()
		prev := c.last.Load()
		if candidate <= prev {
			candidate = prev + 1
		}
		if c.last.CompareAndSwap(prev, candidate) {
			return time.UnixMicro(candidate).UTC()
		}
	}
}

// idGenerator produces lexically sortable ULIDs.
type idGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newIDGenerator() *idGenerator {
	return &idGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *idGenerator) New(at time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(at), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
