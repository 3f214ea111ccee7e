package middleware

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const denialTrackerSize = 10000

// DenialTracker counts recent denials per actor so repeated attempts can be
// escalated. Counts expire after the window elapses without a new denial.
type DenialTracker struct {
	mu        sync.Mutex
	counts    *expirable.LRU[string, int]
	threshold int
}

// NewDenialTracker constructs a tracker. A threshold below one disables escalation.
func NewDenialTracker(threshold int, window time.Duration) *DenialTracker {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &DenialTracker{
		counts:    expirable.NewLRU[string, int](denialTrackerSize, nil, window),
		threshold: threshold,
	}
}

// Record adds one denial for key and reports whether the key reached the threshold.
func (t *DenialTracker) Record(key string) (int, bool) {
	if t == nil {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, _ := t.counts.Get(key)
	n++
	t.counts.Add(key, n)
	return n, t.threshold > 0 && n >= t.threshold
}
