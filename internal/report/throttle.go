package report

import (
	"sync"
	"time"
)

// Throttle rate-limits alerts per indicator name so a persistent condition
// does not page on every tick.
type Throttle struct {
	minInterval time.Duration
	now         func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewThrottle(minInterval time.Duration) *Throttle {
	return &Throttle{
		minInterval: minInterval,
		now:         time.Now,
		last:        map[string]time.Time{},
	}
}

// WithNow overrides the clock. For tests.
func (t *Throttle) WithNow(now func() time.Time) *Throttle {
	t.now = now
	return t
}

// Allow reports whether an alert for the indicator may fire now, and if so
// records the firing time.
func (t *Throttle) Allow(indicator string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if lastAt, ok := t.last[indicator]; ok && now.Sub(lastAt) < t.minInterval {
		return false
	}
	t.last[indicator] = now
	return true
}
