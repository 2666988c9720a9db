package fetch

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between consecutive requests
// issued through one client. It is a fixed-interval throttle keyed on
// the last dispatch time, not a token bucket: each call sleeps for
// whatever remains of the interval since the previous dispatch.
//
// Limiters are constructed per client so tests (and parallel scrapers
// targeting unrelated hosts) can hold independent instances.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewLimiter creates a limiter with the given minimum inter-request
// interval. A zero or negative interval disables throttling.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Wait blocks until the interval since the last dispatch has elapsed,
// then records the new dispatch time. The first call never blocks.
// Returns early with the context's error if ctx is cancelled while
// waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() && l.interval > 0 {
		if remaining := l.interval - time.Since(l.last); remaining > 0 {
			timer := time.NewTimer(remaining)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	l.last = time.Now()
	return nil
}
