package rate

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Limiter spaces out Discord API calls by a base interval with random jitter.
// Concurrent callers reserve consecutive slots, so they never share one.
type Limiter struct {
	mu          sync.Mutex
	nextSlot    time.Time
	minInterval time.Duration
	maxJitter   time.Duration
}

// New creates a rate limiter with base interval and jitter.
// For example, baseInterval=1s and jitter=200ms spaces calls between 800ms and 1200ms apart.
func New(baseInterval, jitter time.Duration) *Limiter {
	return &Limiter{
		nextSlot:    time.Now(),
		minInterval: baseInterval,
		maxJitter:   min(jitter, baseInterval),
	}
}

// WaitForNextSlot blocks until the caller's reserved slot arrives or ctx is done.
// A cancelled wait still consumes its slot.
func (r *Limiter) WaitForNextSlot(ctx context.Context) error {
	wait := r.reserve(time.Now())
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reserve books the next slot and returns how long the caller must wait for it.
func (r *Limiter) reserve(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := r.nextSlot
	if slot.Before(now) {
		slot = now
	}

	r.nextSlot = slot.Add(r.minInterval + r.jitter())

	return slot.Sub(now)
}

func (r *Limiter) jitter() time.Duration {
	if r.maxJitter <= 0 {
		return 0
	}

	return time.Duration(rand.Int64N(int64(r.maxJitter)*2)) - r.maxJitter //nolint:gosec // pacing only
}
