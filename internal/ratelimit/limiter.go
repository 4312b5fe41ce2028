package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrRateLimited is returned when a key has exhausted its window allowance.
var ErrRateLimited = errors.New("rate limited")

// Counter is a keyed counter with fixed-window semantics: the first
// increment of a key opens its window, and the count resets once the window
// elapses. Increments must be atomic across concurrent callers of the same
// key.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter bounds request frequency per key for one endpoint class.
type Limiter struct {
	counter Counter
	limit   int
	window  time.Duration
}

// New creates a limiter allowing limit requests per key per window.
func New(counter Counter, limit int, window time.Duration) *Limiter {
	return &Limiter{counter: counter, limit: limit, window: window}
}

// TryAcquire counts a request against the key. It returns ErrRateLimited
// once the window allowance is exceeded; counter failures are propagated.
func (l *Limiter) TryAcquire(ctx context.Context, key string) error {
	count, err := l.counter.Incr(ctx, key, l.window)
	if err != nil {
		return err
	}
	if count > int64(l.limit) {
		return ErrRateLimited
	}
	return nil
}
