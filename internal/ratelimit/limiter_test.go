package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterFixedWindow(t *testing.T) {
	counter := NewMemoryCounter()
	base := time.Now()
	counter.now = func() time.Time { return base }

	limiter := New(counter, 3, time.Hour)
	ctx := context.Background()

	t.Run("AllowsUpToLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.NoError(t, limiter.TryAcquire(ctx, "reset:1.2.3.4"))
		}
	})

	t.Run("RejectsOverLimit", func(t *testing.T) {
		err := limiter.TryAcquire(ctx, "reset:1.2.3.4")
		assert.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		assert.NoError(t, limiter.TryAcquire(ctx, "reset:5.6.7.8"))
	})

	t.Run("WindowElapsesFromFirstRequest", func(t *testing.T) {
		counter.now = func() time.Time { return base.Add(time.Hour) }
		assert.NoError(t, limiter.TryAcquire(ctx, "reset:1.2.3.4"))
	})
}

func TestMemoryCounterWindowAnchor(t *testing.T) {
	counter := NewMemoryCounter()
	base := time.Now()
	counter.now = func() time.Time { return base }
	ctx := context.Background()

	count, err := counter.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Still inside the window anchored at the first request
	counter.now = func() time.Time { return base.Add(59 * time.Second) }
	count, err = counter.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Window elapsed, count resets
	counter.now = func() time.Time { return base.Add(61 * time.Second) }
	count, err = counter.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryCounterConcurrent(t *testing.T) {
	counter := NewMemoryCounter()
	limiter := New(counter, 50, time.Hour)
	ctx := context.Background()

	results := make(chan error, 100)
	for i := 0; i < 100; i++ {
		go func() {
			results <- limiter.TryAcquire(ctx, "shared")
		}()
	}

	allowed, rejected := 0, 0
	for i := 0; i < 100; i++ {
		if err := <-results; err != nil {
			rejected++
		} else {
			allowed++
		}
	}
	assert.Equal(t, 50, allowed)
	assert.Equal(t, 50, rejected)
}
