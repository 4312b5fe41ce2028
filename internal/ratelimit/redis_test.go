package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCounter(t *testing.T) (*RedisCounter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCounter(client), mr
}

func TestRedisCounterIncr(t *testing.T) {
	counter, _ := newRedisCounter(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, err := counter.Incr(ctx, "register:1.2.3.4", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	count, err := counter.Incr(ctx, "register:5.6.7.8", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisCounterWindowExpiry(t *testing.T) {
	counter, mr := newRedisCounter(t)
	ctx := context.Background()

	_, err := counter.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	_, err = counter.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)

	count, err := counter.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisLimiter(t *testing.T) {
	counter, _ := newRedisCounter(t)
	limiter := New(counter, 5, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.TryAcquire(ctx, "register:9.9.9.9"))
	}
	assert.ErrorIs(t, limiter.TryAcquire(ctx, "register:9.9.9.9"), ErrRateLimited)
}

func TestRedisCounterUnavailable(t *testing.T) {
	counter, mr := newRedisCounter(t)
	mr.Close()

	_, err := counter.Incr(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
