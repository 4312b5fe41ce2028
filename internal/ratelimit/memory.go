package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowCount struct {
	start time.Time
	count int64
}

// MemoryCounter is an in-process Counter backed by a mutex-guarded map.
// Suitable for single-instance deployments and tests.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*windowCount
	now     func() time.Time
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]*windowCount),
		now:     time.Now,
	}
}

// Incr increments the key's count, resetting it when the window anchored at
// the first observed request has elapsed.
func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.entries[key]
	if !ok || now.Sub(entry.start) >= window {
		entry = &windowCount{start: now}
		c.entries[key] = entry
	}
	entry.count++
	return entry.count, nil
}
