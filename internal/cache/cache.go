// Package cache provides a TTL-memoized value store used by repositories to
// avoid hammering cluster and registry APIs.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"spacegun/internal/clock"
	"spacegun/internal/metrics"
	"spacegun/pkg/logging"
)

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// Cache memoizes values per key for a fixed TTL. Concurrent misses for the
// same key share a single computation. A zero or negative TTL disables
// caching: every call computes.
type Cache[V any] struct {
	name  string
	ttl   time.Duration
	clock clock.Clock

	mu      sync.RWMutex
	entries map[string]entry[V]

	group   singleflight.Group
	metrics *metrics.Metrics
}

// New creates a cache. name is only used for log messages.
func New[V any](name string, ttl time.Duration, c clock.Clock) *Cache[V] {
	return &Cache[V]{
		name:    name,
		ttl:     ttl,
		clock:   clock.OrReal(c),
		entries: make(map[string]entry[V]),
	}
}

// Instrument records hits and misses of this cache in m.
func (c *Cache[V]) Instrument(m *metrics.Metrics) *Cache[V] {
	c.metrics = m
	return c
}

// Get returns the cached value for key or computes, stores and returns it.
// Failed computations are not cached.
func (c *Cache[V]) Get(ctx context.Context, key string, compute func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		c.metrics.CacheLookup(c.name, true)
		return v, nil
	}
	c.metrics.CacheLookup(c.name, false)

	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		// Double-check after joining the flight
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return v, err
		}
		c.store(key, v)
		return v, nil
	})
	if shared {
		logging.Debug("Cache", "%s: shared in-flight computation for %s", c.name, key)
	}
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Invalidate drops the value stored for key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored values, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[V]) lookup(key string) (V, bool) {
	var zero V
	if c.ttl <= 0 {
		return zero, false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if c.clock.Now().Sub(e.fetchedAt) >= c.ttl {
		logging.Debug("Cache", "%s: entry %s expired", c.name, key)
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) store(key string, v V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: v, fetchedAt: c.clock.Now()}
}
