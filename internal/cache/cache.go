// Package cache provides a small keyed TTL cache with an injectable clock.
// It replaces the process-wide mutable cache globals the service grew around
// (model list, vision capability, collection readiness) with a dependency
// that tests can drive deterministically.
package cache

import (
	"sync"
	"time"
)

type Clock func() time.Time

type entry[V any] struct {
	value      V
	recordedAt time.Time
}

// TTLCache is read-mostly and last-writer-wins. A duplicate recomputation on
// a cache-miss race is wasted work, not a correctness bug: the values cached
// here come from externally idempotent probes.
type TTLCache[V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   Clock
	items map[string]entry[V]
}

func New[V any](ttl time.Duration, now Clock) *TTLCache[V] {
	if now == nil {
		now = time.Now
	}
	return &TTLCache[V]{
		ttl:   ttl,
		now:   now,
		items: make(map[string]entry[V]),
	}
}

// Get returns the cached value unless the entry is absent or older than the
// TTL. Expired entries are not trusted, the caller must recompute.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.recordedAt) >= c.ttl {
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, recordedAt: c.now()}
	c.mu.Unlock()
}

// Delete removes an entry immediately instead of letting it age out. Used to
// avoid pinning a known-bad value (an empty model list) through the TTL.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}
