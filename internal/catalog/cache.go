package catalog

import (
	"sync"
	"time"
)

// Clock returns the current time
type Clock func() time.Time

type entry[V any] struct {
	value   V
	expires time.Time
}

// Cache is a small TTL cache owned by whoever constructs it. Expiry is
// measured against the injected clock.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   Clock
	items map[K]entry[V]
}

// NewCache creates a cache. A nil clock uses time.Now.
func NewCache[K comparable, V any](ttl time.Duration, now Clock) *Cache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &Cache[K, V]{ttl: ttl, now: now, items: map[K]entry[V]{}}
}

// Get returns the value if it has not expired
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expires) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value until now+ttl
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expires: c.now().Add(c.ttl)}
}

// GetOrLoad returns the cached value or calls load and caches a successful result
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Len counts entries, including expired ones not yet evicted
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
