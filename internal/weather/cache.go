package weather

import (
	"sync"
	"time"
)

// ttlCache is a keyed cache whose entries are fresh for ttl and may still be
// served as stale data until staleTTL has passed since the fetch.
type ttlCache[T any] struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry[T]
	ttl      time.Duration
	staleTTL time.Duration
}

type cacheEntry[T any] struct {
	value     T
	fetchedAt time.Time
	expiresAt time.Time
}

func newTTLCache[T any](ttl, staleTTL time.Duration) *ttlCache[T] {
	return &ttlCache[T]{
		entries:  make(map[string]*cacheEntry[T]),
		ttl:      ttl,
		staleTTL: staleTTL,
	}
}

// fresh returns the value if it has not expired.
func (c *ttlCache[T]) fresh(key string, now time.Time) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero T
	e, ok := c.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// stale returns an expired value that is still inside the stale window.
func (c *ttlCache[T]) stale(key string, now time.Time) (T, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero T
	e, ok := c.entries[key]
	if !ok || !now.Before(e.fetchedAt.Add(c.staleTTL)) {
		return zero, time.Time{}, false
	}
	return e.value, e.fetchedAt, true
}

func (c *ttlCache[T]) put(key string, value T, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry[T]{
		value:     value,
		fetchedAt: now,
		expiresAt: now.Add(c.ttl),
	}
}

// evict drops entries past the stale window and returns how many were removed.
func (c *ttlCache[T]) evict(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.fetchedAt.Add(c.staleTTL)) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *ttlCache[T]) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry[T])
}

// counts returns the total and fresh entry counts.
func (c *ttlCache[T]) counts(now time.Time) (total, fresh int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			fresh++
		}
	}
	return len(c.entries), fresh
}
