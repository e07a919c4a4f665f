package sambung

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// cacheEntry pairs a stored result with its expiry and the eviction timer
// that removes it.
type cacheEntry struct {
	value     *Result
	expiresAt time.Time
	timer     *clock.Timer
}

// MemoryCache is the in-memory ResultCache. Each Set schedules an eviction
// timer on the injected clock; Get additionally checks expiry lazily so an
// entry is never served past its TTL even before the timer fires. Eviction is
// idempotent: explicit invalidation may remove an entry before its timer
// fires, and the timer callback tolerates the missing entry.
type MemoryCache struct {
	mu      sync.RWMutex
	clock   clock.Clock
	entries map[string]*cacheEntry
}

// NewMemoryCache creates an empty cache driven by the given clock.
func NewMemoryCache(clk clock.Clock) *MemoryCache {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryCache{
		clock:   clk,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the live entry for key, or absent. Reads never block behind a
// network exchange; an expired entry is reported absent and left to its timer.
func (c *MemoryCache) Get(key string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key and schedules its eviction after ttl. A
// non-positive ttl stores nothing.
func (c *MemoryCache) Set(key string, value *Result, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, exists := c.entries[key]; exists && old.timer != nil {
		old.timer.Stop()
	}

	entry := &cacheEntry{
		value:     value,
		expiresAt: c.clock.Now().Add(ttl),
	}
	entry.timer = c.clock.AfterFunc(ttl, func() {
		c.evict(key, entry)
	})
	c.entries[key] = entry
}

// evict removes the entry if it is still the one the timer was armed for.
func (c *MemoryCache) evict(key string, entry *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, exists := c.entries[key]; exists && current == entry {
		delete(c.entries, key)
	}
}

// Invalidate removes every entry whose key matches pred, immediately.
func (c *MemoryCache) Invalidate(pred func(key string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if pred(key) {
			if entry.timer != nil {
				entry.timer.Stop()
			}
			delete(c.entries, key)
		}
	}
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(c.entries, key)
	}
}

// Len reports the number of stored entries, counting ones past expiry whose
// timer has not fired yet.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
