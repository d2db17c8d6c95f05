package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider"
)

// DefaultTTL applies when Set is called with a non-positive TTL.
const DefaultTTL = 300 * time.Second

type entry struct {
	snap      *provider.Snapshot
	expiresAt time.Time
}

// Cache stores snapshots keyed by symbol+period with TTL expiry. Expired
// entries are misses for Get but stay readable through GetStale until swept
// or overwritten, which is what lets the adapter degrade instead of fail
// when every provider is down.
type Cache struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// New builds a cache with the given default TTL and size bound. When the
// store grows past maxEntries a sweep of expired entries runs inline;
// maxEntries <= 0 disables the bound.
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]entry),
		now:        time.Now,
	}
}

// Key composes the cache key from symbol and period so differing history
// windows do not collide.
func Key(symbol, period string) string {
	return strings.ToUpper(symbol) + ":" + strings.ToUpper(period)
}

// Get returns the entry only if present and fresh.
func (c *Cache) Get(key string) (*provider.Snapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.snap, true
}

// GetStale returns the entry regardless of expiry. Used only after every
// provider has been exhausted.
func (c *Cache) GetStale(key string) (*provider.Snapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.snap, true
}

// Set stores the snapshot unconditionally. ttl <= 0 uses the cache default.
func (c *Cache) Set(key string, snap *provider.Snapshot, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	c.entries[key] = entry{snap: snap, expiresAt: c.now().Add(ttl)}
	over := c.maxEntries > 0 && len(c.entries) > c.maxEntries
	c.mu.Unlock()
	if over {
		c.Sweep()
	}
}

// Sweep removes all expired entries and reports how many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of stored entries, expired included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
