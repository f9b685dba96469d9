// Package cache implements an opt-in TTL cache layer between venues and the
// rest of the engine.
//
// It solves this problem: a strategy run across four correlated instruments
// on a one-minute cadence would otherwise re-request identical candle series
// every run, and the venue would rate-limit the IP making the requests.
// Entries expire on wall-clock; a background sweeper removes dead entries so
// the map does not grow without bound between reads.
package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultTTL applies when Set is called with a non-positive ttl.
	DefaultTTL = 60 * time.Second
	// DefaultCleanupInterval is how often the sweeper runs.
	DefaultCleanupInterval = 30 * time.Second
)

type entry struct {
	value  interface{}
	expiry time.Time
}

// TTLCache is a concurrency-safe string-keyed store with per-entry expiry.
// The sweeper goroutine is owned by the cache and stopped by Close.
type TTLCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration

	done      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

// NewTTLCache constructs a TTLCache and starts its sweeper. Non-positive
// arguments take the package defaults.
func NewTTLCache(defaultTTL, cleanupInterval time.Duration) *TTLCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	c := &TTLCache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	go c.sweep(cleanupInterval)
	return c
}

// Get returns the value stored under key, or false if the key is absent or
// expired. Expired entries are evicted on the way out.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiry) {
		c.Delete(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, expiring after ttl. A non-positive ttl takes
// the cache's default.
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiry: c.now().Add(ttl)}
}

// Delete removes the entry under key, if any.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of entries currently held, expired or not.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweeper. The cache remains usable but no longer sweeps.
func (c *TTLCache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *TTLCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := c.removeExpired(); removed > 0 {
				log.Debug().Int("removed", removed).Msg("TTL cache sweep")
			}
		case <-c.done:
			return
		}
	}
}

func (c *TTLCache) removeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	now := c.now()
	for key, e := range c.entries {
		if now.After(e.expiry) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
