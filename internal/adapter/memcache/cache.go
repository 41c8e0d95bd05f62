// Package memcache implements the cache port with a mutex-guarded in-memory
// map. Entries carry explicit expiry timestamps; expired entries are never
// returned and are evicted lazily on lookup plus by a periodic sweep.
package memcache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is an in-process cache with exact TTL semantics.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time // for testing
}

// New creates an empty in-memory cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns a value only if present and not expired; any other state is a
// miss. Expired entries found on lookup are removed.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a fresher entry may have replaced it.
		if cur, still := c.entries[key]; still && !c.now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores a value with expiry now + ttl, replacing any existing entry
// for the key (last writer wins).
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Delete removes a value.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of live (unexpired) entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// StartSweep spawns a goroutine that evicts expired entries every interval.
// Returns a cancel function that stops the sweeper.
func (c *Cache) StartSweep(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
	return cancel
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
