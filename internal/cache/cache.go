// Package cache implements the volatile, in-process tier of the resolution cache.
package cache

import (
	"sync"
	"time"

	"github.com/desertthunder/trackpool/internal/models"
)

// DefaultTTL is how long a resolved track stays in memory.
const DefaultTTL = 24 * time.Hour

// Entry is a cached resolution.
type Entry struct {
	Track     models.ResolvedTrack
	ExpiresAt time.Time
}

// MemoryCache maps track signatures to resolved tracks with a fixed TTL.
//
// It is safe for concurrent use. Expired entries are evicted lazily on read or in bulk by [MemoryCache.Sweep].
// Construct one per process and share it between resolvers.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache creates a cache; a non-positive ttl uses [DefaultTTL].
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

// TTL returns the entry lifetime.
func (c *MemoryCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the track cached under signature, evicting it if expired.
func (c *MemoryCache) Get(signature string) (models.ResolvedTrack, bool) {
	c.mu.RLock()
	entry, ok := c.entries[signature]
	c.mu.RUnlock()
	if !ok {
		return models.ResolvedTrack{}, false
	}

	if !c.now().Before(entry.ExpiresAt) {
		c.mu.Lock()
		if current, ok := c.entries[signature]; ok && !c.now().Before(current.ExpiresAt) {
			delete(c.entries, signature)
		}
		c.mu.Unlock()
		return models.ResolvedTrack{}, false
	}

	return entry.Track, true
}

// Set stores a definite resolution under signature.
func (c *MemoryCache) Set(signature string, track models.ResolvedTrack) {
	if signature == "" || track.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[signature] = Entry{Track: track, ExpiresAt: c.now().Add(c.ttl)}
}

// Len returns the number of entries, expired ones included until they are swept.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes every expired entry and returns how many were removed.
func (c *MemoryCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}
