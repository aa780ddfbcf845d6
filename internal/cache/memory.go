package cache

import (
	"errors"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ErrFull is returned by a bounded memory cache that has no room for a new key
var ErrFull = errors.New("cache full")

// MemoryCache keeps serialized analyses in process memory with per-entry
// expiry. A positive maxEntries bounds the number of live keys.
type MemoryCache struct {
	store      *gocache.Cache
	maxEntries int
	dropped    atomic.Uint64
}

// NewMemoryCache creates a memory cache whose entries live for ttl
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	return &MemoryCache{
		store:      gocache.New(ttl, sweepInterval(ttl)),
		maxEntries: maxEntries,
	}
}

// sweepInterval runs the janitor twice per ttl, between one and ten minutes
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 10 * time.Minute
	}
	return min(max(ttl/2, time.Minute), 10*time.Minute)
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if val, found := c.store.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

// Set stores a value; a zero ttl uses the default. When the cache is at
// capacity, expired entries are swept first and the write is dropped with
// ErrFull if that frees nothing.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	if c.maxEntries > 0 && c.store.ItemCount() >= c.maxEntries {
		if _, exists := c.store.Get(key); !exists {
			c.store.DeleteExpired()
			if c.store.ItemCount() >= c.maxEntries {
				c.dropped.Add(1)
				return ErrFull
			}
		}
	}
	c.store.Set(key, value, ttl)
	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(key string) error {
	c.store.Delete(key)
	return nil
}

// Clear removes all values from the cache
func (c *MemoryCache) Clear() error {
	c.store.Flush()
	return nil
}

// ItemCount includes entries that expired but were not yet swept
func (c *MemoryCache) ItemCount() int {
	return c.store.ItemCount()
}

// Dropped counts writes refused because the cache was full
func (c *MemoryCache) Dropped() uint64 {
	return c.dropped.Load()
}
