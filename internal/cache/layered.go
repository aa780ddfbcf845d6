package cache

import (
	"errors"
	"time"
)

// LayeredCache keeps recent analyses in memory and every analysis on disk,
// so results survive restarts of the CLI and the server.
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewLayeredCache creates a layered cache
func NewLayeredCache(ttl time.Duration, maxEntries int, dir string) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(ttl, maxEntries),
		disk:   NewDiskCache(dir, ttl),
	}
}

// Get checks memory first, then disk, promoting disk hits to memory
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set writes both layers. A full memory layer still persists to disk.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil && !errors.Is(err, ErrFull) {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

// Clear removes all values from both layers
func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}

// ItemCount reports the memory layer only
func (c *LayeredCache) ItemCount() int {
	return c.memory.ItemCount()
}

// Dropped reports memory writes refused for capacity
func (c *LayeredCache) Dropped() uint64 {
	return c.memory.Dropped()
}

// Usage reports the disk layer
func (c *LayeredCache) Usage() (Usage, error) {
	return c.disk.Usage()
}

// Prune removes expired disk entries; memory expires on its own
func (c *LayeredCache) Prune() (int, error) {
	return c.disk.Prune()
}
