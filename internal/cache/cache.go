// Package cache stores serialized analysis reports keyed by the hash of the
// evidence that produced them, in memory and optionally on disk.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ppiankov/claimlens/internal/model"
)

const keyPrefix = "claimlens:v1:"

// ErrNotPersistent is returned by maintenance operations on a memory-only cache
var ErrNotPersistent = errors.New("cache has no disk layer")

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from the analysis kind and the evidence bytes.
// Parts are length-prefixed so ("ab","c") and ("a","bc") never collide.
func Key(kind string, parts ...[]byte) string {
	h := sha256.New()
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write(p)
	}
	return keyPrefix + kind + ":" + hex.EncodeToString(h.Sum(nil))
}

// Stats reports cache effectiveness
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Items   int     `json:"items"`
	Dropped uint64  `json:"dropped,omitempty"`
	HitRate float64 `json:"hit_rate"`
}

// Counted wraps a cache and counts hits and misses
type Counted struct {
	Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCounted wraps c
func NewCounted(c Cache) *Counted {
	return &Counted{Cache: c}
}

// Get retrieves a value and records the outcome
func (c *Counted) Get(key string) ([]byte, bool) {
	val, found := c.Cache.Get(key)
	if found {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return val, found
}

// Stats returns the counters and, when the wrapped cache can report it, the item count
func (c *Counted) Stats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if counter, ok := c.Cache.(interface{ ItemCount() int }); ok {
		s.Items = counter.ItemCount()
	}
	if dropper, ok := c.Cache.(interface{ Dropped() uint64 }); ok {
		s.Dropped = dropper.Dropped()
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Usage reports the disk layer
func (c *Counted) Usage() (Usage, error) {
	if u, ok := c.Cache.(interface{ Usage() (Usage, error) }); ok {
		return u.Usage()
	}
	return Usage{}, ErrNotPersistent
}

// Prune removes expired disk entries
func (c *Counted) Prune() (int, error) {
	if p, ok := c.Cache.(interface{ Prune() (int, error) }); ok {
		return p.Prune()
	}
	return 0, ErrNotPersistent
}

// New builds the configured cache: memory only, or memory over disk when a
// directory is set
func New(cfg model.CacheConfig) *Counted {
	if cfg.Dir == "" {
		return NewCounted(NewMemoryCache(cfg.TTL, cfg.MaxEntries))
	}
	return NewCounted(NewLayeredCache(cfg.TTL, cfg.MaxEntries, cfg.Dir))
}
