package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskCache persists serialized analyses as one JSON file per key, laid out
// as <dir>/<kind>/<hash prefix>/<hash>.json so directories stay small.
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache creates a disk cache rooted at dir
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{
		dir: dir,
		ttl: ttl,
		now: time.Now,
	}
}

type diskEntry struct {
	Kind      string    `json:"kind"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Data      []byte    `json:"data"`
}

// Get retrieves a value. Expired and unreadable entries are removed.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)

	entry, err := readEntry(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			_ = os.Remove(path)
		}
		return nil, false
	}
	if c.now().After(entry.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false
	}
	return entry.Data, true
}

// Set stores a value; a zero ttl uses the cache default
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	kind, _ := splitKey(key)
	now := c.now()
	data, err := json.Marshal(diskEntry{
		Kind:      kind,
		StoredAt:  now.UTC(),
		ExpiresAt: now.Add(ttl).UTC(),
		Data:      value,
	})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// rename is atomic, so a concurrent Get sees the old file or the new one
	tmp := fmt.Sprintf("%s.%d.tmp", path, now.UnixNano())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit cache file: %w", err)
	}
	return nil
}

// Delete removes a value; a missing entry is not an error
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

// Clear removes every cached file
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Usage describes what the disk layer holds
type Usage struct {
	Files  int            `json:"files"`
	Bytes  int64          `json:"bytes"`
	ByKind map[string]int `json:"by_kind"`
}

// Usage walks the cache directory. A missing directory is an empty cache.
func (c *DiskCache) Usage() (Usage, error) {
	u := Usage{ByKind: map[string]int{}}
	err := c.walk(func(path string, info fs.FileInfo) error {
		u.Files++
		u.Bytes += info.Size()
		rel, _ := filepath.Rel(c.dir, path)
		u.ByKind[strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]]++
		return nil
	})
	return u, err
}

// Prune removes expired and unreadable entries and returns how many were removed
func (c *DiskCache) Prune() (int, error) {
	now := c.now()
	removed := 0
	err := c.walk(func(path string, _ fs.FileInfo) error {
		entry, err := readEntry(path)
		if err == nil && !now.After(entry.ExpiresAt) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
		return nil
	})
	return removed, err
}

func (c *DiskCache) walk(fn func(path string, info fs.FileInfo) error) error {
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		return fn(path, info)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func readEntry(path string) (*diskEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &entry, nil
}

// path maps a key to its file. Keys that do not come from Key land under
// "other" with colons replaced, since colons are not portable in file names.
func (c *DiskCache) path(key string) string {
	kind, hash := splitKey(key)
	if kind == "" || len(hash) < 2 {
		return filepath.Join(c.dir, "other", strings.ReplaceAll(key, ":", "_")+".json")
	}
	return filepath.Join(c.dir, kind, hash[:2], hash+".json")
}

// splitKey returns the kind and hash of a key built by Key
func splitKey(key string) (kind, hash string) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", ""
	}
	kind, hash, ok = strings.Cut(rest, ":")
	if !ok || strings.ContainsAny(kind, `/\.`) {
		return "", ""
	}
	return kind, hash
}
