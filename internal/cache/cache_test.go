package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/claimlens/internal/model"
)

func TestKey(t *testing.T) {
	a := Key("document", []byte("ab"), []byte("c"))
	b := Key("document", []byte("a"), []byte("bc"))
	if a == b {
		t.Errorf("Expected length-prefixed parts to produce different keys")
	}
	if a != Key("document", []byte("ab"), []byte("c")) {
		t.Errorf("Expected key to be deterministic")
	}
	if !strings.HasPrefix(a, "claimlens:v1:document:") {
		t.Errorf("Unexpected key prefix: %s", a)
	}
	if Key("image", []byte("x")) == Key("claim", []byte("x")) {
		t.Errorf("Expected kind to be part of the key")
	}
}

func TestSplitKey(t *testing.T) {
	key := Key("image", []byte("photo"))
	kind, hash := splitKey(key)
	if kind != "image" || len(hash) != 64 {
		t.Errorf("splitKey(%s) = %q, %q", key, kind, hash)
	}

	for _, bad := range []string{"k", "claimlens:v1:nohash", "claimlens:v1:../x:abcd", "other:v1:claim:ab"} {
		if kind, _ := splitKey(bad); kind != "" {
			t.Errorf("splitKey(%q) should not yield a kind, got %q", bad, kind)
		}
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Hour, 0)

	if _, found := c.Get("missing"); found {
		t.Fatal("Expected miss on empty cache")
	}

	if err := c.Set("k", []byte("report"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, found := c.Get("k")
	if !found || string(val) != "report" {
		t.Errorf("Expected report, got %q (found=%v)", val, found)
	}
	if c.ItemCount() != 1 {
		t.Errorf("Expected 1 item, got %d", c.ItemCount())
	}

	_ = c.Set("short", []byte("x"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, found := c.Get("short"); found {
		t.Error("Expected entry to expire")
	}

	_ = c.Clear()
	if _, found := c.Get("k"); found {
		t.Error("Expected cache to be empty after Clear")
	}
}

func TestMemoryCacheBounded(t *testing.T) {
	c := NewMemoryCache(time.Hour, 2)

	_ = c.Set("a", []byte("1"), 0)
	_ = c.Set("b", []byte("2"), 0)
	if err := c.Set("c", []byte("3"), 0); !errors.Is(err, ErrFull) {
		t.Fatalf("Expected ErrFull, got %v", err)
	}
	if c.Dropped() != 1 {
		t.Errorf("Expected 1 dropped write, got %d", c.Dropped())
	}

	// overwriting a live key is always allowed
	if err := c.Set("a", []byte("1b"), 0); err != nil {
		t.Errorf("Expected overwrite to succeed, got %v", err)
	}

	// expired entries make room
	_ = c.Set("b", []byte("2"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if err := c.Set("c", []byte("3"), 0); err != nil {
		t.Errorf("Expected expired entry to be swept, got %v", err)
	}
}

func TestSweepInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{0, 10 * time.Minute},
		{30 * time.Second, time.Minute},
		{10 * time.Minute, 5 * time.Minute},
		{24 * time.Hour, 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := sweepInterval(tt.ttl); got != tt.want {
			t.Errorf("sweepInterval(%v) = %v, want %v", tt.ttl, got, tt.want)
		}
	}
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := Key("claim", []byte("narrative"))

	if err := c.Set(key, []byte(`{"fraud_score":0.4}`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	_, hash := splitKey(key)
	want := filepath.Join(dir, "claim", hash[:2], hash+".json")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("Expected sharded cache file at %s: %v", want, err)
	}

	val, found := c.Get(key)
	if !found || !bytes.Equal(val, []byte(`{"fraud_score":0.4}`)) {
		t.Errorf("Expected stored report, got %q (found=%v)", val, found)
	}

	if err := c.Delete(key); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("Deleting a missing entry should not fail: %v", err)
	}
}

func TestDiskCacheOtherKeys(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	if err := c.Set("a:b", []byte("x"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "other", "a_b.json")); err != nil {
		t.Errorf("Expected colon-free file name: %v", err)
	}
}

func TestDiskCacheExpiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)

	_ = c.Set("k", []byte("x"), -time.Second)
	if _, found := c.Get("k"); found {
		t.Error("Expected expired entry to be a miss")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Errorf("Expected expired file to be removed, stat err = %v", err)
	}
}

func TestDiskCacheCorruptEntry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	key := Key("document", []byte("scan"))

	_ = c.Set(key, []byte("x"), 0)
	if err := os.WriteFile(c.path(key), []byte("{torn"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, found := c.Get(key); found {
		t.Error("Expected unreadable entry to be a miss")
	}
	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Errorf("Expected unreadable file to be removed, stat err = %v", err)
	}
}

func TestDiskCacheUsageAndPrune(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	_ = c.Set(Key("claim", []byte("1")), []byte("a"), 0)
	_ = c.Set(Key("claim", []byte("2")), []byte("b"), -time.Second)
	_ = c.Set(Key("image", []byte("3")), []byte("c"), 0)
	if err := os.WriteFile(filepath.Join(dir, "claim", "junk.json"), []byte("nope"), 0o600); err != nil {
		t.Fatal(err)
	}

	u, err := c.Usage()
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if u.Files != 4 || u.ByKind["claim"] != 3 || u.ByKind["image"] != 1 || u.Bytes == 0 {
		t.Errorf("Unexpected usage: %+v", u)
	}

	removed, err := c.Prune()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected expired and corrupt entries removed, got %d", removed)
	}
	if u, _ := c.Usage(); u.Files != 2 {
		t.Errorf("Expected 2 files left, got %+v", u)
	}
}

func TestDiskCacheMissingDir(t *testing.T) {
	c := NewDiskCache(filepath.Join(t.TempDir(), "never-created"), time.Hour)

	u, err := c.Usage()
	if err != nil || u.Files != 0 {
		t.Errorf("Expected empty usage, got %+v (%v)", u, err)
	}
	if n, err := c.Prune(); err != nil || n != 0 {
		t.Errorf("Expected nothing pruned, got %d (%v)", n, err)
	}
}

func TestLayeredCachePromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Hour, 0, dir)

	// written by an earlier process
	if err := NewDiskCache(dir, time.Hour).Set("k", []byte("from disk"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, found := c.memory.Get("k"); found {
		t.Fatal("Expected memory layer to start empty")
	}
	val, found := c.Get("k")
	if !found || string(val) != "from disk" {
		t.Fatalf("Expected disk hit, got %q (found=%v)", val, found)
	}
	if _, found := c.memory.Get("k"); !found {
		t.Error("Expected disk hit to be promoted to memory")
	}

	if err := c.Delete("k"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if _, found := c.Get("k"); found {
		t.Error("Expected entry to be gone from both layers")
	}
}

func TestLayeredCacheFullMemoryStillPersists(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Hour, 1, dir)

	_ = c.Set("a", []byte("1"), 0)
	if err := c.Set("b", []byte("2"), 0); err != nil {
		t.Fatalf("Expected full memory layer to be tolerated, got %v", err)
	}
	if _, found := c.disk.Get("b"); !found {
		t.Error("Expected entry on disk")
	}
	if c.Dropped() != 1 {
		t.Errorf("Expected 1 dropped memory write, got %d", c.Dropped())
	}
}

func TestCountedStats(t *testing.T) {
	c := New(model.CacheConfig{TTL: time.Hour, MaxEntries: 1})

	_, _ = c.Get("a")
	_ = c.Set("a", []byte("1"), 0)
	_, _ = c.Get("a")
	_, _ = c.Get("a")
	_ = c.Set("b", []byte("2"), 0)

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Expected 2 hits and 1 miss, got %+v", s)
	}
	if s.Items != 1 || s.Dropped != 1 {
		t.Errorf("Expected 1 item and 1 dropped write, got %+v", s)
	}
	if s.HitRate < 0.66 || s.HitRate > 0.67 {
		t.Errorf("Expected hit rate 2/3, got %v", s.HitRate)
	}
}

func TestCountedMaintenance(t *testing.T) {
	mem := New(model.CacheConfig{TTL: time.Hour})
	if _, err := mem.Prune(); !errors.Is(err, ErrNotPersistent) {
		t.Errorf("Expected ErrNotPersistent for memory cache, got %v", err)
	}
	if _, err := mem.Usage(); !errors.Is(err, ErrNotPersistent) {
		t.Errorf("Expected ErrNotPersistent for memory cache, got %v", err)
	}

	layered := New(model.CacheConfig{TTL: time.Hour, Dir: t.TempDir()})
	_ = layered.Set(Key("claim", []byte("x")), []byte("1"), 0)
	u, err := layered.Usage()
	if err != nil || u.Files != 1 {
		t.Errorf("Expected one file on disk, got %+v (%v)", u, err)
	}
	if n, err := layered.Prune(); err != nil || n != 0 {
		t.Errorf("Expected nothing to prune, got %d (%v)", n, err)
	}
}
