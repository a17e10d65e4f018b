package cache_test

import (
	"path/filepath"
	"testing"

	"github.com/pyvm/pyvm/internal/cache"
)

func openTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := cache.Open(filepath.Join(dir, "cache.sqlite3"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKeyIsStableAndContentAddressed(t *testing.T) {
	a := cache.Key([]byte("x = 1"))
	b := cache.Key([]byte("x = 1"))
	c := cache.Key([]byte("x = 2"))
	if a != b {
		t.Fatal("Key is not stable across identical input")
	}
	if a == c {
		t.Fatal("Key collided for different input")
	}
}

func TestLookupMissReturnsFalse(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.Lookup(cache.Key([]byte("nonexistent")))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Fatal("Lookup reported a hit for a key never stored")
	}
}

func TestStoreThenLookupRoundTrips(t *testing.T) {
	c := openTestCache(t)
	key := cache.Key([]byte("x = 1"))
	payload := []byte{0x50, 0x59, 0x4D, 0x56, 1, 2, 3}

	if err := c.Store(key, payload, 1700000000); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, ok, err := c.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected a cache hit after Store")
	}
	if string(got) != string(payload) {
		t.Fatalf("Lookup = % X, want % X", got, payload)
	}
}

func TestStoreOverwritesExistingEntry(t *testing.T) {
	c := openTestCache(t)
	key := cache.Key([]byte("x = 1"))

	if err := c.Store(key, []byte{1}, 100); err != nil {
		t.Fatalf("Store (1): %v", err)
	}
	if err := c.Store(key, []byte{2}, 200); err != nil {
		t.Fatalf("Store (2): %v", err)
	}
	got, ok, err := c.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok || len(got) != 1 || got[0] != 2 {
		t.Fatalf("Lookup = %v ok=%v, want [2] true (later Store wins)", got, ok)
	}
}
