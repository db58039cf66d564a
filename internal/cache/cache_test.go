package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/doaj-reviewer/internal/model"
)

func TestCacheKey(t *testing.T) {
	k1 := CacheKey(model.JSModeAuto, "https://example.org/oa")
	k2 := CacheKey(model.JSModeOff, "https://example.org/oa")
	k3 := CacheKey(model.JSModeAuto, "https://example.org/oa")

	if !strings.HasPrefix(k1, KeyPrefix) {
		t.Errorf("key %q lacks prefix %q", k1, KeyPrefix)
	}
	if k1 == k2 {
		t.Error("keys must differ by render mode")
	}
	if k1 != k3 {
		t.Error("keys must be stable")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss")
	}
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if val, ok := c.Get("k"); !ok || string(val) != "v" {
		t.Errorf("expected hit with v, got %q %v", val, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := CacheKey(model.JSModeAuto, "https://example.org")
	if err := c.Set(key, []byte("payload"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, err := os.Stat(c.path(key)); err != nil {
		t.Fatalf("expected cache file: %v", err)
	}
	if strings.Contains(filepath.Base(c.path(key)), ":") {
		t.Errorf("cache file name should not contain colons: %s", c.path(key))
	}

	if val, ok := c.Get(key); !ok || string(val) != "payload" {
		t.Fatalf("expected hit, got %q %v", val, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get(key); ok {
		t.Error("expected expired entry to miss")
	}
	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

func TestDiskCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	if err := os.MkdirAll(filepath.Dir(c.path("bad")), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.path("bad"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("corrupt entry should miss")
	}
	if _, err := os.Stat(c.path("bad")); !os.IsNotExist(err) {
		t.Error("corrupt entry should be removed")
	}
}

func TestDiskCache_ShardsByKeySuffix(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	a := CacheKey(model.JSModeAuto, "https://journal.example.org/about")
	if got := filepath.Base(filepath.Dir(c.path(a))); got != a[len(a)-2:] {
		t.Errorf("expected shard %q, got %q", a[len(a)-2:], got)
	}
	if err := c.Set(a, []byte("x"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok := c.Get(a); ok {
		t.Error("expected miss after clear")
	}
}

func TestLayeredCache_PromotesHits(t *testing.T) {
	memory := NewMemoryCache(time.Minute, time.Minute)
	disk := NewDiskCache(t.TempDir(), time.Hour)
	layered := NewLayeredCache(memory, nil, disk)

	if err := disk.Set("k", []byte("from-disk"), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok := memory.Get("k"); ok {
		t.Fatal("memory should start empty")
	}

	val, ok := layered.Get("k")
	if !ok || string(val) != "from-disk" {
		t.Fatalf("expected disk hit, got %q %v", val, ok)
	}
	if val, ok := memory.Get("k"); !ok || string(val) != "from-disk" {
		t.Error("hit should be promoted into memory")
	}

	if err := layered.Set("k2", []byte("both"), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok := disk.Get("k2"); !ok {
		t.Error("set should reach disk")
	}
	if err := layered.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok := layered.Get("k2"); ok {
		t.Error("expected miss after clear")
	}
}

func TestFetchStore_OnlyOKResults(t *testing.T) {
	store := NewFetchStore(NewMemoryCache(time.Minute, time.Minute), time.Minute)
	u := "https://example.org/policy"

	blocked := &model.FetchResult{URL: u, Status: model.FetchBlocked, ChallengeDetected: true}
	if err := store.Store(model.JSModeAuto, u, blocked); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Load(model.JSModeAuto, u); ok {
		t.Error("blocked results must not be cached")
	}

	ok := &model.FetchResult{URL: u, Status: model.FetchOK, Text: "Open access statement"}
	if err := store.Store(model.JSModeAuto, u, ok); err != nil {
		t.Fatal(err)
	}
	got, hit := store.Load(model.JSModeAuto, u)
	if !hit {
		t.Fatal("expected cached ok result")
	}
	if got.Text != ok.Text || !got.FromCache {
		t.Errorf("unexpected cached result: %+v", got)
	}
	if _, hit := store.Load(model.JSModeOff, u); hit {
		t.Error("other render modes must miss")
	}

	var nilStore *FetchStore
	if _, hit := nilStore.Load(model.JSModeAuto, u); hit {
		t.Error("nil store must miss")
	}
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := NewRedisCache(ctx, "127.0.0.1:1", 0, time.Minute); err == nil {
		t.Error("expected connection error")
	}
}
