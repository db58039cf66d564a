package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// KeyPrefix namespaces every fetch cache key
const KeyPrefix = "doajr:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a cache key from a render mode and URL
func CacheKey(jsMode model.JSMode, url string) string {
	hash := sha256.Sum256([]byte(string(jsMode) + "|" + url))
	return KeyPrefix + hex.EncodeToString(hash[:])
}

// FetchStore caches successful fetch results
type FetchStore struct {
	cache Cache
	ttl   time.Duration
}

// NewFetchStore wraps c for FetchResult values
func NewFetchStore(c Cache, ttl time.Duration) *FetchStore {
	return &FetchStore{cache: c, ttl: ttl}
}

// Load returns a cached result for url, marked as served from cache
func (s *FetchStore) Load(jsMode model.JSMode, url string) (*model.FetchResult, bool) {
	if s == nil || s.cache == nil {
		return nil, false
	}
	data, ok := s.cache.Get(CacheKey(jsMode, url))
	if !ok {
		return nil, false
	}
	var result model.FetchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false
	}
	result.FromCache = true
	return &result, true
}

// Store caches result when it is ok. Blocked and error results are never stored.
func (s *FetchStore) Store(jsMode model.JSMode, url string, result *model.FetchResult) error {
	if s == nil || s.cache == nil || !result.OK() {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.cache.Set(CacheKey(jsMode, url), data, s.ttl)
}
