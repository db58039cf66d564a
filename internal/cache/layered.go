package cache

import (
	"errors"
	"time"
)

// LayeredCache checks tiers in order (memory, disk, redis) and promotes hits
type LayeredCache struct {
	tiers []Cache
}

// NewLayeredCache creates a layered cache over the given tiers, fastest first
func NewLayeredCache(tiers ...Cache) *LayeredCache {
	var kept []Cache
	for _, tier := range tiers {
		if tier != nil {
			kept = append(kept, tier)
		}
	}
	return &LayeredCache{tiers: kept}
}

// NewDefaultCache builds the memory + disk cache, adding a redis tier when given
func NewDefaultCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration, redis *RedisCache) *LayeredCache {
	tiers := []Cache{
		NewMemoryCache(memoryTTL, 10*time.Minute),
		NewDiskCache(diskDir, diskTTL),
	}
	if redis != nil {
		tiers = append(tiers, redis)
	}
	return NewLayeredCache(tiers...)
}

// Get retrieves a value, promoting it into every faster tier
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	for i, tier := range c.tiers {
		val, found := tier.Get(key)
		if !found {
			continue
		}
		for _, faster := range c.tiers[:i] {
			_ = faster.Set(key, val, 0)
		}
		return val, true
	}
	return nil, false
}

// Set stores a value in every tier
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	var errs []error
	for _, tier := range c.tiers {
		if err := tier.Set(key, value, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes a value from every tier
func (c *LayeredCache) Delete(key string) error {
	var errs []error
	for _, tier := range c.tiers {
		if err := tier.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear removes all values from every tier
func (c *LayeredCache) Clear() error {
	var errs []error
	for _, tier := range c.tiers {
		if err := tier.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
