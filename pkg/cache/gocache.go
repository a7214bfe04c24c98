package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// goCacheWrapper wraps go-cache package for unified interface
type goCacheWrapper struct {
	cache *gocache.Cache
}

// NewGoCache creates a local cache based on go-cache package
func NewGoCache(config LocalConfig) Cache {
	defaultExpiration := config.DefaultExpiration
	if defaultExpiration <= 0 {
		defaultExpiration = time.Hour
	}
	cleanupInterval := config.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}

	return &goCacheWrapper{
		cache: gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Get retrieves a value from cache by key
func (gc *goCacheWrapper) Get(ctx context.Context, key string) ([]byte, bool) {
	value, found := gc.cache.Get(key)
	if !found {
		return nil, false
	}
	data, ok := value.([]byte)
	if !ok {
		return nil, false
	}
	return data, true
}

// Set stores a value in cache with expiration
func (gc *goCacheWrapper) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	gc.cache.Set(key, value, expiration)
	return nil
}

// Delete removes a key from cache
func (gc *goCacheWrapper) Delete(ctx context.Context, key string) error {
	gc.cache.Delete(key)
	return nil
}

// Exists checks if a key exists in cache
func (gc *goCacheWrapper) Exists(ctx context.Context, key string) bool {
	_, found := gc.cache.Get(key)
	return found
}

// Clear removes all entries from cache
func (gc *goCacheWrapper) Clear(ctx context.Context) error {
	gc.cache.Flush()
	return nil
}

// Close closes the cache
func (gc *goCacheWrapper) Close() error {
	gc.cache.Flush()
	return nil
}
