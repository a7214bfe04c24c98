package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// localCache implements an in-memory LRU cache with a fixed TTL.
// The per-call expiration argument is ignored: the expirable LRU applies
// the configured DefaultExpiration to every entry.
type localCache struct {
	config LocalConfig
	lru    *expirable.LRU[string, []byte]
}

// NewLocalCache creates a new local cache instance
func NewLocalCache(config LocalConfig) Cache {
	maxSize := config.MaxSize
	if maxSize <= 0 {
		maxSize = 1000
	}
	ttl := config.DefaultExpiration
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &localCache{
		config: config,
		lru:    expirable.NewLRU[string, []byte](maxSize, nil, ttl),
	}
}

// Get retrieves a value from cache by key
func (lc *localCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return lc.lru.Get(key)
}

// Set stores a value in cache. The expiration argument is advisory only.
func (lc *localCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	lc.lru.Add(key, value)
	return nil
}

// Delete removes a key from cache
func (lc *localCache) Delete(ctx context.Context, key string) error {
	lc.lru.Remove(key)
	return nil
}

// Exists checks if a key exists in cache
func (lc *localCache) Exists(ctx context.Context, key string) bool {
	return lc.lru.Contains(key)
}

// Clear removes all entries from cache
func (lc *localCache) Clear(ctx context.Context) error {
	lc.lru.Purge()
	return nil
}

// Close closes the cache
func (lc *localCache) Close() error {
	lc.lru.Purge()
	return nil
}
