package cache

import (
	"fmt"
	"strings"
)

const (
	KindLocal   = "local"   // expirable LRU
	KindGoCache = "gocache" // go-cache
	KindRedis   = "redis"   // redis
)

// NewCache creates a cache instance based on configuration
func NewCache(config Config) (Cache, error) {
	switch strings.ToLower(config.Type) {
	case KindLocal, "":
		return NewLocalCache(config.Local), nil
	case KindGoCache:
		return NewGoCache(config.Local), nil
	case KindRedis:
		return NewRedisCache(config.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}
