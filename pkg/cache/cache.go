package cache

import (
	"context"
	"time"
)

// Cache defines the byte-valued cache interface shared by the synthesis
// pipeline. Values are opaque blobs (typically serialized frame sets).
type Cache interface {
	// Get retrieves a cached value
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value in cache
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// Delete removes a cached value
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists
	Exists(ctx context.Context, key string) bool

	// Clear removes all cached values
	Clear(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// Config defines cache configuration
type Config struct {
	// Cache type: "local", "gocache" or "redis"
	Type string `json:"type" yaml:"type" env:"CACHE_TYPE" default:"local"`

	// Redis configuration
	Redis RedisConfig `json:"redis" yaml:"redis"`

	// Local cache configuration
	Local LocalConfig `json:"local" yaml:"local"`
}

// RedisConfig defines Redis configuration
type RedisConfig struct {
	// Redis server address
	Addr string `json:"addr" yaml:"addr" env:"REDIS_ADDR" default:"localhost:6379"`

	// Redis password
	Password string `json:"password" yaml:"password" env:"REDIS_PASSWORD"`

	// Redis database number
	DB int `json:"db" yaml:"db" env:"REDIS_DB" default:"0"`

	// Connection pool size
	PoolSize int `json:"pool_size" yaml:"pool_size" env:"REDIS_POOL_SIZE" default:"10"`

	// Minimum idle connections
	MinIdleConns int `json:"min_idle_conns" yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS" default:"5"`

	// Connection dial timeout
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" default:"5s"`

	// Read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout" env:"REDIS_READ_TIMEOUT" default:"3s"`

	// Write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// LocalConfig defines local cache configuration
type LocalConfig struct {
	// Maximum number of cache items
	MaxSize int `json:"max_size" yaml:"max_size" env:"LOCAL_CACHE_MAX_SIZE" default:"1000"`

	// Default expiration time
	DefaultExpiration time.Duration `json:"default_expiration" yaml:"default_expiration" env:"LOCAL_CACHE_DEFAULT_EXPIRATION" default:"1h"`

	// Cleanup interval (gocache backend only)
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" env:"LOCAL_CACHE_CLEANUP_INTERVAL" default:"10m"`
}
