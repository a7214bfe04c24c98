package config

import (
	"errors"
	"time"

	"github.com/code-100-precent/LingVoice/pkg/cache"
	"github.com/code-100-precent/LingVoice/pkg/logger"
	"github.com/code-100-precent/LingVoice/pkg/stream"
	"github.com/code-100-precent/LingVoice/pkg/synthesizer"
	"github.com/code-100-precent/LingVoice/pkg/utils"
)

// Config main configuration structure
type Config struct {
	// Mode 运行模式：debug / release
	Mode string `env:"MODE"`
	// PrewarmConnections 启动时预热的合成连接数
	PrewarmConnections int `env:"TTS_PREWARM_CONNECTIONS"`

	Log       logger.LogConfig     `mapstructure:"log"`
	Cache     cache.Config         `mapstructure:"cache"`
	Backend   synthesizer.WSConfig `mapstructure:"backend"`
	Synthesis stream.ServiceConfig `mapstructure:"synthesis"`
}

// GlobalConfig 进程级配置，Load 后可用
var GlobalConfig *Config

// Load 从环境变量装载配置并初始化日志
func Load() error {
	cfg := &Config{
		Mode:               utils.GetEnvOr("MODE", "release"),
		PrewarmConnections: utils.GetIntEnv("TTS_PREWARM_CONNECTIONS", 0),
		Log: logger.LogConfig{
			Level:      utils.GetEnvOr("LOG_LEVEL", "info"),
			Filename:   utils.GetEnvOr("LOG_FILE", "logs/lingvoice.log"),
			MaxSize:    utils.GetIntEnv("LOG_MAX_SIZE", 100),
			MaxAge:     utils.GetIntEnv("LOG_MAX_AGE", 30),
			MaxBackups: utils.GetIntEnv("LOG_MAX_BACKUPS", 10),
		},
		Cache: cache.Config{
			Type: utils.GetEnvOr("CACHE_TYPE", cache.KindLocal),
			Local: cache.LocalConfig{
				MaxSize:           utils.GetIntEnv("LOCAL_CACHE_MAX_SIZE", 512),
				DefaultExpiration: utils.GetDurationEnv("LOCAL_CACHE_DEFAULT_EXPIRATION", time.Hour),
			},
			Redis: cache.RedisConfig{
				Addr:     utils.GetEnvOr("REDIS_ADDR", "localhost:6379"),
				Password: utils.GetEnv("REDIS_PASSWORD"),
				DB:       utils.GetIntEnv("REDIS_DB", 0),
			},
		},
		Backend:   synthesizer.NewWSConfigFromEnv(),
		Synthesis: stream.NewServiceConfigFromEnv(),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logger.Init(&cfg.Log, cfg.Mode); err != nil {
		return err
	}
	GlobalConfig = cfg
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("TTS_WS_URL is required")
	}
	switch c.Cache.Type {
	case cache.KindLocal, cache.KindGoCache, cache.KindRedis, "":
	default:
		return errors.New("unknown cache type: " + c.Cache.Type)
	}
	if c.Cache.Type == cache.KindRedis && c.Cache.Redis.Addr == "" {
		return errors.New("REDIS_ADDR is required for redis cache")
	}
	return nil
}

// NewService 按配置组装合成服务
func (c *Config) NewService() (*stream.Service, error) {
	backend, err := synthesizer.NewWSBackend(c.Backend)
	if err != nil {
		return nil, err
	}
	store, err := cache.NewCache(c.Cache)
	if err != nil {
		return nil, err
	}
	return stream.NewService(backend, store, c.Synthesis)
}
