package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-100-precent/LingVoice/pkg/cache"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TTS_WS_URL", "wss://tts.example.com/stream")
	t.Setenv("TTS_API_KEY", "secret")
	t.Setenv("TTS_POOL_MAX_CONNECTIONS", "4")
	t.Setenv("TTS_CONNECT_TIMEOUT", "3s")
	t.Setenv("CACHE_TYPE", "local")

	require.NoError(t, Load())
	require.NotNil(t, GlobalConfig)

	assert.Equal(t, "wss://tts.example.com/stream", GlobalConfig.Backend.URL)
	assert.Equal(t, "secret", GlobalConfig.Backend.APIKey)
	assert.Equal(t, 3*time.Second, GlobalConfig.Backend.ConnectTimeout)
	assert.Equal(t, 4, GlobalConfig.Synthesis.Pool.MaxConnections)
	assert.Equal(t, cache.KindLocal, GlobalConfig.Cache.Type)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TTS_WS_URL", "wss://tts.example.com/stream")

	require.NoError(t, Load())
	cfg := GlobalConfig

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, "opus", cfg.Backend.Codec.Codec)
	assert.Equal(t, 24000, cfg.Backend.Codec.SampleRate)
	assert.Equal(t, 8, cfg.Synthesis.Pool.MaxConnections)
	assert.Equal(t, 2, cfg.Synthesis.Stream.MaxParallel)
	assert.Equal(t, 3, cfg.Synthesis.Processor.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Synthesis.Processor.CompletionTimeout)
	assert.Equal(t, 50, cfg.Synthesis.Output.FrameDuration)
	assert.Equal(t, 80, cfg.Synthesis.Cache.MaxChars)
}

func TestValidate(t *testing.T) {
	c := &Config{}
	assert.Error(t, c.Validate()) // 缺 URL

	c.Backend.URL = "wss://tts.example.com/stream"
	assert.NoError(t, c.Validate())

	c.Cache.Type = "bogus"
	assert.Error(t, c.Validate())

	c.Cache.Type = cache.KindRedis
	assert.Error(t, c.Validate()) // redis 必须给地址
	c.Cache.Redis.Addr = "localhost:6379"
	assert.NoError(t, c.Validate())
}
