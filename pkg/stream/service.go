package stream

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/code-100-precent/LingVoice/pkg/cache"
	"github.com/code-100-precent/LingVoice/pkg/logger"
	"github.com/code-100-precent/LingVoice/pkg/media"
	// 注册 opus/wav 解码器
	_ "github.com/code-100-precent/LingVoice/pkg/media/decoder"
	"github.com/code-100-precent/LingVoice/pkg/synthesizer"
	"github.com/code-100-precent/LingVoice/pkg/utils"
)

// ServiceConfig 合成服务配置
type ServiceConfig struct {
	Pool      synthesizer.PoolConfig `json:"pool" yaml:"pool"`
	Processor ProcessorConfig        `json:"processor" yaml:"processor"`
	Stream    StreamConfig           `json:"stream" yaml:"stream"`
	Cache     PhraseCacheConfig      `json:"cache" yaml:"cache"`
	// Output 送往播放侧的 PCM 帧格式
	Output media.StreamFormat `json:"output" yaml:"output"`
}

// NewServiceConfigFromEnv 从环境变量构造服务配置
func NewServiceConfigFromEnv() ServiceConfig {
	return ServiceConfig{
		Pool: synthesizer.NewPoolConfigFromEnv(),
		Processor: ProcessorConfig{
			MaxRetries:        utils.GetIntEnv("TTS_MAX_RETRIES", 3),
			BackoffBase:       utils.GetDurationEnv("TTS_BACKOFF_BASE", 500*time.Millisecond),
			BackoffCap:        utils.GetDurationEnv("TTS_BACKOFF_CAP", 4*time.Second),
			CompletionTimeout: utils.GetDurationEnv("TTS_COMPLETION_TIMEOUT", 30*time.Second),
		},
		Stream: StreamConfig{
			MaxParallel: utils.GetIntEnv("TTS_MAX_PARALLEL", 2),
			QueueSize:   utils.GetIntEnv("TTS_QUEUE_SIZE", 16),
		},
		Cache: PhraseCacheConfig{
			TTL:      utils.GetDurationEnv("TTS_CACHE_TTL", time.Hour),
			MaxChars: utils.GetIntEnv("TTS_CACHE_MAX_CHARS", 80),
		},
		Output: media.StreamFormat{
			SampleRate:    utils.GetIntEnv("TTS_OUTPUT_SAMPLE_RATE", 24000),
			BitDepth:      16,
			Channels:      1,
			FrameDuration: utils.NormalizeFramePeriod(utils.GetEnvOr("TTS_FRAME_PERIOD", "50ms")),
		},
	}
}

// Service 合成服务。连接池与短语缓存跨流共享，
// 每次 OpenStream 产出一条独立的话语级状态机。
type Service struct {
	backend synthesizer.Backend
	pool    *synthesizer.Pool
	cache   *PhraseCache
	cfg     ServiceConfig
	log     *zap.Logger
}

// NewService 创建合成服务。store 为短语缓存后端，
// 进程内或 redis 均可，见 pkg/cache。
func NewService(backend synthesizer.Backend, store cache.Cache, cfg ServiceConfig) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("synthesis backend is required")
	}
	codec := backend.Codec()
	if !media.HasDecoder(codec.Codec) {
		return nil, fmt.Errorf("no decoder registered for codec %q", codec.Codec)
	}
	return &Service{
		backend: backend,
		pool:    synthesizer.NewPool(backend, cfg.Pool),
		cache:   NewPhraseCache(store, cfg.Cache),
		cfg:     cfg,
		log:     logger.Named("tts_service"),
	}, nil
}

// Prewarm 预建连接，把建连延迟挪出首句关键路径
func (s *Service) Prewarm(ctx context.Context, n int) error {
	return s.pool.Prewarm(ctx, n)
}

// Pool 暴露连接池，仅用于观测
func (s *Service) Pool() *synthesizer.Pool { return s.pool }

// OpenStream 打开一条合成流。每个 worker 独占一个解码器
// 和切帧器，跨分句复用，避免逐块初始化开销。
func (s *Service) OpenStream(voice synthesizer.VoiceConfig) (*SynthesisStream, error) {
	streamCfg := s.cfg.Stream
	streamCfg.withDefaults()

	codec := s.backend.Codec()
	processors := make([]*SegmentProcessor, 0, streamCfg.MaxParallel)
	for i := 0; i < streamCfg.MaxParallel; i++ {
		dec, err := media.NewDecoder(codec)
		if err != nil {
			for _, p := range processors {
				_ = p.Close()
			}
			return nil, fmt.Errorf("create decoder: %w", err)
		}
		processors = append(processors,
			NewSegmentProcessor(s.pool, s.cache, voice, dec, media.NewPacketizer(s.cfg.Output), s.cfg.Processor))
	}

	st := newSynthesisStream(voice.LanguageCode, processors, streamCfg)
	s.log.Info("打开合成流",
		zap.String("stream_id", st.ID()),
		zap.String("language", voice.LanguageCode),
		zap.String("speaker", voice.Speaker))
	return st, nil
}

// Close 关闭服务并断开池内连接
func (s *Service) Close() {
	s.pool.Close()
}
