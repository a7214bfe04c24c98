package stream

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/code-100-precent/LingVoice/pkg/cache"
	"github.com/code-100-precent/LingVoice/pkg/logger"
	"github.com/code-100-precent/LingVoice/pkg/media"
	"github.com/code-100-precent/LingVoice/pkg/synthesizer"
)

// PhraseCacheConfig 短语缓存配置
type PhraseCacheConfig struct {
	// TTL 条目过期时间，默认 1h
	TTL time.Duration `json:"ttl" yaml:"ttl"`
	// MaxChars 可入缓存的短语长度上限（rune），默认 80。
	// 长文本重复率低，缓存只为高频短语服务。
	MaxChars int `json:"max_chars" yaml:"max_chars"`
}

func (c *PhraseCacheConfig) withDefaults() {
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	if c.MaxChars <= 0 {
		c.MaxChars = 80
	}
}

// PhraseCache 高频短语的合成结果缓存。命中即跳过网络合成，
// 未命中照常走网络，缓存异常不影响正确性。
type PhraseCache struct {
	store cache.Cache
	cfg   PhraseCacheConfig
	log   *zap.Logger
}

// NewPhraseCache 在任意 cache 后端上构建短语缓存
func NewPhraseCache(store cache.Cache, cfg PhraseCacheConfig) *PhraseCache {
	cfg.withDefaults()
	return &PhraseCache{
		store: store,
		cfg:   cfg,
		log:   logger.Named("phrase_cache"),
	}
}

// Cacheable 该短语是否具备入缓存资格
func (pc *PhraseCache) Cacheable(normalizedText string) bool {
	return utf8.RuneCountInString(normalizedText) <= pc.cfg.MaxChars
}

// Lookup 查询缓存，命中返回反序列化后的帧序列
func (pc *PhraseCache) Lookup(ctx context.Context, normalizedText string, vc synthesizer.VoiceConfig) ([]media.AudioFrame, bool) {
	if !pc.Cacheable(normalizedText) {
		return nil, false
	}
	key := pc.key(normalizedText, vc)
	blob, ok := pc.store.Get(ctx, key)
	if !ok {
		return nil, false
	}
	frames, err := media.DecodeFrames(blob)
	if err != nil {
		// 缓存内容损坏，删掉当未命中
		pc.log.Warn("缓存条目损坏", zap.String("key", key), zap.Error(err))
		_ = pc.store.Delete(ctx, key)
		return nil, false
	}
	return frames, true
}

// Insert 写入一条合成结果，超长短语直接忽略
func (pc *PhraseCache) Insert(ctx context.Context, normalizedText string, vc synthesizer.VoiceConfig, frames []media.AudioFrame) {
	if !pc.Cacheable(normalizedText) || len(frames) == 0 {
		return
	}
	blob, err := media.EncodeFrames(frames)
	if err != nil {
		pc.log.Warn("序列化帧失败", zap.Error(err))
		return
	}
	key := pc.key(normalizedText, vc)
	if err := pc.store.Set(ctx, key, blob, pc.cfg.TTL); err != nil {
		pc.log.Warn("写入缓存失败", zap.String("key", key), zap.Error(err))
	}
}

// key 对 (归一化文本, 语音配置) 派生稳定缓存键，
// 不同音色、语速、模型的结果互不串用
func (pc *PhraseCache) key(normalizedText string, vc synthesizer.VoiceConfig) string {
	h := sha256.New()
	h.Write([]byte(vc.Digest()))
	h.Write([]byte{0})
	h.Write([]byte(normalizedText))
	return fmt.Sprintf("tts:phrase:%x", h.Sum(nil)[:20])
}
