package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/code-100-precent/LingVoice/pkg/logger"
	"github.com/code-100-precent/LingVoice/pkg/media"
	"github.com/code-100-precent/LingVoice/pkg/synthesizer"
	"github.com/code-100-precent/LingVoice/pkg/utils"
)

// ProcessorConfig 单分句处理配置
type ProcessorConfig struct {
	// MaxRetries 瞬时失败的最大尝试次数，默认 3
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	// BackoffBase 重试退避基数，默认 500ms
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"`
	// BackoffCap 退避上限，默认 4s
	BackoffCap time.Duration `json:"backoff_cap" yaml:"backoff_cap"`
	// CompletionTimeout 等待终止信号的时间预算，默认 30s
	CompletionTimeout time.Duration `json:"completion_timeout" yaml:"completion_timeout"`
}

func (c *ProcessorConfig) withDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 4 * time.Second
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = 30 * time.Second
	}
}

// SegmentProcessor 驱动单个分句的完整合成生命周期：
// 归一化 → 查缓存 → 取连接 → 收发 → 解码切帧 → 回填缓存。
// 解码器和切帧器单 worker 独占，跨分句复用。
type SegmentProcessor struct {
	pool       *synthesizer.Pool
	cache      *PhraseCache
	voice      synthesizer.VoiceConfig
	digest     string
	decoder    media.Decoder
	packetizer *media.Packetizer
	cfg        ProcessorConfig
	log        *zap.Logger
}

// NewSegmentProcessor 创建处理器，decoder 与 packetizer 的所有权转移至处理器
func NewSegmentProcessor(pool *synthesizer.Pool, cache *PhraseCache, voice synthesizer.VoiceConfig,
	decoder media.Decoder, packetizer *media.Packetizer, cfg ProcessorConfig) *SegmentProcessor {
	cfg.withDefaults()
	return &SegmentProcessor{
		pool:       pool,
		cache:      cache,
		voice:      voice,
		digest:     voice.Digest(),
		decoder:    decoder,
		packetizer: packetizer,
		cfg:        cfg,
		log:        logger.Named("segment_processor"),
	}
}

// Close 释放解码器资源
func (p *SegmentProcessor) Close() error {
	return p.decoder.Close()
}

// Process 处理一个分句，成功时按顺序向 emit 送出全部帧。
// 瞬时失败换连接重试，退避按 min(base*2^(n-1), cap) 递增；
// 非瞬时失败与重试耗尽直接上抛。
func (p *SegmentProcessor) Process(ctx context.Context, seg *Segment, emit func(media.AudioFrame)) error {
	text := utils.NormalizeText(seg.Text)
	if text == "" {
		metricSegments.WithLabelValues("dropped").Inc()
		return nil
	}

	if frames, ok := p.cache.Lookup(ctx, text, p.voice); ok {
		metricCacheLookups.WithLabelValues("hit").Inc()
		metricSegments.WithLabelValues("cached").Inc()
		p.emitAll(seg, frames, emit)
		return nil
	}
	metricCacheLookups.WithLabelValues("miss").Inc()

	var lastErr *SynthesisError
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			metricRetries.Inc()
			delay := p.backoff(attempt)
			p.log.Warn("分句合成重试",
				zap.Uint32("seq", seg.Sequence),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		start := time.Now()
		frames, serr := p.attempt(ctx, seg, text)
		if serr == nil {
			metricSynthesisDuration.Observe(time.Since(start).Seconds())
			p.cache.Insert(ctx, text, p.voice, frames)
			p.emitAll(seg, frames, emit)
			metricSegments.WithLabelValues("ok").Inc()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = serr
		if !serr.Kind.Retryable() {
			metricSegments.WithLabelValues("failed").Inc()
			return serr
		}
	}

	metricSegments.WithLabelValues("failed").Inc()
	return newSynthesisError(FailureExhausted, seg.Sequence, p.cfg.MaxRetries,
		fmt.Errorf("%d attempts exhausted: %w", p.cfg.MaxRetries, lastErr))
}

// backoff 第 n 次尝试前的等待时长，n 从 2 起
func (p *SegmentProcessor) backoff(attempt int) time.Duration {
	delay := p.cfg.BackoffBase << uint(attempt-2)
	if delay > p.cfg.BackoffCap || delay <= 0 {
		delay = p.cfg.BackoffCap
	}
	return delay
}

// attempt 单次网络合成尝试。取连接、交换消息、解码切帧，
// 失败时按错误类别决定归还还是淘汰连接。
func (p *SegmentProcessor) attempt(ctx context.Context, seg *Segment, text string) ([]media.AudioFrame, *SynthesisError) {
	pc, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, newSynthesisError(FailureConnect, seg.Sequence, 0, err)
	}

	frames, serr := p.exchange(ctx, pc, seg, text)
	if serr != nil {
		// 服务端显式报错时协议已正常收尾，连接可复用；
		// 其余失败连接上可能残留未读消息，必须淘汰
		if serr.Kind == FailureProvider {
			p.pool.Release(pc)
		} else {
			p.pool.Evict(pc)
		}
		return nil, serr
	}
	p.pool.Release(pc)
	return frames, nil
}

func (p *SegmentProcessor) exchange(ctx context.Context, pc *synthesizer.PooledConn, seg *Segment, text string) ([]media.AudioFrame, *SynthesisError) {
	// 复用已配置的连接时跳过 config，配置指纹不符则重发
	if !pc.Configured || pc.ConfigDigest != p.digest {
		if err := pc.Conn.SendConfig(p.voice); err != nil {
			return nil, newSynthesisError(FailureTransient, seg.Sequence, 0, fmt.Errorf("send config: %w", err))
		}
		pc.Configured = true
		pc.ConfigDigest = p.digest
	}

	if err := pc.Conn.SendText(text); err != nil {
		return nil, newSynthesisError(FailureTransient, seg.Sequence, 0, fmt.Errorf("send text: %w", err))
	}
	if err := pc.Conn.Flush(); err != nil {
		return nil, newSynthesisError(FailureTransient, seg.Sequence, 0, fmt.Errorf("flush: %w", err))
	}

	recvCtx, cancel := context.WithTimeout(ctx, p.cfg.CompletionTimeout)
	defer cancel()

	p.packetizer.Reset()
	var frames []media.AudioFrame
	for {
		pkt, err := pc.Conn.Receive(recvCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || recvCtx.Err() == context.DeadlineExceeded {
				return nil, newSynthesisError(FailureCompletionTimeout, seg.Sequence, 0, err)
			}
			return nil, newSynthesisError(FailureTransient, seg.Sequence, 0, fmt.Errorf("receive: %w", err))
		}

		switch pkt.Type {
		case synthesizer.PacketAudio:
			pcm, rate, derr := p.decoder.Decode(pkt.Audio)
			if derr != nil {
				return nil, newSynthesisError(FailureDecode, seg.Sequence, 0, derr)
			}
			frames = append(frames, p.packetizer.Write(pcm, rate)...)

		case synthesizer.PacketFinal:
			if tail := p.packetizer.Flush(); tail != nil {
				frames = append(frames, *tail)
			}
			return frames, nil

		case synthesizer.PacketError:
			return nil, newSynthesisError(FailureProvider, seg.Sequence, 0, fmt.Errorf("provider error: %s", pkt.Message))
		}
	}
}

// emitAll 为帧盖上分句序号与播放代次后依序送出，末帧带分句终止标记
func (p *SegmentProcessor) emitAll(seg *Segment, frames []media.AudioFrame, emit func(media.AudioFrame)) {
	for i, f := range frames {
		f.Sequence = seg.Sequence
		f.PlayID = seg.PlayID
		f.Final = i == len(frames)-1
		emit(f)
		metricFrames.Inc()
	}
}
