package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 合成链路指标
var (
	metricSegments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lingvoice",
		Subsystem: "tts",
		Name:      "segments_total",
		Help:      "处理过的分句数，按结果分类",
	}, []string{"result"}) // ok / cached / failed / dropped

	metricRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lingvoice",
		Subsystem: "tts",
		Name:      "segment_retries_total",
		Help:      "分句合成重试次数",
	})

	metricFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lingvoice",
		Subsystem: "tts",
		Name:      "frames_emitted_total",
		Help:      "向调用方送出的音频帧数",
	})

	metricSynthesisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lingvoice",
		Subsystem: "tts",
		Name:      "segment_synthesis_seconds",
		Help:      "单个分句从取连接到收到终止信号的耗时",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	metricCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lingvoice",
		Subsystem: "tts",
		Name:      "phrase_cache_lookups_total",
		Help:      "短语缓存查询数，按命中与否分类",
	}, []string{"outcome"}) // hit / miss
)
