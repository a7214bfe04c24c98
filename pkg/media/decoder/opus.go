package decoder

import (
	"fmt"

	"github.com/code-100-precent/LingVoice/pkg/media"
	"github.com/hraban/opus"
)

// opusDecoder 将 Opus packet 解码为 16-bit PCM。
// libopus 解码器有内部状态，每个流创建一次并复用。
type opusDecoder struct {
	dec        *opus.Decoder
	sampleRate int
	channels   int
	pcmBuf     []int16
}

func newOpusDecoder(src media.CodecConfig) (media.Decoder, error) {
	sampleRate := src.SampleRate
	if sampleRate == 0 {
		sampleRate = 48000
	}
	channels := src.Channels
	if channels == 0 {
		channels = 1
	}
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}
	return &opusDecoder{
		dec:        dec,
		sampleRate: sampleRate,
		channels:   channels,
		// 单个 opus packet 最长 120ms
		pcmBuf: make([]int16, sampleRate*120/1000*channels),
	}, nil
}

func (d *opusDecoder) Decode(payload []byte) ([]byte, int, error) {
	n, err := d.dec.Decode(payload, d.pcmBuf)
	if err != nil {
		return nil, 0, fmt.Errorf("opus decode failed: %w", err)
	}

	samples := d.pcmBuf[:n*d.channels]
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[i*2] = byte(s & 0xFF)
		pcm[i*2+1] = byte((s >> 8) & 0xFF)
	}
	return pcm, d.sampleRate, nil
}

func (d *opusDecoder) Close() error { return nil }
