package media

import (
	"fmt"
	"strings"
	"sync"
)

// Decoder 将一段压缩音频负载解码为 16-bit 小端 PCM。
// 解码失败对该负载不可重试，由调用方按片段失败处理。
type Decoder interface {
	// Decode returns interleaved 16-bit little-endian PCM samples and
	// the sample rate of the decoded audio.
	Decode(payload []byte) (pcm []byte, sampleRate int, err error)

	// Close releases decoder state, if any.
	Close() error
}

// DecoderFactory builds a Decoder for the given source codec configuration.
type DecoderFactory func(src CodecConfig) (Decoder, error)

var (
	decoderMu       sync.RWMutex
	decoderRegistry = map[string]DecoderFactory{}
)

// RegisterDecoder registers a decoder factory under a codec name.
// Later registrations replace earlier ones.
func RegisterDecoder(codec string, factory DecoderFactory) {
	decoderMu.Lock()
	defer decoderMu.Unlock()
	decoderRegistry[strings.ToLower(codec)] = factory
}

// HasDecoder reports whether a factory is registered for the codec name.
func HasDecoder(codec string) bool {
	decoderMu.RLock()
	defer decoderMu.RUnlock()
	_, ok := decoderRegistry[strings.ToLower(codec)]
	return ok
}

// NewDecoder creates a decoder for the codec named in src.
func NewDecoder(src CodecConfig) (Decoder, error) {
	decoderMu.RLock()
	factory, ok := decoderRegistry[strings.ToLower(src.Codec)]
	decoderMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no decoder registered for codec %q", src.Codec)
	}
	return factory(src)
}

func init() {
	RegisterDecoder("pcm", newPCMDecoder)
}

// pcmDecoder passes raw PCM payloads through at the configured sample rate.
type pcmDecoder struct {
	sampleRate int
}

func newPCMDecoder(src CodecConfig) (Decoder, error) {
	sampleRate := src.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	return &pcmDecoder{sampleRate: sampleRate}, nil
}

func (d *pcmDecoder) Decode(payload []byte) ([]byte, int, error) {
	if len(payload)%2 != 0 {
		return nil, 0, fmt.Errorf("pcm payload length %d is not sample-aligned", len(payload))
	}
	return payload, d.sampleRate, nil
}

func (d *pcmDecoder) Close() error { return nil }
