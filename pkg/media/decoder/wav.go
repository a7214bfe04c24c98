package decoder

import (
	"bytes"
	"fmt"
	"io"

	"github.com/code-100-precent/LingVoice/pkg/media"
	"github.com/youpy/go-wav"
)

// wavDecoder 剥离 WAV 容器头，返回 data chunk 中的原始 PCM。
// 仅支持 16-bit PCM 负载。
type wavDecoder struct{}

func newWAVDecoder(media.CodecConfig) (media.Decoder, error) {
	return &wavDecoder{}, nil
}

func (d *wavDecoder) Decode(payload []byte) ([]byte, int, error) {
	reader := wav.NewReader(bytes.NewReader(payload))
	format, err := reader.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("invalid wav payload: %w", err)
	}
	if format.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported wav bit depth: %d", format.BitsPerSample)
	}

	pcm, err := io.ReadAll(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read wav samples: %w", err)
	}
	return pcm, int(format.SampleRate), nil
}

func (d *wavDecoder) Close() error { return nil }

func init() {
	media.RegisterDecoder("opus", newOpusDecoder)
	media.RegisterDecoder("wav", newWAVDecoder)
}
