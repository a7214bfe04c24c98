package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/code-100-precent/LingVoice/pkg/cache"
	"github.com/code-100-precent/LingVoice/pkg/media"
	"github.com/code-100-precent/LingVoice/pkg/synthesizer"
)

// fakeBackend 可编程的合成后端。respond 决定每次 flush
// 返回的消息序列或网络错误，attempt 为全局第几次 flush。
type fakeBackend struct {
	mu      sync.Mutex
	dials   int
	texts   []string
	flushes atomic.Int32

	respond func(text string, attempt int) ([]synthesizer.Packet, error)
}

func (b *fakeBackend) Connect(context.Context) (synthesizer.Conn, error) {
	b.mu.Lock()
	b.dials++
	b.mu.Unlock()
	return &scriptedConn{backend: b}, nil
}

func (b *fakeBackend) Codec() media.CodecConfig {
	return media.CodecConfig{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 16}
}

func (b *fakeBackend) Provider() synthesizer.TTSProvider { return "fake" }

func (b *fakeBackend) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *fakeBackend) Texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.texts...)
}

type scriptedConn struct {
	backend *fakeBackend
	text    string
	queue   []synthesizer.Packet
	recvErr error
}

func (c *scriptedConn) SendConfig(synthesizer.VoiceConfig) error { return nil }

func (c *scriptedConn) SendText(text string) error {
	c.text = text
	return nil
}

func (c *scriptedConn) Flush() error {
	attempt := int(c.backend.flushes.Add(1))
	c.backend.mu.Lock()
	c.backend.texts = append(c.backend.texts, c.text)
	c.backend.mu.Unlock()
	c.queue, c.recvErr = c.backend.respond(c.text, attempt)
	return nil
}

func (c *scriptedConn) Receive(ctx context.Context) (synthesizer.Packet, error) {
	if c.recvErr != nil {
		return synthesizer.Packet{}, c.recvErr
	}
	if len(c.queue) == 0 {
		return synthesizer.Packet{}, fmt.Errorf("no scripted packets left")
	}
	pkt := c.queue[0]
	c.queue = c.queue[1:]
	return pkt, nil
}

func (c *scriptedConn) Close() error { return nil }

// silentBackend 模拟 flush 后彻底失联的服务端：
// 连接建得起来，但再也收不到任何回包
type silentBackend struct {
	fakeBackend
}

func (b *silentBackend) Connect(context.Context) (synthesizer.Conn, error) {
	b.mu.Lock()
	b.dials++
	b.mu.Unlock()
	return &silentConn{}, nil
}

type silentConn struct{}

func (c *silentConn) SendConfig(synthesizer.VoiceConfig) error { return nil }
func (c *silentConn) SendText(string) error                    { return nil }
func (c *silentConn) Flush() error                             { return nil }
func (c *silentConn) Close() error                             { return nil }

func (c *silentConn) Receive(ctx context.Context) (synthesizer.Packet, error) {
	<-ctx.Done()
	return synthesizer.Packet{}, ctx.Err()
}

// respondPCM 返回 n 字节 PCM（填充 fill）外加终止信号
func respondPCM(fill byte, n int) []synthesizer.Packet {
	data := make([]byte, n)
	for i := range data {
		data[i] = fill
	}
	return []synthesizer.Packet{
		{Type: synthesizer.PacketAudio, Audio: data},
		{Type: synthesizer.PacketFinal},
	}
}

func testServiceConfig() ServiceConfig {
	return ServiceConfig{
		Pool: synthesizer.PoolConfig{
			MaxConnections: 4,
			AcquireTimeout: time.Second,
			MaxSessionAge:  time.Minute,
		},
		Processor: ProcessorConfig{
			MaxRetries:        3,
			BackoffBase:       5 * time.Millisecond,
			BackoffCap:        20 * time.Millisecond,
			CompletionTimeout: 2 * time.Second,
		},
		Stream: StreamConfig{MaxParallel: 2, QueueSize: 16},
		Cache:  PhraseCacheConfig{TTL: time.Hour, MaxChars: 80},
		Output: media.StreamFormat{SampleRate: 16000, BitDepth: 16, Channels: 1, FrameDuration: 50},
	}
}

func newTestService(t *testing.T, backend synthesizer.Backend, cfg ServiceConfig) *Service {
	t.Helper()
	store := cache.NewLocalCache(cache.LocalConfig{MaxSize: 128, DefaultExpiration: time.Hour})
	svc, err := NewService(backend, store, cfg)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

// collectFrames 读空输出通道并返回全部帧
func collectFrames(t *testing.T, st *SynthesisStream) []media.AudioFrame {
	t.Helper()
	var frames []media.AudioFrame
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-st.Frames():
			if !ok {
				return frames
			}
			frames = append(frames, f)
		case <-timeout:
			t.Fatal("等待流终止超时")
		}
	}
}
