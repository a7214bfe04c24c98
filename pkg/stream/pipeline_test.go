package stream

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-100-precent/LingVoice/pkg/media"
	"github.com/code-100-precent/LingVoice/pkg/synthesizer"
)

func TestStreamSingleSegmentOnClose(t *testing.T) {
	backend := &fakeBackend{
		respond: func(string, int) ([]synthesizer.Packet, error) {
			return respondPCM(1, 1600), nil
		},
	}
	svc := newTestService(t, backend, testServiceConfig())

	st, err := svc.OpenStream(synthesizer.VoiceConfig{LanguageCode: "en-US", Speaker: "anushka"})
	require.NoError(t, err)

	// 低于阈值，句号不切分；收流时整体成段
	require.NoError(t, st.Feed("Hello there. "))
	require.NoError(t, st.Feed("How are you?"))
	require.NoError(t, st.Close())

	frames := collectFrames(t, st)
	require.Len(t, frames, 1)
	assert.Equal(t, uint32(0), frames[0].Sequence)
	assert.NoError(t, st.Err())
	assert.Equal(t, StateCompleted, st.State())
	assert.Equal(t, []string{"Hello there. How are you?"}, backend.Texts())
}

func TestStreamZeroSegments(t *testing.T) {
	backend := &fakeBackend{
		respond: func(string, int) ([]synthesizer.Packet, error) {
			return respondPCM(0, 1600), nil
		},
	}
	svc := newTestService(t, backend, testServiceConfig())

	st, err := svc.OpenStream(synthesizer.VoiceConfig{LanguageCode: "en-US"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// 零分句的流也恰好终止一次
	assert.Empty(t, collectFrames(t, st))
	assert.NoError(t, st.Err())
	assert.Equal(t, 0, backend.Dials())

	// 重复关闭无害，输入端已封死
	require.NoError(t, st.Close())
	assert.ErrorIs(t, st.Feed("late"), ErrStreamClosed)
}

func TestStreamOrderingWithSlowFirstSegment(t *testing.T) {
	backend := &fakeBackend{
		respond: func(text string, _ int) ([]synthesizer.Packet, error) {
			fill := byte(0)
			switch {
			case strings.Contains(text, "first"):
				// 首个分句最慢，后续分句先完成
				time.Sleep(150 * time.Millisecond)
				fill = 1
			case strings.Contains(text, "second"):
				fill = 2
			case strings.Contains(text, "third"):
				fill = 3
			}
			return respondPCM(fill, 1600), nil
		},
	}
	svc := newTestService(t, backend, testServiceConfig())

	st, err := svc.OpenStream(synthesizer.VoiceConfig{LanguageCode: "en-US"})
	require.NoError(t, err)

	for _, text := range []string{"the first segment", "the second segment", "the third segment"} {
		require.NoError(t, st.Feed(text))
		require.NoError(t, st.FlushSegmentBoundary())
	}
	require.NoError(t, st.Close())

	frames := collectFrames(t, st)
	require.Len(t, frames, 3)
	require.NoError(t, st.Err())

	// 分句 2、3 先合成完，帧仍按序号 0、1、2 送出
	for i, f := range frames {
		assert.Equal(t, uint32(i), f.Sequence)
		assert.Equal(t, byte(i+1), f.Data[0])
	}
}

func TestStreamSkipsFailedSegmentWhenNotFailFast(t *testing.T) {
	backend := &fakeBackend{
		respond: func(text string, _ int) ([]synthesizer.Packet, error) {
			if strings.Contains(text, "broken") {
				return []synthesizer.Packet{
					{Type: synthesizer.PacketError, Message: "bad input"},
				}, nil
			}
			return respondPCM(7, 1600), nil
		},
	}
	svc := newTestService(t, backend, testServiceConfig())

	st, err := svc.OpenStream(synthesizer.VoiceConfig{LanguageCode: "en-US"})
	require.NoError(t, err)
	require.NoError(t, st.Feed("a broken segment"))
	require.NoError(t, st.FlushSegmentBoundary())
	require.NoError(t, st.Feed("a healthy segment"))
	require.NoError(t, st.Close())

	frames := collectFrames(t, st)
	// 失败分句的音频缺失，后续分句照常播报
	require.Len(t, frames, 1)
	assert.Equal(t, uint32(1), frames[0].Sequence)

	var se *SynthesisError
	require.ErrorAs(t, st.Err(), &se)
	assert.Equal(t, FailureProvider, se.Kind)
}

func TestStreamFailFastAborts(t *testing.T) {
	backend := &fakeBackend{
		respond: func(string, int) ([]synthesizer.Packet, error) {
			return []synthesizer.Packet{
				{Type: synthesizer.PacketError, Message: "bad input"},
			}, nil
		},
	}
	cfg := testServiceConfig()
	cfg.Stream.FailFast = true
	svc := newTestService(t, backend, cfg)

	st, err := svc.OpenStream(synthesizer.VoiceConfig{LanguageCode: "en-US"})
	require.NoError(t, err)
	require.NoError(t, st.Feed("this one fails"))
	require.NoError(t, st.FlushSegmentBoundary())

	// 不关输入端也必须终止：失败即收流
	assert.Empty(t, collectFrames(t, st))
	require.Error(t, st.Err())
	assert.Equal(t, StateCompleted, st.State())
}

func TestStreamInterruptDiscardsPendingText(t *testing.T) {
	backend := &fakeBackend{
		respond: func(string, int) ([]synthesizer.Packet, error) {
			return respondPCM(5, 1600), nil
		},
	}
	svc := newTestService(t, backend, testServiceConfig())

	st, err := svc.OpenStream(synthesizer.VoiceConfig{LanguageCode: "en-US"})
	require.NoError(t, err)

	require.NoError(t, st.Feed("half finished sentence that was never"))
	st.Interrupt()
	require.NoError(t, st.Feed("spoken after the barge in"))
	require.NoError(t, st.Close())

	frames := collectFrames(t, st)
	require.Len(t, frames, 1)
	require.NoError(t, st.Err())
	// 被打断时缓冲中的半句直接丢弃
	assert.Equal(t, []string{"spoken after the barge in"}, backend.Texts())
}

func TestStreamAbortStopsQuickly(t *testing.T) {
	backend := &fakeBackend{
		respond: func(string, int) ([]synthesizer.Packet, error) {
			time.Sleep(50 * time.Millisecond)
			return respondPCM(1, 1600), nil
		},
	}
	svc := newTestService(t, backend, testServiceConfig())

	st, err := svc.OpenStream(synthesizer.VoiceConfig{LanguageCode: "en-US"})
	require.NoError(t, err)
	require.NoError(t, st.Feed("some text to synthesize"))
	require.NoError(t, st.FlushSegmentBoundary())
	st.Abort()

	done := make(chan struct{})
	go func() {
		for range st.Frames() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("中止后流未及时终止")
	}
	assert.ErrorIs(t, st.Feed("more"), ErrStreamClosed)
}

func TestStreamAbortWithBlockedFeedTerminates(t *testing.T) {
	backend := &fakeBackend{
		respond: func(string, int) ([]synthesizer.Packet, error) {
			time.Sleep(300 * time.Millisecond)
			return respondPCM(1, 1600), nil
		},
	}
	cfg := testServiceConfig()
	cfg.Stream = StreamConfig{MaxParallel: 1, QueueSize: 1}
	svc := newTestService(t, backend, cfg)

	st, err := svc.OpenStream(synthesizer.VoiceConfig{LanguageCode: "en-US"})
	require.NoError(t, err)

	// 第一句占住唯一的 worker，第二句填满工作队列
	require.NoError(t, st.Feed("the first segment"))
	require.NoError(t, st.FlushSegmentBoundary())
	require.NoError(t, st.Feed("the second segment"))
	require.NoError(t, st.FlushSegmentBoundary())

	// 第三句已进顺序队列，阻塞在满的工作队列上与 Abort 竞争
	fedErr := make(chan error, 1)
	go func() {
		if err := st.Feed("the third segment"); err != nil {
			fedErr <- err
			return
		}
		fedErr <- st.FlushSegmentBoundary()
	}()
	time.Sleep(50 * time.Millisecond)
	st.Abort()

	select {
	case err := <-fedErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("被中止的投喂未返回")
	}

	// 孤儿分句不能让发射器卡死，输出通道必须关闭
	done := make(chan struct{})
	go func() {
		for range st.Frames() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("中止后流未终止")
	}
	assert.Equal(t, StateCompleted, st.State())
}

func TestServiceRejectsUnknownCodec(t *testing.T) {
	backend := &mp3Backend{}
	_, err := NewService(backend, nil, testServiceConfig())
	assert.Error(t, err)
}

type mp3Backend struct{ fakeBackend }

func (b *mp3Backend) Codec() media.CodecConfig {
	return media.CodecConfig{Codec: "mp3", SampleRate: 24000, Channels: 1}
}
