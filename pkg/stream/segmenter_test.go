package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdForLanguage(t *testing.T) {
	assert.Equal(t, thresholdLatin, thresholdForLanguage("en-US"))
	assert.Equal(t, thresholdLatin, thresholdForLanguage("xx"))
	assert.Equal(t, thresholdCJK, thresholdForLanguage("zh-CN"))
	assert.Equal(t, thresholdCJK, thresholdForLanguage("ja"))
	assert.Equal(t, thresholdIndicArabic, thresholdForLanguage("hi-IN"))
	assert.Equal(t, thresholdIndicArabic, thresholdForLanguage("ar"))
}

func TestSegmenterHoldsShortTextUntilFlush(t *testing.T) {
	s := NewSegmenter("en-US")

	// 不足阈值，句号不触发断句
	segs := s.Feed("Hello there. How are you?")
	assert.Empty(t, segs)

	// 收尾时完整吐出
	assert.Equal(t, "Hello there. How are you?", s.Flush())
	assert.Empty(t, s.Pending())
}

func TestSegmenterCutsAtSentenceStopPastThreshold(t *testing.T) {
	s := NewSegmenter("en-US")
	first := "The quick brown fox jumps over the lazy dog near the old river."
	second := "It was a bright morning."

	segs := s.Feed(first + " " + second)
	require.Len(t, segs, 1)
	assert.Equal(t, first, segs[0])

	// 余量继续累积
	assert.Equal(t, second, s.Flush())
}

func TestSegmenterScriptFullStop(t *testing.T) {
	s := NewSegmenter("zh-CN")
	first := "今天的天气真是好得不得了啊朋友们。"
	second := "我们一起出门去散散步吧。"

	segs := s.Feed(first + second)
	require.Len(t, segs, 1)
	assert.Equal(t, first, segs[0])
	assert.Equal(t, second, s.Flush())
}

func TestSegmenterPunctuationBeforeNewline(t *testing.T) {
	s := NewSegmenter("en-US")
	head := strings.Repeat("lorem ipsum ", 5) + "first item,"
	text := head + "\nsecond item continues"

	segs := s.Feed(text)
	require.Len(t, segs, 1)
	assert.Equal(t, head, segs[0])
	assert.Equal(t, "second item continues", s.Flush())
}

func TestSegmenterEmitsMultipleSegmentsPerFeed(t *testing.T) {
	s := NewSegmenter("en-US")
	a := "The meeting starts at nine so please arrive early with the printed report!"
	b := "Afterwards we will walk together to the station and catch the express train?"

	segs := s.Feed(a + " " + b + " tail")
	require.Len(t, segs, 2)
	assert.Equal(t, a, segs[0])
	assert.Equal(t, b, segs[1])
	assert.Equal(t, "tail", s.Flush())
}

func TestSegmenterDropsNoiseFragmentOnFlush(t *testing.T) {
	s := NewSegmenter("en-US")
	s.Feed("a")
	assert.Equal(t, "", s.Flush())

	s.Feed("!?")
	assert.Equal(t, "", s.Flush())

	// 两个有效字符起步就保留
	s.Feed("ok")
	assert.Equal(t, "ok", s.Flush())
}

func TestSegmenterBoundaryAtEndOfInput(t *testing.T) {
	s := NewSegmenter("en-US")
	text := "Every line of this rather long sentence keeps going until it finally stops."

	// 句号落在缓冲区末尾也算边界
	segs := s.Feed(text)
	require.Len(t, segs, 1)
	assert.Equal(t, text, segs[0])
	assert.Equal(t, "", s.Flush())
}
