package stream

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"

	"github.com/code-100-precent/LingVoice/pkg/utils"
)

// 分句边界模式，按优先级依次尝试。
// 匹配第一子组为句末标点，标点之前的文本连同标点一起成段。
var (
	// 各文种专用句号 + 空白或缓冲区末尾
	scriptStopPattern = regexp.MustCompile(`([。．！？；…।॥؟۔])(\s|$)`)
	// 通用句末标点 + 空白或缓冲区末尾
	latinStopPattern = regexp.MustCompile(`([.!?])(\s|$)`)
	// 任意标点紧跟换行
	newlinePattern = regexp.MustCompile(`([,;:、，；：.!?。！？])\n`)
)

var boundaryPatterns = []*regexp.Regexp{scriptStopPattern, latinStopPattern, newlinePattern}

// 各语系的最小成段长度（按 rune 计）。拉丁文句子偏长，阈值取大；
// 中日韩单字信息密度高，阈值取小。
const (
	thresholdLatin       = 60
	thresholdCJK         = 20
	thresholdIndicArabic = 40
)

// thresholdForLanguage 根据语言代码选择分句阈值。
// 代码经 BCP 47 规范化后按基础语言归类，解析失败按拉丁文处理。
func thresholdForLanguage(languageCode string) int {
	tag, err := language.Parse(languageCode)
	if err != nil {
		return thresholdLatin
	}
	base, _ := tag.Base()
	switch base.String() {
	case "zh", "ja", "ko", "yue":
		return thresholdCJK
	case "hi", "mr", "bn", "ta", "te", "kn", "ml", "gu", "pa", "ar", "ur", "fa":
		return thresholdIndicArabic
	default:
		return thresholdLatin
	}
}

// Segmenter 增量分句器。吃进 LLM 逐 token 输出的文本碎片，
// 攒够阈值后按标点切出完整句子。非并发安全，单流单实例。
type Segmenter struct {
	threshold   int
	minFragment int
	buf         strings.Builder
}

// NewSegmenter 按语言代码创建分句器
func NewSegmenter(languageCode string) *Segmenter {
	return &Segmenter{
		threshold:   thresholdForLanguage(languageCode),
		minFragment: 2,
	}
}

// Feed 追加一段文本，返回零或多个切出的完整句子
func (s *Segmenter) Feed(fragment string) []string {
	if fragment == "" {
		return nil
	}
	s.buf.WriteString(fragment)

	var segments []string
	for {
		seg, rest, ok := s.cut(s.buf.String())
		if !ok {
			break
		}
		segments = append(segments, seg)
		s.buf.Reset()
		s.buf.WriteString(rest)
	}
	return segments
}

// cut 在缓冲区达到阈值时按优先级查找边界。
// 返回切出的句子、余量和是否命中。
func (s *Segmenter) cut(text string) (string, string, bool) {
	if utf8.RuneCountInString(text) < s.threshold {
		return "", "", false
	}
	for _, pattern := range boundaryPatterns {
		loc := pattern.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		// 子组 1 为标点本身，句子含标点，边界空白丢弃
		segEnd := loc[3]
		seg := strings.TrimSpace(text[:segEnd])
		rest := strings.TrimLeft(text[loc[1]:], " \t\n\r")
		if seg == "" {
			continue
		}
		return seg, rest, true
	}
	return "", "", false
}

// Flush 取出剩余未成段的文本并清空缓冲区。
// 过短的尾部碎片视为噪声丢弃，返回空串。
func (s *Segmenter) Flush() string {
	text := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if text == "" {
		return ""
	}
	if utils.SignificantRunes(text) < s.minFragment {
		return ""
	}
	return text
}

// Pending 当前缓冲区内容，仅用于观测
func (s *Segmenter) Pending() string {
	return s.buf.String()
}
