package utils

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// quote/dash canonicalization table, applied after NFKC
var textReplacer = strings.NewReplacer(
	"“", `"`, // 左双引号
	"”", `"`, // 右双引号
	"‘", "'", // 左单引号
	"’", "'", // 右单引号
	"—", "-", // em dash
	"–", "-", // en dash
	"‒", "-", // figure dash
	"…", "...", // 省略号
)

// NormalizeText 对合成文本做规范化：NFKC、引号/破折号归一、空白折叠。
// 幂等：NormalizeText(NormalizeText(x)) == NormalizeText(x)。
func NormalizeText(text string) string {
	text = norm.NFKC.String(text)
	text = textReplacer.Replace(text)
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(text)
}

// SignificantRunes 返回文本中有意义的字符数（不含空白和标点），
// 用于判断流结束时残留的尾部碎片是否值得合成。
func SignificantRunes(text string) int {
	count := 0
	for _, r := range text {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
		case strings.ContainsRune(".,;:!?-'\"。，、；：！？…～", r):
		default:
			count++
		}
	}
	return count
}
