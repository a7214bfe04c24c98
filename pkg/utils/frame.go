package utils

import (
	"time"

	"github.com/spf13/cast"
)

// NormalizeFramePeriod 解析帧时长配置（如 "20ms"、"50ms"），返回毫秒数。
// 非法或空值回退到 20ms。
func NormalizeFramePeriod(period string) int {
	if period == "" {
		return 20
	}
	d, err := cast.ToDurationE(period)
	if err != nil || d <= 0 {
		return 20
	}
	ms := int(d / time.Millisecond)
	if ms <= 0 {
		return 20
	}
	return ms
}
