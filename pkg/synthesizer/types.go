package synthesizer

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/code-100-precent/LingVoice/pkg/media"
)

// TTSProvider 合成后端类型
type TTSProvider string

const (
	ProviderWebSocket TTSProvider = "websocket"
)

// VoiceConfig 会话级语音配置，由上层在开流时提供。
// 不同取值组合的 Digest 不同，保证短语缓存互不串音。
type VoiceConfig struct {
	LanguageCode string  `json:"languageCode" yaml:"language_code"`
	Speaker      string  `json:"speaker" yaml:"speaker"`
	Pitch        float64 `json:"pitch" yaml:"pitch"`
	Pace         float64 `json:"pace" yaml:"pace"`
	Loudness     float64 `json:"loudness" yaml:"loudness"`
	Model        string  `json:"model" yaml:"model"`
}

// Digest 返回语音配置的稳定指纹，用于缓存键派生
func (vc VoiceConfig) Digest() string {
	h := sha256.New()
	fmt.Fprintf(h, "lang=%s\nspeaker=%s\npitch=%.4f\npace=%.4f\nloudness=%.4f\nmodel=%s\n",
		vc.LanguageCode, vc.Speaker, vc.Pitch, vc.Pace, vc.Loudness, vc.Model)
	return fmt.Sprintf("%x", h.Sum(nil)[:16])
}

// PacketType 服务端消息类型
type PacketType int

const (
	// PacketAudio 携带一段压缩音频负载
	PacketAudio PacketType = iota
	// PacketFinal 当前合成请求的终止信号，每次 flush 恰好一个
	PacketFinal
	// PacketError 服务端显式错误
	PacketError
)

// Packet 从合成连接收到的一条消息
type Packet struct {
	Type    PacketType
	Audio   []byte // PacketAudio 时为解码前的压缩负载
	Message string // PacketError 时的错误信息
}

// Conn 到合成服务的双工流式连接。
// 同一连接同一时刻只能被一个持有者使用。
type Conn interface {
	// SendConfig 发送一次性的语音配置，每条连接生命周期内发送一次
	SendConfig(cfg VoiceConfig) error

	// SendText 发送待合成文本
	SendText(text string) error

	// Flush 触发合成，服务端随后返回音频包和终止信号
	Flush() error

	// Receive 读取下一条服务端消息
	Receive(ctx context.Context) (Packet, error)

	// Close 关闭连接
	Close() error
}

// Backend 合成服务的能力接口。后端选择是构造期决策，
// 热路径上不做运行时分支。
type Backend interface {
	// Connect 建立一条新的双工连接
	Connect(ctx context.Context) (Conn, error)

	// Codec 返回服务端音频负载的编码配置
	Codec() media.CodecConfig

	// Provider 返回后端类型
	Provider() TTSProvider
}
