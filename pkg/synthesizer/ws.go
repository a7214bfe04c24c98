package synthesizer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/code-100-precent/LingVoice/pkg/media"
	"github.com/code-100-precent/LingVoice/pkg/utils"
)

// WSConfig websocket 合成后端配置
type WSConfig struct {
	URL            string        `json:"url" yaml:"url"`
	APIKey         string        `json:"api_key" yaml:"api_key"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	// Codec 服务端返回的音频编码，默认 opus/24000/1
	Codec media.CodecConfig `json:"codec" yaml:"codec"`
}

// NewWSConfigFromEnv 从环境变量构造后端配置
func NewWSConfigFromEnv() WSConfig {
	return WSConfig{
		URL:            utils.GetEnv("TTS_WS_URL"),
		APIKey:         utils.GetEnv("TTS_API_KEY"),
		ConnectTimeout: utils.GetDurationEnv("TTS_CONNECT_TIMEOUT", 10*time.Second),
		Codec: media.CodecConfig{
			Codec:      utils.GetEnvOr("TTS_CODEC", "opus"),
			SampleRate: utils.GetIntEnv("TTS_SAMPLE_RATE", 24000),
			Channels:   utils.GetIntEnv("TTS_CHANNELS", 1),
			BitDepth:   16,
		},
	}
}

// WSBackend 基于 websocket 双工流的合成后端
type WSBackend struct {
	cfg WSConfig
}

func NewWSBackend(cfg WSConfig) (*WSBackend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("websocket backend: url is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Codec.Codec == "" {
		cfg.Codec = media.CodecConfig{Codec: "opus", SampleRate: 24000, Channels: 1, BitDepth: 16}
	}
	return &WSBackend{cfg: cfg}, nil
}

func (b *WSBackend) Provider() TTSProvider { return ProviderWebSocket }

func (b *WSBackend) Codec() media.CodecConfig { return b.cfg.Codec }

// Connect 建立 websocket 连接，握手超时由 ConnectTimeout 控制
func (b *WSBackend) Connect(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: b.cfg.ConnectTimeout,
	}
	header := http.Header{}
	if b.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	dialCtx, cancel := context.WithTimeout(ctx, b.cfg.ConnectTimeout)
	defer cancel()

	ws, resp, err := dialer.DialContext(dialCtx, b.cfg.URL, header)
	if err != nil {
		if resp != nil {
			log.Errorf("连接合成服务失败: %v, status=%d", err, resp.StatusCode)
		} else {
			log.Errorf("连接合成服务失败: %v", err)
		}
		return nil, err
	}
	log.Debugf("合成服务连接已建立: %s", b.cfg.URL)
	return &wsConn{ws: ws}, nil
}

// 客户端消息
type wsClientMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type wsTextData struct {
	Text string `json:"text"`
}

// 服务端消息
type wsServerMessage struct {
	Type string `json:"type"`
	Data struct {
		Audio     string `json:"audio,omitempty"`
		EventType string `json:"event_type,omitempty"`
		Message   string `json:"message,omitempty"`
	} `json:"data"`
}

type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closed  bool
	mu      sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *wsConn) SendConfig(cfg VoiceConfig) error {
	return c.writeJSON(wsClientMessage{Type: "config", Data: cfg})
}

func (c *wsConn) SendText(text string) error {
	return c.writeJSON(wsClientMessage{Type: "text", Data: wsTextData{Text: text}})
}

func (c *wsConn) Flush() error {
	return c.writeJSON(wsClientMessage{Type: "flush"})
}

// Receive 读取下一条服务端消息。ctx 截止时间映射为读超时。
func (c *wsConn) Receive(ctx context.Context) (Packet, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetReadDeadline(deadline)
	} else {
		_ = c.ws.SetReadDeadline(time.Time{})
	}

	for {
		var msg wsServerMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			return Packet{}, err
		}

		switch msg.Type {
		case "audio":
			payload, err := base64.StdEncoding.DecodeString(msg.Data.Audio)
			if err != nil {
				return Packet{}, fmt.Errorf("解码音频负载失败: %w", err)
			}
			return Packet{Type: PacketAudio, Audio: payload}, nil
		case "event":
			if msg.Data.EventType == "final" {
				return Packet{Type: PacketFinal}, nil
			}
			// 未知事件类型直接跳过，读下一条
			log.Debugf("忽略未知事件: %s", msg.Data.EventType)
		case "error":
			return Packet{Type: PacketError, Message: msg.Data.Message}, nil
		default:
			raw, _ := json.Marshal(msg)
			log.Warnf("忽略未知消息类型: %s", string(raw))
		}
	}
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}
