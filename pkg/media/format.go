package media

// StreamFormat 音频流格式
type StreamFormat struct {
	SampleRate    int `json:"sample_rate" yaml:"sample_rate"`
	BitDepth      int `json:"bit_depth" yaml:"bit_depth"`
	Channels      int `json:"channels" yaml:"channels"`
	FrameDuration int `json:"frame_duration" yaml:"frame_duration"` // 毫秒
}

// CodecConfig 编解码配置
type CodecConfig struct {
	Codec      string `json:"codec" yaml:"codec"` // pcm, wav, opus, mp3, ...
	SampleRate int    `json:"sample_rate" yaml:"sample_rate"`
	Channels   int    `json:"channels" yaml:"channels"`
	BitDepth   int    `json:"bit_depth" yaml:"bit_depth"`
}

// FrameBytes returns the number of PCM bytes in one frame of this format.
func (f StreamFormat) FrameBytes() int {
	return f.SampleRate * f.FrameDuration / 1000 * f.Channels * f.BitDepth / 8
}

// AudioFrame 固定时长的 PCM 音频帧。帧一旦发出即不可变，
// 所有权转移给流的有序输出。
type AudioFrame struct {
	Data       []byte
	SampleRate int
	Channels   int
	DurationMs int
	PlayID     string
	Sequence   uint32
	Final      bool // 所属片段的最后一帧
}
