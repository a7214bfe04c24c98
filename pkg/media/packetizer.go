package media

// Packetizer 将连续的 PCM 样本流切成固定时长的音频帧。
// 不足一帧的残留样本保留在内部缓冲里，由 Flush 取出。
type Packetizer struct {
	format StreamFormat
	buf    []byte
}

// NewPacketizer creates a packetizer producing frames of the given format.
func NewPacketizer(format StreamFormat) *Packetizer {
	if format.FrameDuration <= 0 {
		format.FrameDuration = 50
	}
	if format.Channels <= 0 {
		format.Channels = 1
	}
	if format.BitDepth <= 0 {
		format.BitDepth = 16
	}
	return &Packetizer{
		format: format,
		buf:    make([]byte, 0, format.FrameBytes()*2),
	}
}

// Write appends PCM samples (at sourceRate) and returns all complete frames
// now available. Samples are resampled to the packetizer's rate first.
func (p *Packetizer) Write(pcm []byte, sourceRate int) []AudioFrame {
	if sourceRate != 0 && sourceRate != p.format.SampleRate {
		pcm = Resample(pcm, sourceRate, p.format.SampleRate)
	}
	p.buf = append(p.buf, pcm...)

	frameBytes := p.format.FrameBytes()
	var frames []AudioFrame
	for len(p.buf) >= frameBytes {
		data := make([]byte, frameBytes)
		copy(data, p.buf[:frameBytes])
		p.buf = p.buf[frameBytes:]
		frames = append(frames, p.newFrame(data))
	}
	return frames
}

// Flush returns the trailing partial frame, if any, and resets the buffer.
func (p *Packetizer) Flush() *AudioFrame {
	if len(p.buf) == 0 {
		return nil
	}
	data := make([]byte, len(p.buf))
	copy(data, p.buf)
	p.buf = p.buf[:0]
	frame := p.newFrame(data)
	if bytesPerMs := p.format.SampleRate * p.format.Channels * p.format.BitDepth / 8 / 1000; bytesPerMs > 0 {
		frame.DurationMs = len(data) / bytesPerMs
	}
	return &frame
}

// Reset 丢弃缓冲中的残留样本
func (p *Packetizer) Reset() {
	p.buf = p.buf[:0]
}

// Format returns the output frame format.
func (p *Packetizer) Format() StreamFormat {
	return p.format
}

func (p *Packetizer) newFrame(data []byte) AudioFrame {
	return AudioFrame{
		Data:       data,
		SampleRate: p.format.SampleRate,
		Channels:   p.format.Channels,
		DurationMs: p.format.FrameDuration,
	}
}
