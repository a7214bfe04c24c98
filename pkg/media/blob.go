package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Frame-set blob layout (all little-endian):
//   magic "LVF1" | sampleRate uint32 | channels uint16 | count uint32 |
//   count × ( durationMs uint16 | dataLen uint32 | data )
// Used to persist synthesized frame sequences in the phrase cache, so both
// in-process and redis backends can hold them.

var blobMagic = []byte("LVF1")

// EncodeFrames serializes a frame sequence into a cacheable blob.
// All frames must share one sample rate and channel count.
func EncodeFrames(frames []AudioFrame) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to encode")
	}

	var buf bytes.Buffer
	buf.Write(blobMagic)
	binary.Write(&buf, binary.LittleEndian, uint32(frames[0].SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint16(frames[0].Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(len(frames)))

	for i, frame := range frames {
		if frame.SampleRate != frames[0].SampleRate || frame.Channels != frames[0].Channels {
			return nil, fmt.Errorf("frame %d format mismatch: %d/%d vs %d/%d",
				i, frame.SampleRate, frame.Channels, frames[0].SampleRate, frames[0].Channels)
		}
		binary.Write(&buf, binary.LittleEndian, uint16(frame.DurationMs))
		binary.Write(&buf, binary.LittleEndian, uint32(len(frame.Data)))
		buf.Write(frame.Data)
	}
	return buf.Bytes(), nil
}

// DecodeFrames deserializes a blob produced by EncodeFrames.
// Final is set on the last frame; PlayID and Sequence are left for the caller.
func DecodeFrames(blob []byte) ([]AudioFrame, error) {
	r := bytes.NewReader(blob)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || !bytes.Equal(magic, blobMagic) {
		return nil, fmt.Errorf("invalid frame blob header")
	}

	var sampleRate uint32
	var channels uint16
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &sampleRate); err != nil {
		return nil, fmt.Errorf("read sample rate: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &channels); err != nil {
		return nil, fmt.Errorf("read channels: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read frame count: %w", err)
	}

	frames := make([]AudioFrame, 0, count)
	for i := uint32(0); i < count; i++ {
		var durationMs uint16
		var dataLen uint32
		if err := binary.Read(r, binary.LittleEndian, &durationMs); err != nil {
			return nil, fmt.Errorf("read frame %d duration: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &dataLen); err != nil {
			return nil, fmt.Errorf("read frame %d length: %w", i, err)
		}
		data := make([]byte, dataLen)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("read frame %d data: %w", i, err)
		}
		frames = append(frames, AudioFrame{
			Data:       data,
			SampleRate: int(sampleRate),
			Channels:   int(channels),
			DurationMs: int(durationMs),
		})
	}
	if len(frames) > 0 {
		frames[len(frames)-1].Final = true
	}
	return frames, nil
}
