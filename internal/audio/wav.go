// Package audio wraps raw speech samples for playback.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Speech output format.
const (
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16
)

const wavHeaderSize = 44

// WAV prefixes little-endian PCM16 samples with a RIFF/WAVE header.
func WAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if len(pcm)%(channels*BitsPerSample/8) != 0 {
		return nil, fmt.Errorf("pcm length %d is not a whole number of frames", len(pcm))
	}
	blockAlign := channels * BitsPerSample / 8
	byteRate := sampleRate * blockAlign

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16)) // PCM chunk size
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(BitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// Duration returns the playback length of pcm in milliseconds.
func Duration(pcm []byte, sampleRate, channels int) int64 {
	frames := len(pcm) / (channels * BitsPerSample / 8)
	return int64(frames) * 1000 / int64(sampleRate)
}
