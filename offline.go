package sonodoodle

import (
	"encoding/binary"
	"image"
	"math"

	intpb "github.com/cbegin/sonodoodle/internal/playback"
)

// renderChunk is the number of frames rendered per mixer call.
const renderChunk = 1024

// Render plays img against an offline clock and returns the interleaved stereo
// samples from time zero until the last tone stops.
func Render(img image.Image, sampleRate int, opts ...Option) ([]float32, error) {
	opts = append(opts, WithOutput(intpb.Offline))
	s, err := New(sampleRate, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	sum, err := s.Sonify(img)
	if err != nil {
		return nil, err
	}
	frames := int(math.Ceil(sum.End * float64(s.playback.SampleRate())))
	out := make([]float32, frames*2)
	for off := 0; off < len(out); off += renderChunk * 2 {
		end := min(off+renderChunk*2, len(out))
		s.playback.Render(out[off:end])
	}
	return out, nil
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	out := make([]byte, 44+dataSize)
	writeWAVHeader(out, 3, sampleRate, channels, 32, dataSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}

// EncodeWAVPCM16LE quantizes samples to signed 16-bit PCM.
func EncodeWAVPCM16LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 2
	out := make([]byte, 44+dataSize)
	writeWAVHeader(out, 1, sampleRate, channels, 16, dataSize)
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		binary.LittleEndian.PutUint16(out[44+i*2:], uint16(int16(math.Round(v*math.MaxInt16))))
	}
	return out
}

func writeWAVHeader(out []byte, format uint16, sampleRate, channels, bits, dataSize int) {
	blockAlign := channels * bits / 8
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], format)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], uint16(bits))
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
}
