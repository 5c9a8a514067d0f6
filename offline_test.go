package sonodoodle

import (
	"encoding/binary"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderCoversEveryTone(t *testing.T) {
	p := Params{TotalDuration: 0.4, NoteDuration: 0.2, MinFreq: 100, MaxFreq: 800}
	img := painted(4, 3, DefaultPalette().Entries[0].Color)
	samples, err := Render(img, testRate, WithParams(p), WithLogger(quietLogger()))
	require.NoError(t, err)

	// Last column starts at 0.3 and stops 0.1s after its 0.2s note.
	require.InDelta(t, 0.6*testRate*2, float64(len(samples)), 2)

	var energy float64
	for i, s := range samples {
		require.LessOrEqual(t, math.Abs(float64(s)), 1.0, "sample %d out of range", i)
		energy += math.Abs(float64(s))
	}
	require.Greater(t, energy, 0.0)
}

func TestRenderTransparentIsEmpty(t *testing.T) {
	samples, err := Render(image.NewNRGBA(image.Rect(0, 0, 3, 3)), testRate, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Empty(t, samples)
}

func TestRenderIsDeterministic(t *testing.T) {
	p := Params{TotalDuration: 0.3, NoteDuration: 0.1, MinFreq: 100, MaxFreq: 800}
	img := painted(3, 5, DefaultPalette().Entries[6].Color)
	img.SetNRGBA(1, 4, DefaultPalette().Entries[2].Color)
	a, err := Render(img, testRate, WithParams(p), WithLogger(quietLogger()))
	require.NoError(t, err)
	b, err := Render(img, testRate, WithParams(p), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestEncodeWAVFloat32LEHeader(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1}
	wav := EncodeWAVFloat32LE(samples, 48000, 2)
	require.Len(t, wav, 44+len(samples)*4)
	require.Equal(t, "RIFF", string(wav[0:4]))
	require.Equal(t, "WAVE", string(wav[8:12]))
	require.Equal(t, uint16(3), binary.LittleEndian.Uint16(wav[20:]))
	require.Equal(t, uint16(2), binary.LittleEndian.Uint16(wav[22:]))
	require.Equal(t, uint32(48000), binary.LittleEndian.Uint32(wav[24:]))
	require.Equal(t, uint32(48000*8), binary.LittleEndian.Uint32(wav[28:]))
	require.Equal(t, uint16(32), binary.LittleEndian.Uint16(wav[34:]))
	require.Equal(t, uint32(16), binary.LittleEndian.Uint32(wav[40:]))
	require.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(wav[48:])))
}

func TestEncodeWAVPCM16LE(t *testing.T) {
	samples := []float32{0, 1, -1, 2}
	wav := EncodeWAVPCM16LE(samples, 44100, 2)
	require.Len(t, wav, 44+len(samples)*2)
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:]))
	require.Equal(t, uint32(44100*4), binary.LittleEndian.Uint32(wav[28:]))
	require.Equal(t, uint16(4), binary.LittleEndian.Uint16(wav[32:]))
	require.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:]))
	read := func(i int) int16 { return int16(binary.LittleEndian.Uint16(wav[44+i*2:])) }
	require.Equal(t, int16(0), read(0))
	require.Equal(t, int16(math.MaxInt16), read(1))
	require.Equal(t, int16(-math.MaxInt16), read(2))
	require.Equal(t, int16(math.MaxInt16), read(3), "clipped")
}
