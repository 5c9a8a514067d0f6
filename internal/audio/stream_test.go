package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

type rampSource struct{ calls int }

func (s *rampSource) Process(dst []float32) {
	s.calls++
	for i := range dst {
		dst[i] = float32(i) * 0.25
	}
}

func TestStreamReaderEncodesFloat32LE(t *testing.T) {
	src := &rampSource{}
	r := NewStreamReader(src)
	p := make([]byte, 8*3+5) // three whole frames plus a partial one
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 24 {
		t.Fatalf("read %d bytes, want 24", n)
	}
	for i := 0; i < 6; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != float32(i)*0.25 {
			t.Fatalf("sample %d = %f", i, got)
		}
	}
	if n, _ := r.Read(make([]byte, 7)); n != 0 || src.calls != 1 {
		t.Fatalf("short read pulled frames: n=%d calls=%d", n, src.calls)
	}
}
