package playback

import (
	"math"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/cbegin/sonodoodle/internal/effects"
	"github.com/cbegin/sonodoodle/internal/palette"
)

type voice struct {
	tone       Tone
	startFrame int64
	stopFrame  int64
	phase      float64
	dt         float64 // phase increment per frame
}

// Mixer sums every sounding tone on a sample clock. It is not safe for
// concurrent use; Context serializes access.
type Mixer struct {
	sampleRate float64
	frame      int64
	pending    []voice // ordered by startFrame
	voices     []voice
	busy       bool
	masterGain uint64
	bus        *effects.Chain
}

func NewMixer(sampleRate int, masterGain float64, bus *effects.Chain) *Mixer {
	m := &Mixer{sampleRate: float64(sampleRate), bus: bus}
	m.SetMasterGain(masterGain)
	return m
}

// Time is the clock position in seconds.
func (m *Mixer) Time() float64 {
	return float64(m.frame) / m.sampleRate
}

// Schedule queues t. Tones whose start already passed begin on the next frame.
func (m *Mixer) Schedule(t Tone) {
	v := voice{
		tone:       t,
		startFrame: int64(math.Round(t.Start * m.sampleRate)),
		stopFrame:  int64(math.Round(t.Stop * m.sampleRate)),
		dt:         t.Frequency / m.sampleRate,
	}
	if v.stopFrame <= v.startFrame || v.stopFrame <= m.frame {
		return
	}
	i := sort.Search(len(m.pending), func(i int) bool {
		return m.pending[i].startFrame > v.startFrame
	})
	m.pending = slices.Insert(m.pending, i, v)
	m.busy = true
}

// Process renders interleaved stereo frames into dst. It reports whether the
// last scheduled tone stopped during this call.
func (m *Mixer) Process(dst []float32) (wentIdle bool) {
	frames := len(dst) / 2
	gain := m.masterGainValue()
	for f := 0; f < frames; f++ {
		for len(m.pending) > 0 && m.pending[0].startFrame <= m.frame {
			m.voices = append(m.voices, m.pending[0])
			m.pending = m.pending[1:]
		}
		t := m.Time()
		var sum float64
		kept := m.voices[:0]
		for _, v := range m.voices {
			if m.frame >= v.stopFrame {
				continue
			}
			sum += m.renderWave(&v) * v.tone.Envelope.Gain(t)
			kept = append(kept, v)
		}
		m.voices = kept
		l, r := m.bus.Process(float32(sum*gain), float32(sum*gain))
		dst[f*2] = clamp(l, -1, 1)
		dst[f*2+1] = clamp(r, -1, 1)
		m.frame++
		if m.busy && len(m.pending) == 0 && len(m.voices) == 0 {
			m.busy = false
			wentIdle = true
		}
	}
	return wentIdle
}

// ActiveVoiceCount returns tones that are sounding or still waiting to start.
func (m *Mixer) ActiveVoiceCount() int {
	return len(m.pending) + len(m.voices)
}

// LastStop returns the latest stop time of any queued or sounding tone, or
// the current time when nothing is scheduled.
func (m *Mixer) LastStop() float64 {
	last := m.frame
	for _, v := range m.voices {
		last = max(last, v.stopFrame)
	}
	for _, v := range m.pending {
		last = max(last, v.stopFrame)
	}
	return float64(last) / m.sampleRate
}

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func (m *Mixer) renderWave(v *voice) float64 {
	v.phase += v.dt
	if v.phase >= 1 {
		v.phase -= 1
	}
	switch v.tone.Variant {
	case palette.VariantSoft:
		return 2*math.Abs(2*v.phase-1) - 1
	default:
		return 2*v.phase - 1 - polyBLEP(v.phase, v.dt)
	}
}

func (m *Mixer) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&m.masterGain, math.Float64bits(gain))
}

func (m *Mixer) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&m.masterGain))
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
