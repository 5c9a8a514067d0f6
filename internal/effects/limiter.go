package effects

import "math"

// Limiter is a stereo-linked peak limiter. Dense canvases stack many
// simultaneous tones; the limiter pulls the sum back under the ceiling
// instead of letting the final clamp square it off.
type Limiter struct {
	ceiling float32
	attack  float32 // coefficient
	release float32 // coefficient
	env     float32
}

// NewLimiter creates a limiter.
// ceilingDB: output ceiling in dBFS (e.g. -1)
// attackMs, releaseMs: envelope follower times
func NewLimiter(sampleRate int, ceilingDB, attackMs, releaseMs float32) *Limiter {
	sr := float64(sampleRate)
	return &Limiter{
		ceiling: float32(math.Pow(10, float64(ceilingDB)/20)),
		attack:  coefficient(attackMs, sr),
		release: coefficient(releaseMs, sr),
	}
}

// NewDefaultLimiter is a -1 dBFS limiter with a fast attack.
func NewDefaultLimiter(sampleRate int) *Limiter {
	return NewLimiter(sampleRate, -1, 1, 120)
}

func coefficient(ms float32, sr float64) float32 {
	if ms <= 0 {
		return 1
	}
	return float32(1.0 - math.Exp(-1.0/(float64(ms)*sr/1000.0)))
}

func (l *Limiter) Process(left, right float32) (float32, float32) {
	peak := float32(math.Max(math.Abs(float64(left)), math.Abs(float64(right))))
	if peak > l.env {
		l.env += l.attack * (peak - l.env)
	} else {
		l.env += l.release * (peak - l.env)
	}
	g := l.gain()
	return left * g, right * g
}

func (l *Limiter) gain() float32 {
	if l.env <= l.ceiling || l.ceiling <= 0 {
		return 1
	}
	return l.ceiling / l.env
}

func (l *Limiter) Reset() {
	l.env = 0
}
