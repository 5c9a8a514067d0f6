// Package envelope computes the attack-decay-sustain-release gain curve
// applied to every scheduled tone.
//
// The curve is described by absolute breakpoints in seconds and is evaluated
// with the ramp laws of an automation timeline: linear ramps interpolate
// linearly, exponential ramps interpolate geometrically between their end
// values.
package envelope

import "math"

const (
	AttackSec     = 0.01
	DecaySec      = 0.2
	SustainFactor = 0.3
	ReleasePoint  = 0.7 // fraction of the note duration where release may begin
	Floor         = 0.001
)

type Envelope struct {
	Start        float64
	Attack       float64 // seconds from Start to Peak
	Decay        float64 // seconds from the attack end to SustainLevel
	Peak         float64
	SustainLevel float64
	ReleaseStart float64 // absolute
	End          float64 // absolute; gain reaches Floor here
	Floor        float64
}

// New builds the envelope for a note starting at start and lasting duration
// seconds with the given peak gain.
func New(start, duration, baseGain float64) Envelope {
	decayEnd := start + AttackSec + DecaySec
	return Envelope{
		Start:        start,
		Attack:       AttackSec,
		Decay:        DecaySec,
		Peak:         baseGain,
		SustainLevel: baseGain * SustainFactor,
		ReleaseStart: math.Max(decayEnd, start+duration*ReleasePoint),
		End:          start + duration,
		Floor:        Floor,
	}
}

func (e Envelope) AttackEnd() float64 { return e.Start + e.Attack }
func (e Envelope) DecayEnd() float64  { return e.Start + e.Attack + e.Decay }

// Silent reports whether the envelope never rises above zero.
func (e Envelope) Silent() bool { return e.Peak <= 0 }

// Gain returns the amplitude at absolute time t.
func (e Envelope) Gain(t float64) float64 {
	if e.Silent() || t < e.Start {
		return 0
	}
	if t >= e.End {
		return e.Floor
	}
	attackEnd := e.AttackEnd()
	if t < attackEnd {
		return e.Peak * (t - e.Start) / e.Attack
	}
	decayEnd := e.DecayEnd()
	if t < decayEnd {
		return expRamp(e.Peak, e.SustainLevel, attackEnd, decayEnd, t)
	}
	if t < e.ReleaseStart {
		return e.SustainLevel
	}
	return expRamp(e.SustainLevel, e.Floor, e.ReleaseStart, e.End, t)
}

func expRamp(v0, v1, t0, t1, t float64) float64 {
	if t1 <= t0 || v0 <= 0 || v1 <= 0 {
		return v1
	}
	return v0 * math.Pow(v1/v0, (t-t0)/(t1-t0))
}
