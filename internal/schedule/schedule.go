// Package schedule turns scanned notes into enveloped tones and hands them to
// the playback capability.
package schedule

import (
	"log/slog"

	"github.com/cbegin/sonodoodle/internal/envelope"
	"github.com/cbegin/sonodoodle/internal/playback"
	"github.com/cbegin/sonodoodle/internal/scan"
)

// StopPadding keeps the oscillator running past the nominal end so the
// release tail is heard in full.
const StopPadding = 0.1

// Capability is the part of playback.Context the scheduler needs.
type Capability interface {
	State() playback.State
	ScheduleTone(playback.Tone) error
}

type Stats struct {
	Scheduled int
	Skipped   int
}

// Scheduler implements scan.Sink.
type Scheduler struct {
	capability Capability
	logger     *slog.Logger
	stats      Stats
}

func New(capability Capability, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{capability: capability, logger: logger}
}

// Tone builds the tone for n without dispatching it.
func Tone(n scan.Note) playback.Tone {
	return playback.Tone{
		Frequency: n.Frequency,
		Start:     n.Start,
		Stop:      n.Start + n.Duration + StopPadding,
		Variant:   n.Entry.Variant,
		Envelope:  envelope.New(n.Start, n.Duration, n.Entry.BaseGain),
	}
}

// Schedule dispatches one note. When the capability is not active or refuses
// the tone the note is dropped; there are no retries.
func (s *Scheduler) Schedule(n scan.Note) {
	if st := s.capability.State(); st != playback.Active {
		s.stats.Skipped++
		s.logger.Debug("note skipped", "column", n.Column, "key", n.Entry.Key, "state", st)
		return
	}
	if err := s.capability.ScheduleTone(Tone(n)); err != nil {
		s.stats.Skipped++
		s.logger.Debug("note skipped", "column", n.Column, "key", n.Entry.Key, "error", err)
		return
	}
	s.stats.Scheduled++
}

func (s *Scheduler) Stats() Stats { return s.stats }
