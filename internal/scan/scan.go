// Package scan walks a raster snapshot column by column and turns painted
// pixels into timed notes.
//
// Columns map linearly onto time (left is earliest) and rows map linearly
// onto pitch (top is highest). Within a column each palette entry produces at
// most one note, pitched by the first row where it matched.
package scan

import (
	"errors"
	"fmt"

	"github.com/cbegin/sonodoodle/internal/palette"
	"github.com/cbegin/sonodoodle/internal/raster"
)

const (
	DefaultTotalDuration = 5.0
	DefaultNoteDuration  = 0.6
	DefaultMinFreq       = 50.0
	DefaultMaxFreq       = 2000.0
)

var ErrInvalidParams = errors.New("invalid scan parameters")

type Params struct {
	TotalDuration float64 // seconds spanned by the full canvas width
	NoteDuration  float64 // nominal length of every note
	MinFreq       float64 // pitch of the bottom edge
	MaxFreq       float64 // pitch of the top row
}

func DefaultParams() Params {
	return Params{
		TotalDuration: DefaultTotalDuration,
		NoteDuration:  DefaultNoteDuration,
		MinFreq:       DefaultMinFreq,
		MaxFreq:       DefaultMaxFreq,
	}
}

func (p Params) Validate() error {
	switch {
	case p.TotalDuration <= 0:
		return fmt.Errorf("%w: total duration %v", ErrInvalidParams, p.TotalDuration)
	case p.NoteDuration <= 0:
		return fmt.Errorf("%w: note duration %v", ErrInvalidParams, p.NoteDuration)
	case p.MinFreq <= 0:
		return fmt.Errorf("%w: min frequency %v", ErrInvalidParams, p.MinFreq)
	case p.MaxFreq < p.MinFreq:
		return fmt.Errorf("%w: max frequency %v below min %v", ErrInvalidParams, p.MaxFreq, p.MinFreq)
	}
	return nil
}

// Note is one scheduled tone request produced by the scan.
type Note struct {
	Column    int
	Row       int
	Key       int // palette index
	Entry     palette.Entry
	Frequency float64
	Start     float64
	Duration  float64
}

// Sink receives notes in emission order. Schedule must not block.
type Sink interface {
	Schedule(Note)
}

type SinkFunc func(Note)

func (f SinkFunc) Schedule(n Note) { f(n) }

// Recorder is a Sink that keeps every note it is given.
type Recorder struct {
	Notes []Note
}

func (r *Recorder) Schedule(n Note) { r.Notes = append(r.Notes, n) }

// ColumnStart maps column x of a w-wide canvas onto an absolute start time.
func ColumnStart(x, w int, now float64, p Params) float64 {
	return now + float64(x)*(p.TotalDuration/float64(w))
}

// Frequency maps row y of an h-tall canvas onto pitch, maxFreq at the top.
func Frequency(y, h int, p Params) float64 {
	return p.MaxFreq - (float64(y)/float64(h))*(p.MaxFreq-p.MinFreq)
}

// Scan traverses buf left to right, top to bottom, and hands sink one note per
// (column, palette entry) pair. It returns the number of notes emitted.
func Scan(buf *raster.Buffer, pal palette.Palette, p Params, now float64, sink Sink) int {
	if buf == nil || buf.Empty() || pal.Len() == 0 {
		return 0
	}
	played := make([]bool, pal.Len())
	matches := make([]int, 0, pal.Len())
	emitted := 0
	for x := 0; x < buf.Width; x++ {
		clear(played)
		start := ColumnStart(x, buf.Width, now, p)
		remaining := pal.Len()
		for y := 0; y < buf.Height && remaining > 0; y++ {
			matches = pal.Match(buf.At(x, y), matches[:0])
			for _, k := range matches {
				if played[k] {
					continue
				}
				played[k] = true
				remaining--
				sink.Schedule(Note{
					Column:    x,
					Row:       y,
					Key:       k,
					Entry:     pal.Entries[k],
					Frequency: Frequency(y, buf.Height, p),
					Start:     start,
					Duration:  p.NoteDuration,
				})
				emitted++
			}
		}
	}
	return emitted
}
