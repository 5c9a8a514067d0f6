package scan

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-test/deep"

	"github.com/cbegin/sonodoodle/internal/palette"
	"github.com/cbegin/sonodoodle/internal/raster"
)

var (
	white = color.NRGBA{255, 255, 255, 255}
	red   = color.NRGBA{255, 0, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
)

// canvas builds a w x h buffer filled with bg and applies paint(x, y) on top.
func canvas(t *testing.T, w, h int, bg color.NRGBA, paint func(x, y int) (color.NRGBA, bool)) *raster.Buffer {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := bg
			if paint != nil {
				if pc, ok := paint(x, y); ok {
					c = pc
				}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	buf, err := raster.FromNRGBA(w, h, img.Pix)
	if err != nil {
		t.Fatalf("raster: %v", err)
	}
	return buf
}

func TestFullyPaintedCanvasOneNotePerColumn(t *testing.T) {
	buf := canvas(t, 10, 10, red, nil)
	p := DefaultParams()
	rec := &Recorder{}
	n := Scan(buf, palette.Default(), p, 0, rec)
	if n != 10 || len(rec.Notes) != 10 {
		t.Fatalf("emitted %d notes (%d recorded), want 10", n, len(rec.Notes))
	}
	for x, note := range rec.Notes {
		if note.Column != x || note.Row != 0 || note.Key != 0 {
			t.Fatalf("note %d: %s", x, spew.Sdump(note))
		}
		if note.Frequency != p.MaxFreq {
			t.Fatalf("note %d frequency = %v, want %v", x, note.Frequency, p.MaxFreq)
		}
		if want := float64(x) * 0.5; note.Start != want {
			t.Fatalf("note %d start = %v, want %v", x, note.Start, want)
		}
		if note.Duration != p.NoteDuration {
			t.Fatalf("note %d duration = %v", x, note.Duration)
		}
	}
}

func TestTransparentCanvasIsSilent(t *testing.T) {
	buf := canvas(t, 16, 8, color.NRGBA{}, nil)
	rec := &Recorder{}
	if n := Scan(buf, palette.Default(), DefaultParams(), 0, rec); n != 0 {
		t.Fatalf("emitted %d notes, want 0", n)
	}
	// Translucent paint stays under the opacity gate.
	buf = canvas(t, 16, 8, color.NRGBA{255, 0, 0, 128}, nil)
	if n := Scan(buf, palette.Default(), DefaultParams(), 0, rec); n != 0 {
		t.Fatalf("emitted %d notes for alpha 128, want 0", n)
	}
}

func TestTwoColorsInOneColumnMakeAChord(t *testing.T) {
	buf := canvas(t, 3, 10, white, func(x, y int) (color.NRGBA, bool) {
		if x != 1 {
			return color.NRGBA{}, false
		}
		switch {
		case y >= 2 && y <= 4:
			return blue, true
		case y >= 6:
			return red, true
		}
		return color.NRGBA{}, false
	})
	p := DefaultParams()
	rec := &Recorder{}
	Scan(buf, palette.Default(), p, 1.5, rec)

	pal := palette.Default()
	want := []Note{
		{Column: 1, Row: 2, Key: 2, Entry: pal.Entries[2], Frequency: Frequency(2, 10, p), Start: ColumnStart(1, 3, 1.5, p), Duration: p.NoteDuration},
		{Column: 1, Row: 6, Key: 0, Entry: pal.Entries[0], Frequency: Frequency(6, 10, p), Start: ColumnStart(1, 3, 1.5, p), Duration: p.NoteDuration},
	}
	if diff := deep.Equal(rec.Notes, want); diff != nil {
		t.Fatalf("notes differ: %v", diff)
	}
	if rec.Notes[0].Start != rec.Notes[1].Start {
		t.Fatalf("chord notes must share a start time")
	}
}

func TestAtMostOneNotePerColorPerColumn(t *testing.T) {
	buf := canvas(t, 4, 50, white, func(x, y int) (color.NRGBA, bool) {
		if y%3 == 0 {
			return red, true
		}
		return color.NRGBA{}, false
	})
	rec := &Recorder{}
	Scan(buf, palette.Default(), DefaultParams(), 0, rec)
	seen := map[[2]int]int{}
	for _, n := range rec.Notes {
		seen[[2]int{n.Column, n.Key}]++
	}
	for k, c := range seen {
		if c != 1 {
			t.Fatalf("column %d key %d produced %d notes", k[0], k[1], c)
		}
	}
	if len(rec.Notes) != 4 {
		t.Fatalf("got %d notes, want 4", len(rec.Notes))
	}
}

func TestOverlappingEntriesEachEmit(t *testing.T) {
	a, _ := palette.NewEntry("a", "#FF0000", palette.VariantStandard, 0.5)
	b, _ := palette.NewEntry("b", "#E01010", palette.VariantSoft, 0.3)
	pal, err := palette.New(a, b)
	if err != nil {
		t.Fatal(err)
	}
	buf := canvas(t, 1, 4, white, func(x, y int) (color.NRGBA, bool) {
		return color.NRGBA{240, 8, 8, 255}, y == 3
	})
	rec := &Recorder{}
	if n := Scan(buf, pal, DefaultParams(), 0, rec); n != 2 {
		t.Fatalf("emitted %d notes, want 2: %s", n, spew.Sdump(rec.Notes))
	}
	if rec.Notes[0].Key != 0 || rec.Notes[1].Key != 1 {
		t.Fatalf("chord order = %d,%d, want palette order", rec.Notes[0].Key, rec.Notes[1].Key)
	}
}

func TestFrequencyMonotonicInRow(t *testing.T) {
	p := DefaultParams()
	const h = 240
	if got := Frequency(0, h, p); got != p.MaxFreq {
		t.Fatalf("top row = %v, want %v", got, p.MaxFreq)
	}
	prev := Frequency(0, h, p)
	for y := 1; y < h; y++ {
		f := Frequency(y, h, p)
		if f > prev {
			t.Fatalf("frequency rose at row %d: %v > %v", y, f, prev)
		}
		prev = f
	}
	if prev <= p.MinFreq || prev > p.MinFreq+(p.MaxFreq-p.MinFreq)/h+1e-9 {
		t.Fatalf("bottom row = %v, want one step above %v", prev, p.MinFreq)
	}
}

func TestStartMonotonicInColumn(t *testing.T) {
	p := DefaultParams()
	buf := canvas(t, 30, 6, white, func(x, y int) (color.NRGBA, bool) {
		if (x+y)%4 == 0 {
			return red, true
		}
		if (x+y)%5 == 0 {
			return blue, true
		}
		return color.NRGBA{}, false
	})
	rec := &Recorder{}
	Scan(buf, palette.Default(), p, 10, rec)
	byColumn := map[int]float64{}
	prev := -1.0
	for _, n := range rec.Notes {
		if n.Start < prev {
			t.Fatalf("start went backwards at column %d", n.Column)
		}
		prev = n.Start
		if s, ok := byColumn[n.Column]; ok && s != n.Start {
			t.Fatalf("column %d has two start times %v and %v", n.Column, s, n.Start)
		}
		byColumn[n.Column] = n.Start
	}
}

func TestScanIsRepeatable(t *testing.T) {
	buf := canvas(t, 20, 20, white, func(x, y int) (color.NRGBA, bool) {
		return blue, x == y || x+y == 19
	})
	first, second := &Recorder{}, &Recorder{}
	Scan(buf, palette.Default(), DefaultParams(), 3, first)
	Scan(buf, palette.Default(), DefaultParams(), 3, second)
	if diff := deep.Equal(first.Notes, second.Notes); diff != nil {
		t.Fatalf("repeated scan differs: %v", diff)
	}
}

func TestEmptyBufferEmitsNothing(t *testing.T) {
	buf, err := raster.FromNRGBA(0, 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	calls := 0
	if n := Scan(buf, palette.Default(), DefaultParams(), 0, SinkFunc(func(Note) { calls++ })); n != 0 || calls != 0 {
		t.Fatalf("empty buffer emitted %d notes", n)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	bad := []Params{
		{TotalDuration: 0, NoteDuration: 0.6, MinFreq: 50, MaxFreq: 2000},
		{TotalDuration: 5, NoteDuration: -1, MinFreq: 50, MaxFreq: 2000},
		{TotalDuration: 5, NoteDuration: 0.6, MinFreq: 0, MaxFreq: 2000},
		{TotalDuration: 5, NoteDuration: 0.6, MinFreq: 500, MaxFreq: 200},
	}
	for i, p := range bad {
		if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("case %d: err = %v, want ErrInvalidParams", i, err)
		}
	}
}
