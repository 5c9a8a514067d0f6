// Package palette is the fixed color to sound-parameter table and the
// tolerance matcher that classifies canvas pixels against it.
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

const (
	MaxEntries              = 10
	DefaultTolerance        = 45
	DefaultOpacityThreshold = 128
)

var ErrInvalid = errors.New("invalid palette")

// Variant selects the tone shape an entry is played with.
type Variant string

const (
	VariantStandard Variant = "standard" // sawtooth
	VariantSoft     Variant = "soft"     // triangle
)

func (v Variant) Valid() bool {
	switch v {
	case VariantStandard, VariantSoft:
		return true
	}
	return false
}

type Entry struct {
	Name     string
	Key      string // normalized #RRGGBB
	Color    color.NRGBA
	Variant  Variant
	BaseGain float64
}

// NewEntry parses hex and builds an entry. An empty variant means standard.
func NewEntry(name, hex string, variant Variant, baseGain float64) (Entry, error) {
	c, err := ParseHex(hex)
	if err != nil {
		return Entry{}, err
	}
	if variant == "" {
		variant = VariantStandard
	}
	e := Entry{Name: name, Key: Key(c), Color: c, Variant: variant, BaseGain: baseGain}
	if err := e.validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (e Entry) validate() error {
	if !e.Variant.Valid() {
		return fmt.Errorf("%w: entry %s: unknown variant %q", ErrInvalid, e.Key, e.Variant)
	}
	if e.BaseGain < 0 || e.BaseGain > 1 {
		return fmt.Errorf("%w: entry %s: gain %v outside [0,1]", ErrInvalid, e.Key, e.BaseGain)
	}
	return nil
}

// Palette is an ordered list of entries. Order decides which entry is
// reported first when a pixel matches several.
type Palette struct {
	Entries          []Entry
	Tolerance        int
	OpacityThreshold uint8
}

// New builds a palette with the default tolerance and opacity threshold.
func New(entries ...Entry) (Palette, error) {
	p := Palette{
		Entries:          append([]Entry(nil), entries...),
		Tolerance:        DefaultTolerance,
		OpacityThreshold: DefaultOpacityThreshold,
	}
	if err := p.Validate(); err != nil {
		return Palette{}, err
	}
	return p, nil
}

func (p Palette) Validate() error {
	if len(p.Entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalid)
	}
	if len(p.Entries) > MaxEntries {
		return fmt.Errorf("%w: %d entries, at most %d allowed", ErrInvalid, len(p.Entries), MaxEntries)
	}
	if p.Tolerance < 1 || p.Tolerance > 255 {
		return fmt.Errorf("%w: tolerance %d outside 1..255", ErrInvalid, p.Tolerance)
	}
	seen := make(map[string]struct{}, len(p.Entries))
	for i, e := range p.Entries {
		c, err := ParseHex(e.Key)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if c != e.Color {
			return fmt.Errorf("%w: entry %d: key %s does not match color %v", ErrInvalid, i, e.Key, e.Color)
		}
		if _, dup := seen[e.Key]; dup {
			return fmt.Errorf("%w: duplicate key %s", ErrInvalid, e.Key)
		}
		seen[e.Key] = struct{}{}
		if err := e.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p Palette) Len() int { return len(p.Entries) }

// Matches reports whether px is opaque enough and within tolerance of entry i
// on every channel.
func (p Palette) Matches(px color.NRGBA, i int) bool {
	if px.A <= p.OpacityThreshold {
		return false
	}
	c := p.Entries[i].Color
	return absDiff(px.R, c.R) < p.Tolerance &&
		absDiff(px.G, c.G) < p.Tolerance &&
		absDiff(px.B, c.B) < p.Tolerance
}

// Match appends the index of every entry px matches to dst, in palette order.
// Overlapping tolerances can report more than one entry for a single pixel.
func (p Palette) Match(px color.NRGBA, dst []int) []int {
	if px.A <= p.OpacityThreshold {
		return dst
	}
	for i := range p.Entries {
		if p.Matches(px, i) {
			dst = append(dst, i)
		}
	}
	return dst
}

// Colors returns the entry colors as a color.Palette.
func (p Palette) Colors() color.Palette {
	out := make(color.Palette, 0, len(p.Entries))
	for _, e := range p.Entries {
		out = append(out, e.Color)
	}
	return out
}

// Index returns the position of the entry with the given key, or -1.
func (p Palette) Index(key string) int {
	c, err := ParseHex(key)
	if err != nil {
		return -1
	}
	k := Key(c)
	for i, e := range p.Entries {
		if e.Key == k {
			return i
		}
	}
	return -1
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// ParseHex accepts #RGB or #RRGGBB, with or without the leading '#'.
func ParseHex(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	case 6:
	default:
		return color.NRGBA{}, fmt.Errorf("%w: color %q: want #RGB or #RRGGBB", ErrInvalid, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: color %q: %v", ErrInvalid, s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

// Key formats c as an upper-case #RRGGBB string.
func Key(c color.NRGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

var defaultTable = []struct {
	name string
	hex  string
	gain float64
}{
	{"red", "#FF0000", 0.5},
	{"green", "#00FF00", 0.45},
	{"blue", "#0000FF", 0.5},
	{"yellow", "#FFFF00", 0.4},
	{"magenta", "#FF00FF", 0.48},
	{"cyan", "#00FFFF", 0.42},
	{"orange", "#FFA500", 0.5},
	{"purple", "#800080", 0.45},
	{"brown", "#A52A2A", 0.35},
	{"black", "#000000", 0.4},
}

// Default returns the ten-brush palette.
func Default() Palette {
	entries := make([]Entry, 0, len(defaultTable))
	for _, d := range defaultTable {
		e, err := NewEntry(d.name, d.hex, VariantStandard, d.gain)
		if err != nil {
			panic(err)
		}
		entries = append(entries, e)
	}
	p, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return p
}
