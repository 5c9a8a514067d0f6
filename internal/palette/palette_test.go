package palette

import (
	"errors"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultPaletteOrder(t *testing.T) {
	p := Default()
	want := []string{"#FF0000", "#00FF00", "#0000FF", "#FFFF00", "#FF00FF", "#00FFFF", "#FFA500", "#800080", "#A52A2A", "#000000"}
	if p.Len() != len(want) {
		t.Fatalf("len = %d, want %d", p.Len(), len(want))
	}
	for i, k := range want {
		if p.Entries[i].Key != k {
			t.Fatalf("entry %d = %s, want %s", i, p.Entries[i].Key, k)
		}
		if p.Entries[i].Variant != VariantStandard {
			t.Fatalf("entry %d variant = %q", i, p.Entries[i].Variant)
		}
	}
	if p.Entries[8].BaseGain != 0.35 {
		t.Fatalf("brown gain = %v, want 0.35", p.Entries[8].BaseGain)
	}
}

func TestMatchOpacityGate(t *testing.T) {
	p := Default()
	for _, a := range []uint8{0, 1, 64, 127, 128} {
		for _, e := range p.Entries {
			px := e.Color
			px.A = a
			if got := p.Match(px, nil); len(got) != 0 {
				t.Fatalf("alpha %d %s matched %v", a, e.Key, got)
			}
		}
	}
}

func TestMatchExactColor(t *testing.T) {
	p := Default()
	for i, e := range p.Entries {
		for _, a := range []uint8{129, 200, 255} {
			px := e.Color
			px.A = a
			if !contains(p.Match(px, nil), i) {
				t.Fatalf("%s alpha %d did not match itself", e.Key, a)
			}
		}
	}
}

func TestMatchToleranceBoundary(t *testing.T) {
	e, err := NewEntry("grey", "#808080", VariantStandard, 0.5)
	require.NoError(t, err)
	p, err := New(e)
	require.NoError(t, err)

	cases := []struct {
		name string
		px   color.NRGBA
		want bool
	}{
		{"44 all channels up", color.NRGBA{128 + 44, 128 + 44, 128 + 44, 255}, true},
		{"44 all channels down", color.NRGBA{128 - 44, 128 - 44, 128 - 44, 255}, true},
		{"45 red", color.NRGBA{128 + 45, 128, 128, 255}, false},
		{"45 green", color.NRGBA{128, 128 - 45, 128, 255}, false},
		{"45 blue", color.NRGBA{128, 128, 128 + 45, 255}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Matches(tc.px, 0); got != tc.want {
				t.Fatalf("Matches(%v) = %v, want %v", tc.px, got, tc.want)
			}
		})
	}
}

func TestMatchOverlappingEntries(t *testing.T) {
	a, err := NewEntry("a", "#FF0000", VariantStandard, 0.5)
	require.NoError(t, err)
	b, err := NewEntry("b", "#E01010", VariantSoft, 0.3)
	require.NoError(t, err)
	p, err := New(a, b)
	require.NoError(t, err)
	got := p.Match(color.NRGBA{R: 240, G: 8, B: 8, A: 255}, nil)
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("match = %v, want [0 1]", got)
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#fa0")
	require.NoError(t, err)
	require.Equal(t, color.NRGBA{R: 0xFF, G: 0xAA, B: 0x00, A: 0xFF}, c)

	c, err = ParseHex("A52A2A")
	require.NoError(t, err)
	require.Equal(t, "#A52A2A", Key(c))

	for _, bad := range []string{"", "#12", "#12345", "#GGGGGG", "#1234567"} {
		_, err := ParseHex(bad)
		require.Error(t, err, bad)
		require.True(t, errors.Is(err, ErrInvalid), bad)
	}
}

func TestValidateFailsFast(t *testing.T) {
	red, err := NewEntry("red", "#F00", "", 0.5)
	require.NoError(t, err)

	_, err = New()
	require.ErrorIs(t, err, ErrInvalid)

	_, err = New(red, red)
	require.ErrorIs(t, err, ErrInvalid)

	many := make([]Entry, 0, MaxEntries+1)
	for i := 0; i <= MaxEntries; i++ {
		e, err := NewEntry("", Key(color.NRGBA{R: uint8(i * 20), A: 255}), "", 0.1)
		require.NoError(t, err)
		many = append(many, e)
	}
	_, err = New(many...)
	require.ErrorIs(t, err, ErrInvalid)

	_, err = NewEntry("loud", "#FFF", VariantStandard, 1.5)
	require.ErrorIs(t, err, ErrInvalid)

	_, err = NewEntry("odd", "#FFF", Variant("square"), 0.5)
	require.ErrorIs(t, err, ErrInvalid)

	broken := Palette{Entries: []Entry{{Key: "#nope", Variant: VariantStandard}}, Tolerance: DefaultTolerance}
	require.ErrorIs(t, broken.Validate(), ErrInvalid)
}

func TestLoadYAML(t *testing.T) {
	src := `
tolerance: 30
opacity_threshold: 100
entries:
  - name: red
    color: "#FF0000"
    gain: 0.5
  - name: sky
    color: "#39f"
    variant: soft
    gain: 0.25
`
	p, err := Load(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 30, p.Tolerance)
	require.Equal(t, uint8(100), p.OpacityThreshold)
	require.Len(t, p.Entries, 2)
	require.Equal(t, "#3399FF", p.Entries[1].Key)
	require.Equal(t, VariantSoft, p.Entries[1].Variant)
	require.Equal(t, VariantStandard, p.Entries[0].Variant)
	require.Equal(t, 1, p.Index("#39F"))
	require.Equal(t, -1, p.Index("#123456"))
}

func TestLoadYAMLRejectsMalformed(t *testing.T) {
	for name, src := range map[string]string{
		"bad color":     "entries:\n  - color: \"#XYZ\"\n    gain: 0.5\n",
		"unknown field": "entries:\n  - color: \"#FFF\"\n    gain: 0.5\n    pitch: 3\n",
		"no entries":    "tolerance: 10\n",
		"threshold":     "opacity_threshold: 300\nentries:\n  - color: \"#FFF\"\n    gain: 0.5\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(src))
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestMarshalYAMLRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(Default())
	require.NoError(t, err)
	p, err := Load(strings.NewReader(string(out)))
	require.NoError(t, err)
	require.Equal(t, Default(), p)
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
