package palette

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileEntry and file describe the on-disk palette layout:
//
//	tolerance: 45
//	opacity_threshold: 128
//	entries:
//	  - name: red
//	    color: "#FF0000"
//	    variant: standard
//	    gain: 0.5
type fileEntry struct {
	Name    string  `yaml:"name,omitempty"`
	Color   string  `yaml:"color"`
	Variant Variant `yaml:"variant,omitempty"`
	Gain    float64 `yaml:"gain"`
}

type file struct {
	Tolerance        *int        `yaml:"tolerance,omitempty"`
	OpacityThreshold *int        `yaml:"opacity_threshold,omitempty"`
	Entries          []fileEntry `yaml:"entries"`
}

// Load decodes a YAML palette and validates it. Missing tolerance and
// threshold fall back to the defaults.
func Load(r io.Reader) (Palette, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Palette{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	p := Palette{Tolerance: DefaultTolerance, OpacityThreshold: DefaultOpacityThreshold}
	if f.Tolerance != nil {
		p.Tolerance = *f.Tolerance
	}
	if f.OpacityThreshold != nil {
		if *f.OpacityThreshold < 0 || *f.OpacityThreshold > 255 {
			return Palette{}, fmt.Errorf("%w: opacity_threshold %d outside 0..255", ErrInvalid, *f.OpacityThreshold)
		}
		p.OpacityThreshold = uint8(*f.OpacityThreshold)
	}
	for i, fe := range f.Entries {
		e, err := NewEntry(fe.Name, fe.Color, fe.Variant, fe.Gain)
		if err != nil {
			return Palette{}, fmt.Errorf("entry %d: %w", i, err)
		}
		p.Entries = append(p.Entries, e)
	}
	if err := p.Validate(); err != nil {
		return Palette{}, err
	}
	return p, nil
}

func LoadFile(path string) (Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return Palette{}, fmt.Errorf("could not open palette %q: %w", path, err)
	}
	defer f.Close()
	p, err := Load(f)
	if err != nil {
		return Palette{}, fmt.Errorf("palette %q: %w", path, err)
	}
	return p, nil
}

// MarshalYAML writes the palette in the layout Load reads.
func (p Palette) MarshalYAML() (interface{}, error) {
	tol := p.Tolerance
	thr := int(p.OpacityThreshold)
	f := file{Tolerance: &tol, OpacityThreshold: &thr}
	for _, e := range p.Entries {
		f.Entries = append(f.Entries, fileEntry{Name: e.Name, Color: e.Key, Variant: e.Variant, Gain: e.BaseGain})
	}
	return f, nil
}
