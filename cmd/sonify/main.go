package main

import (
	"fmt"
	"image/color"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"

	"github.com/cbegin/sonodoodle"
	"github.com/cbegin/sonodoodle/internal/palette"
	"github.com/cbegin/sonodoodle/internal/raster"
)

type SourceParams struct {
	Image        string  `arg:"" help:"Image to sonify (png, jpeg, gif, bmp, tiff, webp)" type:"existingfile"`
	Palette      string  `help:"YAML palette file; the ten-brush palette when empty"`
	Duration     float64 `help:"Seconds spanned by the full image width" default:"5"`
	NoteDuration float64 `help:"Length of every note in seconds" default:"0.6"`
	MinFreq      float64 `help:"Pitch of the bottom edge in Hz" default:"50"`
	MaxFreq      float64 `help:"Pitch of the top row in Hz" default:"2000"`
	SampleRate   int     `help:"Output sample rate" default:"48000"`
	Width        int     `help:"Downscale to at most this many columns (0 keeps the image width)" default:"0"`
	Height       int     `help:"Downscale to at most this many rows (0 keeps the image height)" default:"0"`
	Posterize    bool    `help:"Dither the image onto the palette colors before scanning"`
	DumpNotes    bool    `help:"Print every planned note"`

	pal palette.Palette `kong:"-"`
}

func (p *SourceParams) load() (*raster.Buffer, error) {
	p.pal = palette.Default()
	if p.Palette != "" {
		pal, err := palette.LoadFile(p.Palette)
		if err != nil {
			return nil, err
		}
		p.pal = pal
	}
	img, format, err := raster.DecodeFile(p.Image)
	if err != nil {
		return nil, err
	}
	slog.Debug("decoded", "file", p.Image, "format", format, "bounds", img.Bounds())
	if p.Width > 0 || p.Height > 0 {
		b := img.Bounds()
		w, h := p.Width, p.Height
		if w <= 0 {
			w = b.Dx()
		}
		if h <= 0 {
			h = b.Dy()
		}
		img = raster.Fit(img, w, h)
	}
	if p.Posterize {
		colors := append(p.pal.Colors(), color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
		img = raster.Posterize(img, colors)
	}
	return raster.Snapshot(img), nil
}

func (p *SourceParams) params() sonodoodle.Params {
	return sonodoodle.Params{
		TotalDuration: p.Duration,
		NoteDuration:  p.NoteDuration,
		MinFreq:       p.MinFreq,
		MaxFreq:       p.MaxFreq,
	}
}

func (p *SourceParams) dump(buf *raster.Buffer) {
	if !p.DumpNotes {
		return
	}
	for _, n := range sonodoodle.Plan(buf, p.pal, p.params()) {
		fmt.Printf("col=%d row=%d color=%s start=%.3f freq=%.1f\n", n.Column, n.Row, n.Entry.Name, n.Start, n.Frequency)
	}
}

type PlayCmd struct {
	SourceParams
	Volume float64 `help:"Master volume scalar" default:"1"`
}

func (c *PlayCmd) Run() error {
	buf, err := c.load()
	if err != nil {
		return err
	}
	c.dump(buf)
	s, err := sonodoodle.New(c.SampleRate,
		sonodoodle.WithPalette(c.pal),
		sonodoodle.WithParams(c.params()),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			slog.Error("could not close playback", "error", err)
		}
	}()
	s.SetMasterVolume(c.Volume)
	sum, err := s.SonifyRaster(buf)
	if err != nil {
		return err
	}
	if sum.Notes == 0 {
		slog.Warn("nothing to play", "file", c.Image)
		return nil
	}
	s.Wait()
	return nil
}

type RenderCmd struct {
	SourceParams
	Output string `short:"o" help:"Destination WAV file" required:""`
	PCM16  bool   `help:"Write 16-bit PCM instead of 32-bit float"`
}

func (c *RenderCmd) Run() error {
	buf, err := c.load()
	if err != nil {
		return err
	}
	c.dump(buf)
	samples, err := sonodoodle.Render(buf.Image(), c.SampleRate,
		sonodoodle.WithPalette(c.pal),
		sonodoodle.WithParams(c.params()),
	)
	if err != nil {
		return err
	}
	var wav []byte
	if c.PCM16 {
		wav = sonodoodle.EncodeWAVPCM16LE(samples, c.SampleRate, 2)
	} else {
		wav = sonodoodle.EncodeWAVFloat32LE(samples, c.SampleRate, 2)
	}
	if err := os.WriteFile(c.Output, wav, 0o644); err != nil {
		return fmt.Errorf("could not write %q: %w", c.Output, err)
	}
	slog.Info("rendered", "file", c.Output, "seconds", float64(len(samples)/2)/float64(c.SampleRate))
	return nil
}

type PaletteCmd struct {
	File string `arg:"" optional:"" help:"YAML palette to validate and print"`
}

func (c *PaletteCmd) Run() error {
	pal := palette.Default()
	if c.File != "" {
		var err error
		if pal, err = palette.LoadFile(c.File); err != nil {
			return err
		}
	}
	out, err := yaml.Marshal(pal)
	if err != nil {
		return fmt.Errorf("could not encode palette: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}

type CLI struct {
	Verbose bool `short:"v" help:"Log at debug level"`

	Play    PlayCmd    `cmd:"" help:"Play an image through the audio device"`
	Render  RenderCmd  `cmd:"" help:"Render an image to a WAV file"`
	Palette PaletteCmd `cmd:"" help:"Print the default palette or validate a palette file"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("sonify"),
		kong.Description("Turn drawings into sound, one column at a time."),
		kong.UsageOnError(),
	)
	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := kctx.Run(); err != nil {
		slog.Error("failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}
