package sonodoodle

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	intpal "github.com/cbegin/sonodoodle/internal/palette"
	intpb "github.com/cbegin/sonodoodle/internal/playback"
	intraster "github.com/cbegin/sonodoodle/internal/raster"
	intscan "github.com/cbegin/sonodoodle/internal/scan"
	intsched "github.com/cbegin/sonodoodle/internal/schedule"
)

type (
	Palette = intpal.Palette
	Entry   = intpal.Entry
	Params  = intscan.Params
	Note    = intscan.Note
	Raster  = intraster.Buffer
	State   = intpb.State
)

// ErrUnavailable is returned when the playback capability cannot be created
// or resumed. No notes are scheduled in that case.
var ErrUnavailable = intpb.ErrUnavailable

// DefaultPalette returns the ten-brush palette.
func DefaultPalette() Palette { return intpal.Default() }

// DefaultParams returns a five second scan over 50 to 2000 Hz.
func DefaultParams() Params { return intscan.DefaultParams() }

// Option configures a Sonifier.
type Option func(*config)

type config struct {
	palette   Palette
	params    Params
	logger    *slog.Logger
	output    intpb.OutputFactory
	sampleTap func([]float32)
	limiter   bool
}

func defaultConfig() config {
	return config{
		palette: intpal.Default(),
		params:  intscan.DefaultParams(),
		logger:  slog.Default(),
		limiter: true,
	}
}

// WithPalette replaces the default palette.
func WithPalette(p Palette) Option {
	return func(cfg *config) {
		cfg.palette = p
	}
}

// WithParams replaces the default scan timing and pitch range.
func WithParams(p Params) Option {
	return func(cfg *config) {
		cfg.params = p
	}
}

// WithLogger sets the logger; nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithOutput replaces the audio device. intpb.Offline renders without one.
func WithOutput(f intpb.OutputFactory) Option {
	return func(cfg *config) {
		cfg.output = f
	}
}

// WithSampleTap installs a callback invoked with each rendered stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *config) {
		cfg.sampleTap = tap
	}
}

// WithLimiter toggles the master bus limiter (on by default).
func WithLimiter(enabled bool) Option {
	return func(cfg *config) {
		cfg.limiter = enabled
	}
}

// Summary describes one sonify call.
type Summary struct {
	Columns int
	Rows    int
	Notes   int // handed to playback
	Skipped int // dropped because playback was not active
	Start   float64
	End     float64 // when the last tone of this call stops
}

// Sonifier scans drawings and plays them through one playback context.
type Sonifier struct {
	mu       sync.Mutex
	palette  Palette
	params   Params
	logger   *slog.Logger
	playback *intpb.Context
	volume   float64
	done     chan struct{}
}

// New validates the palette and params and prepares a playback context.
// No audio device is opened until the first Ready or Sonify.
func New(sampleRate int, opts ...Option) (*Sonifier, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.palette.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.params.Validate(); err != nil {
		return nil, err
	}
	pb, err := intpb.New(sampleRate, intpb.Options{
		Output:    cfg.output,
		Limiter:   cfg.limiter,
		SampleTap: cfg.sampleTap,
		Logger:    cfg.logger,
	})
	if err != nil {
		return nil, err
	}
	s := &Sonifier{
		palette:  cfg.palette,
		params:   cfg.params,
		logger:   cfg.logger,
		playback: pb,
		volume:   1,
	}
	pb.SetOnIdle(s.signalDone)
	return s, nil
}

// Ready lazily creates or resumes the playback context. Call it from the
// first user gesture so the first sonify does not pay for device setup.
func (s *Sonifier) Ready() error {
	return s.playback.Ensure()
}

// Sonify snapshots img and schedules its notes starting now.
func (s *Sonifier) Sonify(img image.Image) (Summary, error) {
	if err := s.playback.Ensure(); err != nil {
		return Summary{}, err
	}
	return s.sonify(intraster.Snapshot(img))
}

// SonifyRaster schedules the notes of an existing snapshot.
func (s *Sonifier) SonifyRaster(buf *Raster) (Summary, error) {
	if buf == nil {
		return Summary{}, errors.New("nil raster")
	}
	if err := s.playback.Ensure(); err != nil {
		return Summary{}, err
	}
	return s.sonify(buf)
}

func (s *Sonifier) sonify(buf *Raster) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A later call does not cancel earlier tones; Wait follows the newest call.
	if s.done != nil {
		close(s.done)
	}
	s.done = make(chan struct{})

	now := s.playback.CurrentTime()
	sched := intsched.New(s.playback, s.logger)
	intscan.Scan(buf, s.palette, s.params, now, sched)
	st := sched.Stats()
	sum := Summary{
		Columns: buf.Width,
		Rows:    buf.Height,
		Notes:   st.Scheduled,
		Skipped: st.Skipped,
		Start:   now,
		End:     now,
	}
	if st.Scheduled > 0 {
		sum.End = s.playback.LastStop()
	} else {
		close(s.done)
		s.done = nil
	}
	s.logger.Info("sonified", "columns", sum.Columns, "rows", sum.Rows, "notes", sum.Notes, "skipped", sum.Skipped, "start", sum.Start, "end", sum.End)
	return sum, nil
}

// signalDone runs from the render goroutine after the lock is released, so a
// newer sonify call may already have queued tones. Those keep done open.
func (s *Sonifier) signalDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil || s.playback.Pending() > 0 {
		return
	}
	close(s.done)
	s.done = nil
}

// Wait blocks until every scheduled tone has stopped. It returns immediately
// when nothing is playing, and when a newer sonify call replaces the one it
// was waiting on.
func (s *Sonifier) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Sonifier) State() State { return s.playback.State() }

func (s *Sonifier) CurrentTime() float64 { return s.playback.CurrentTime() }

func (s *Sonifier) Suspend() error { return s.playback.Suspend() }

func (s *Sonifier) Resume() error { return s.playback.Resume() }

// Close shuts the playback context and releases any Wait.
func (s *Sonifier) Close() error {
	err := s.playback.Close()
	s.signalDone()
	if err != nil {
		return fmt.Errorf("close playback: %w", err)
	}
	return nil
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (s *Sonifier) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
	s.playback.SetMasterGain(volume)
}

func (s *Sonifier) MasterVolume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Sonifier) Palette() Palette { return s.palette }
func (s *Sonifier) Params() Params   { return s.params }

// Plan scans buf from time zero into a list, without touching playback.
// Scanning the same raster twice yields identical plans.
func Plan(buf *Raster, pal Palette, p Params) []Note {
	rec := &intscan.Recorder{}
	intscan.Scan(buf, pal, p, 0, rec)
	return rec.Notes
}
