// Package playback is the tone-generation capability: an explicit handle with
// a small lifecycle that accepts tones stamped with absolute start times and
// plays them against its own sample clock.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cbegin/sonodoodle/internal/audio"
	"github.com/cbegin/sonodoodle/internal/effects"
	"github.com/cbegin/sonodoodle/internal/envelope"
	"github.com/cbegin/sonodoodle/internal/palette"
)

type State int

const (
	Uninitialized State = iota
	Active
	Suspended
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Suspended:
		return "suspended"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var ErrUnavailable = errors.New("playback capability unavailable")

// Tone is one oscillator run. Times are absolute seconds on the context clock.
type Tone struct {
	Frequency float64
	Start     float64
	Stop      float64
	Variant   palette.Variant
	Envelope  envelope.Envelope
}

// Output is the device end of a context.
type Output interface {
	Play()
	Pause()
	Stop() error
}

// OutputFactory opens an output that pulls frames from src.
type OutputFactory func(sampleRate int, src audio.SampleSource) (Output, error)

// DeviceOutput streams to the system audio device through ebiten.
func DeviceOutput(sampleRate int, src audio.SampleSource) (Output, error) {
	return audio.NewPlayer(sampleRate, src)
}

// Offline opens no device. Frames only advance when Context.Render is called.
func Offline(int, audio.SampleSource) (Output, error) {
	return nopOutput{}, nil
}

type nopOutput struct{}

func (nopOutput) Play()       {}
func (nopOutput) Pause()      {}
func (nopOutput) Stop() error { return nil }

type Options struct {
	Output     OutputFactory // nil means DeviceOutput
	MasterGain float64       // 0 means 1
	Limiter    bool
	SampleTap  func([]float32) // called with every rendered buffer; keep it brief
	Logger     *slog.Logger
}

type Context struct {
	mu         sync.Mutex
	sampleRate int
	opts       Options
	logger     *slog.Logger
	state      State
	mixer      *Mixer
	out        Output
	onIdle     func()
}

func New(sampleRate int, opts Options) (*Context, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if opts.Output == nil {
		opts.Output = DeviceOutput
	}
	if opts.MasterGain == 0 {
		opts.MasterGain = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		sampleRate: sampleRate,
		opts:       opts,
		logger:     logger.With("component", "playback"),
	}, nil
}

func (c *Context) SampleRate() int { return c.sampleRate }

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Init creates a fresh mixer and opens the output. It is valid from
// Uninitialized and Closed; a reopened context restarts its clock at zero.
func (c *Context) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initLocked()
}

func (c *Context) initLocked() error {
	switch c.state {
	case Active, Suspended:
		return nil
	}
	var bus *effects.Chain
	if c.opts.Limiter {
		bus = effects.NewChain(effects.NewDefaultLimiter(c.sampleRate))
	}
	mixer := NewMixer(c.sampleRate, c.opts.MasterGain, bus)
	out, err := c.opts.Output(c.sampleRate, source{c})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.mixer = mixer
	c.out = out
	c.state = Active
	c.out.Play()
	c.logger.Debug("context initialized", "sampleRate", c.sampleRate)
	return nil
}

func (c *Context) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Active:
		return nil
	case Suspended:
		c.state = Active
		c.out.Play()
		return nil
	}
	return fmt.Errorf("%w: cannot resume %s context", ErrUnavailable, c.state)
}

func (c *Context) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Suspended:
		return nil
	case Active:
		c.state = Suspended
		c.out.Pause()
		return nil
	}
	return fmt.Errorf("%w: cannot suspend %s context", ErrUnavailable, c.state)
}

// Close stops the output. Pending tones are dropped.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == Closed || c.state == Uninitialized {
		c.state = Closed
		c.mu.Unlock()
		return nil
	}
	out := c.out
	c.state = Closed
	c.out = nil
	c.mu.Unlock()
	return out.Stop()
}

// Ensure makes the context usable: it is created when missing or closed and
// resumed when suspended.
func (c *Context) Ensure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Uninitialized, Closed:
		return c.initLocked()
	case Suspended:
		c.state = Active
		c.out.Play()
	}
	return nil
}

// CurrentTime is the context clock in seconds.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mixer == nil {
		return 0
	}
	return c.mixer.Time()
}

// ScheduleTone queues t for playback. Only an Active context accepts tones.
func (c *Context) ScheduleTone(t Tone) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Active {
		return fmt.Errorf("%w: context is %s", ErrUnavailable, c.state)
	}
	c.mixer.Schedule(t)
	return nil
}

// Pending returns the number of tones waiting or sounding.
func (c *Context) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mixer == nil || c.state == Closed {
		return 0
	}
	return c.mixer.ActiveVoiceCount()
}

// LastStop returns the time the last queued tone stops.
func (c *Context) LastStop() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mixer == nil {
		return 0
	}
	return c.mixer.LastStop()
}

// SetOnIdle installs fn to run whenever the last scheduled tone stops. It is
// called on the rendering goroutine without the context lock held.
func (c *Context) SetOnIdle(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onIdle = fn
}

func (c *Context) SetMasterGain(gain float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gain < 0 {
		gain = 0
	}
	c.opts.MasterGain = gain
	if c.mixer != nil {
		c.mixer.SetMasterGain(gain)
	}
}

// Render fills dst with interleaved stereo frames and advances the clock.
// Outside the Active state it writes silence and the clock stands still.
func (c *Context) Render(dst []float32) {
	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		clear(dst)
		return
	}
	idle := c.mixer.Process(dst)
	onIdle := c.onIdle
	tap := c.opts.SampleTap
	c.mu.Unlock()
	if tap != nil {
		tap(dst)
	}
	if idle && onIdle != nil {
		onIdle()
	}
}

// source lets the output pull frames without exposing Render's locking.
type source struct{ c *Context }

func (s source) Process(dst []float32) { s.c.Render(dst) }
