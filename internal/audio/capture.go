// Package audio records a single input stream into an in-memory frame buffer
// and materialises it as a WAV clip when capture stops.
package audio

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/trnscrb/trnscrb/internal/errors"
)

// ErrNoAudio is returned by Stop when nothing was captured.
var ErrNoAudio = apperrors.New(apperrors.NoAudioCaptured, "no audio captured")

type inputStream interface {
	Start() error
	Stop() error
	Close() error
}

type opener func(dev Device, onBlock func([]float32)) (inputStream, error)

// Options configures a Capture.
type Options struct {
	PreferLoopback bool
	// TempDir receives clip files; empty means os.TempDir.
	TempDir string
}

// Capture owns at most one open input stream.
type Capture struct {
	opts Options
	open opener
	list func() ([]Device, error)

	mu        sync.Mutex // guards stream, dev and startedAt
	stream    inputStream
	dev       Device
	startedAt time.Time

	active atomic.Bool
	buf    frameBuffer
}

// NewCapture returns a capture backed by portaudio.
func NewCapture(opts Options) *Capture {
	return &Capture{opts: opts, open: openPortAudio, list: ListInputDevices}
}

// Start opens the selected input device and begins buffering frames.
// Calling Start while capture is active does nothing.
func (c *Capture) Start(selector string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return nil
	}

	devs, err := c.list()
	if err != nil {
		return apperrors.Wrap(err, apperrors.DeviceUnavailable, "list input devices")
	}
	dev, err := resolveDevice(devs, selector, c.opts.PreferLoopback)
	if err != nil {
		return err
	}

	c.buf.reset()
	stream, err := c.open(dev, c.onBlock)
	if err != nil {
		return apperrors.Wrap(err, apperrors.DeviceUnavailable, "open input stream").
			WithMetadata("device", dev.Name)
	}
	c.active.Store(true)
	if err := stream.Start(); err != nil {
		c.active.Store(false)
		_ = stream.Close()
		return apperrors.Wrap(err, apperrors.DeviceUnavailable, "start input stream").
			WithMetadata("device", dev.Name)
	}

	c.stream = stream
	c.dev = dev
	c.startedAt = time.Now()
	slog.Info("audio capture started", "device", dev.Name, "index", dev.Index)
	return nil
}

func (c *Capture) onBlock(in []float32) {
	if !c.active.Load() {
		return
	}
	c.buf.append(in)
}

// Stop halts the stream and returns the buffered audio as a clip.
// It returns ErrNoAudio when capture was not active or no frame arrived.
func (c *Capture) Stop() (*Clip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stream := c.stream
	if stream == nil {
		return nil, ErrNoAudio
	}
	c.stream = nil
	c.active.Store(false)
	defer func() {
		if err := stream.Close(); err != nil {
			slog.Warn("close input stream", "error", err)
		}
	}()
	if err := stream.Stop(); err != nil {
		slog.Warn("stop input stream", "error", err)
	}

	blocks, frames := c.buf.drain()
	if frames == 0 {
		slog.Info("audio capture stopped with no frames", "device", c.dev.Name)
		return nil, ErrNoAudio
	}

	clip, err := NewClip(quantize(blocks, frames), SampleRate, c.opts.TempDir)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "write clip")
	}
	slog.Info("audio capture stopped", "device", c.dev.Name, "duration", clip.Duration())
	return clip, nil
}

// IsActive reports whether a stream is open.
func (c *Capture) IsActive() bool { return c.active.Load() }

// StartedAt returns when the current capture began, or zero.
func (c *Capture) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return time.Time{}
	}
	return c.startedAt
}

// Device returns the device of the current or most recent capture.
func (c *Capture) Device() Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dev
}

// Frames returns the number of frames buffered so far.
func (c *Capture) Frames() int { return c.buf.len() }
