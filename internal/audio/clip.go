package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip is a finished recording materialised as a temporary WAV file.
type Clip struct {
	SampleRate int
	Samples    []int16
	Path       string

	removeOnce sync.Once
	removeErr  error
}

// NewClip writes samples as 16-bit mono PCM to a new temp file in dir
// (os.TempDir when empty).
func NewClip(samples []int16, rate int, dir string) (*Clip, error) {
	f, err := os.CreateTemp(dir, "trnscrb-*.wav")
	if err != nil {
		return nil, err
	}
	path := f.Name()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	enc := wav.NewEncoder(f, rate, 16, Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: Channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("finalize wav: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}

	return &Clip{SampleRate: rate, Samples: samples, Path: path}, nil
}

// Duration of the clip.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Remove deletes the backing file. Only the first call touches the filesystem.
func (c *Clip) Remove() error {
	if c == nil {
		return nil
	}
	c.removeOnce.Do(func() {
		if c.Path == "" {
			return
		}
		if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
			c.removeErr = err
		}
	})
	return c.removeErr
}
