package orchestrator

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/trnscrb/trnscrb/internal/audio"
	"github.com/trnscrb/trnscrb/internal/pipeline"
	"github.com/trnscrb/trnscrb/internal/presence"
)

// CaptureStatus describes the capture in progress.
type CaptureStatus struct {
	Active    bool          `json:"active" yaml:"active"`
	Manual    bool          `json:"manual,omitempty" yaml:"manual,omitempty"`
	Label     string        `json:"label,omitempty" yaml:"label,omitempty"`
	Device    *audio.Device `json:"device,omitempty" yaml:"device,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Elapsed   float64       `json:"elapsed_seconds,omitempty" yaml:"elapsed_seconds,omitempty"`
	Frames    int           `json:"frames,omitempty" yaml:"frames,omitempty"`
}

// Snapshot aggregates watcher, capture, pipeline and queue state.
type Snapshot struct {
	Watcher  presence.Status `json:"watcher" yaml:"watcher"`
	Capture  CaptureStatus   `json:"capture" yaml:"capture"`
	Pipeline pipeline.Status `json:"pipeline" yaml:"pipeline"`
	Pending  []string        `json:"pending,omitempty" yaml:"pending,omitempty"`
	Message  string          `json:"message" yaml:"message"`
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	cs := m.captureStatusLocked()
	pending := make([]string, 0, len(m.pending))
	for _, p := range m.pending {
		pending = append(pending, p.label)
	}
	m.mu.Unlock()

	st := m.runner.Status()
	return Snapshot{
		Watcher:  m.watcher.Status(),
		Capture:  cs,
		Pipeline: st,
		Pending:  pending,
		Message:  statusMessage(cs, st, m.now()),
	}
}

func (m *Manager) captureStatusLocked() CaptureStatus {
	if m.cur == nil {
		return CaptureStatus{}
	}
	dev := m.capture.Device()
	return CaptureStatus{
		Active:    true,
		Manual:    m.cur.manual,
		Label:     m.cur.label,
		Device:    &dev,
		StartedAt: m.cur.startedAt,
		Elapsed:   m.now().Sub(m.cur.startedAt).Seconds(),
		Frames:    m.capture.Frames(),
	}
}

// StatusMessage answers "what is going on" in one line.
func (m *Manager) StatusMessage() string {
	m.mu.Lock()
	cs := m.captureStatusLocked()
	m.mu.Unlock()
	return statusMessage(cs, m.runner.Status(), m.now())
}

func statusMessage(cs CaptureStatus, st pipeline.Status, now time.Time) string {
	if cs.Active {
		elapsed := int(now.Sub(cs.StartedAt).Seconds())
		return fmt.Sprintf("Recording in progress — %dm %ds elapsed.", elapsed/60, elapsed%60)
	}
	switch st.Phase {
	case pipeline.Processing:
		return msgTranscribing
	case pipeline.Failed:
		return "Last transcription failed: " + st.Error
	case pipeline.Done:
		return msgComplete
	default:
		return msgIdle
	}
}

// LastTranscript returns the outcome of the most recent pipeline run.
func (m *Manager) LastTranscript() string {
	st := m.runner.Status()
	switch st.Phase {
	case pipeline.Processing:
		return msgStillRunning
	case pipeline.Failed:
		return "Transcription failed: " + st.Error
	case pipeline.Done:
		return "Saved: " + filepath.Base(st.Path) + "\n\n" + st.Preview
	default:
		return msgNoTranscript
	}
}

// PipelineStatus returns the pipeline status.
func (m *Manager) PipelineStatus() pipeline.Status { return m.runner.Status() }
