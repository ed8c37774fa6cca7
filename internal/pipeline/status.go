package pipeline

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Phase of the pipeline slot.
type Phase int

const (
	Idle Phase = iota
	Processing
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase name in JSON and YAML.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for ph := Idle; ph <= Failed; ph++ {
		if ph.String() == string(b) {
			*p = ph
			return nil
		}
	}
	return fmt.Errorf("unknown pipeline phase %q", b)
}

// Status is the pollable pipeline status.
type Status struct {
	Phase     Phase     `json:"phase" yaml:"phase"`
	RunID     string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Label     string    `json:"label,omitempty" yaml:"label,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Path      string    `json:"path,omitempty" yaml:"path,omitempty"`
	Preview   string    `json:"preview,omitempty" yaml:"preview,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	Code      string    `json:"code,omitempty" yaml:"code,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Busy reports whether a run holds the slot.
func (s Status) Busy() bool { return s.Phase == Processing }

// Preview returns the first PreviewLen characters of text, with an
// ellipsis when truncated.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewLen {
		return text
	}
	return string([]rune(text)[:PreviewLen]) + "…"
}

// String renders a one-line summary for logs.
func (s Status) String() string {
	switch s.Phase {
	case Done:
		return fmt.Sprintf("%s %s", s.Phase, s.Path)
	case Failed:
		return fmt.Sprintf("%s %s", s.Phase, s.Error)
	default:
		return s.Phase.String()
	}
}
