// Package events keeps a bounded in-memory log of lifecycle events and
// broadcasts each one on a buffered channel.
package events

import (
	"sync"
	"time"
)

// Kind names a lifecycle event.
type Kind string

const (
	WatcherStarted        Kind = "watcher_started"
	WatcherStopped        Kind = "watcher_stopped"
	ConversationStarted   Kind = "conversation_started"
	ConversationEnded     Kind = "conversation_ended"
	ConversationDiscarded Kind = "conversation_discarded"
	CaptureStarted        Kind = "capture_started"
	CaptureStopped        Kind = "capture_stopped"
	CaptureFailed         Kind = "capture_failed"
	NoAudio               Kind = "no_audio"
	PipelineProcessing    Kind = "pipeline_processing"
	PipelineDone          Kind = "pipeline_done"
	PipelineFailed        Kind = "pipeline_failed"
	ClipQueued            Kind = "clip_queued"
	ClipDropped           Kind = "clip_dropped"
	TranscriptEnriched    Kind = "transcript_enriched"
)

// Event is one log entry.
type Event struct {
	Seq     uint64    `json:"seq" yaml:"seq"`
	Kind    Kind      `json:"kind" yaml:"kind"`
	Time    time.Time `json:"time" yaml:"time"`
	Label   string    `json:"label,omitempty" yaml:"label,omitempty"`
	Message string    `json:"message,omitempty" yaml:"message,omitempty"`
	Path    string    `json:"path,omitempty" yaml:"path,omitempty"`
	Error   string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Log stores the most recent events.
type Log struct {
	mu      sync.RWMutex
	entries []Event
	maxSize int
	seq     uint64
	dropped uint64
	now     func() time.Time
	ch      chan Event
}

// New creates a log keeping maxEntries events with a broadcast buffer of
// buffer events.
func New(maxEntries, buffer int) *Log {
	return &Log{
		entries: make([]Event, 0, maxEntries),
		maxSize: maxEntries,
		now:     time.Now,
		ch:      make(chan Event, buffer),
	}
}

// Emit stamps e with a sequence number and time, stores it and offers it
// to the broadcast channel without blocking.
func (l *Log) Emit(e Event) Event {
	l.mu.Lock()
	l.seq++
	e.Seq = l.seq
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	l.entries = append(l.entries, e)
	if len(l.entries) > l.maxSize {
		l.entries = l.entries[len(l.entries)-l.maxSize:]
	}
	l.mu.Unlock()

	select {
	case l.ch <- e:
	default:
		l.mu.Lock()
		l.dropped++
		l.mu.Unlock()
	}
	return e
}

// Events returns the broadcast channel. There is a single consumer.
func (l *Log) Events() <-chan Event {
	return l.ch
}

// Recent returns up to n of the newest events, oldest first. n <= 0 means all.
func (l *Log) Recent(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	start := 0
	if n > 0 && len(l.entries) > n {
		start = len(l.entries) - n
	}
	out := make([]Event, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Since returns the retained events with a sequence number above seq.
func (l *Log) Since(seq uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, e := range l.entries {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// Dropped returns how many events missed the broadcast channel.
func (l *Log) Dropped() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dropped
}
