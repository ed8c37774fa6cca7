// Package presence detects conversations from input-device activity and
// emits one Started and at most one Ended edge per session.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/trnscrb/trnscrb/internal/calendar"
	"github.com/trnscrb/trnscrb/internal/metrics"
	"github.com/trnscrb/trnscrb/internal/syncx"
	"github.com/trnscrb/trnscrb/internal/trace"
)

// Handler receives conversation edges on the watcher goroutine.
type Handler interface {
	ConversationStarted(ctx context.Context, label string)
	ConversationEnded(ctx context.Context)
}

// Discarder is optionally implemented by a Handler that wants to hear about
// sessions that ended below the minimum length.
type Discarder interface {
	ConversationDiscarded(ctx context.Context, session time.Duration)
}

// Status is a snapshot of the watcher.
type Status struct {
	Watching     bool      `json:"watching" yaml:"watching"`
	State        State     `json:"state" yaml:"state"`
	Since        time.Time `json:"since,omitempty" yaml:"since,omitempty"`
	SessionStart time.Time `json:"session_start,omitempty" yaml:"session_start,omitempty"`
	GoneChecks   int       `json:"gone_checks" yaml:"gone_checks"`
}

// Options wires a Watcher's collaborators.
type Options struct {
	Timing   Timing
	Signals  Signals
	Surface  Surface
	Calendar calendar.Source
	Handler  Handler
	Metrics  *metrics.Metrics
}

// Watcher polls Signals and drives the presence machine.
type Watcher struct {
	opts   Options
	now    func() time.Time
	status *syncx.RWGuard[Status]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a stopped watcher.
func NewWatcher(opts Options) *Watcher {
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming()
	}
	if opts.Signals == nil {
		opts.Signals = NoSignals{}
	}
	if opts.Calendar == nil {
		opts.Calendar = calendar.None{}
	}
	return &Watcher{
		opts:   opts,
		now:    time.Now,
		status: syncx.NewGuard(Status{State: Idle}),
	}
}

// Start launches the polling loop. It is a no-op while already watching.
// A loop still exiting from a previous Stop is waited for first.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	if w.done != nil {
		<-w.done
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel, w.done = cancel, done
	w.status.Set(Status{Watching: true, State: Idle})
	w.opts.Metrics.SetPresenceState(int(Idle))

	go w.loop(ctx, done)
	slog.Info("presence watcher started", "poll", w.opts.Timing.Poll, "warmup", w.opts.Timing.Warmup)
}

// Stop asks the loop to exit and returns immediately. It never touches
// capture or the pipeline.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.cancel = nil
	w.status.Write(func(s *Status) { s.Watching = false })
	slog.Info("presence watcher stopped")
}

// Wait blocks until the most recent loop has exited.
func (w *Watcher) Wait() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done != nil {
		<-done
	}
}

// IsWatching reports whether the loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// Status returns a copy of the current status.
func (w *Watcher) Status() Status { return w.status.Get() }

func (w *Watcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		w.status.Write(func(s *Status) {
			s.Watching = false
			s.State = Idle
			s.Since = time.Time{}
			s.SessionStart = time.Time{}
			s.GoneChecks = 0
		})
		w.opts.Metrics.SetPresenceState(int(Idle))
	}()

	m := newMachine(w.opts.Timing)
	ticker := time.NewTicker(w.opts.Timing.Poll)
	defer ticker.Stop()

	for {
		w.tick(ctx, &m)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick samples the platform once and dispatches any edge.
func (w *Watcher) tick(ctx context.Context, m *machine) Transition {
	active := w.opts.Signals.InputActive()
	now := w.now()
	tr := m.step(now, active, func() bool { return w.sessionPresent(ctx) })

	w.status.Write(func(s *Status) {
		s.State = m.state
		s.Since = m.since
		s.SessionStart = m.recStarted
		s.GoneChecks = m.gone
	})
	if tr.Changed() {
		w.opts.Metrics.SetPresenceState(int(tr.To))
		w.opts.Metrics.RecordTransition(tr.From.String(), tr.To.String())
		slog.Debug("presence transition", "from", tr.From, "to", tr.To)
	}

	switch tr.Edge {
	case Started:
		label := w.resolveLabel(ctx, now)
		w.opts.Metrics.RecordConversation("started")
		ectx := trace.WithField(ctx, "conversation", label)
		trace.Logger(ectx).Info("conversation started")
		if w.opts.Handler != nil {
			w.opts.Handler.ConversationStarted(ectx, label)
		}
	case Ended:
		w.opts.Metrics.RecordConversation("ended")
		slog.Info("conversation ended", "session", tr.Session)
		if w.opts.Handler != nil {
			w.opts.Handler.ConversationEnded(ctx)
		}
	case Discarded:
		w.opts.Metrics.RecordConversation("discarded")
		slog.Info("conversation too short, discarding", "session", tr.Session, "min", w.opts.Timing.MinSession)
		if d, ok := w.opts.Handler.(Discarder); ok {
			d.ConversationDiscarded(ctx, tr.Session)
		}
	}
	return tr
}

func (w *Watcher) sessionPresent(ctx context.Context) bool {
	if w.opts.Surface == nil {
		return false
	}
	return w.opts.Surface.SessionPresent(ctx)
}

// resolveLabel names a conversation: recognised app, then the calendar,
// then "meeting-HHMM".
func (w *Watcher) resolveLabel(ctx context.Context, now time.Time) string {
	if w.opts.Surface != nil {
		if label, ok := w.opts.Surface.Label(ctx); ok {
			return label
		}
	}
	return FallbackLabel(ctx, w.opts.Calendar, now)
}

// FallbackLabel returns the current calendar title or "meeting-HHMM".
func FallbackLabel(ctx context.Context, cal calendar.Source, now time.Time) string {
	if cal != nil {
		if evt, ok := cal.Current(ctx); ok && evt.Title != "" {
			return evt.Title
		}
	}
	return fallbackPrefix + now.Format(labelTimeFmt)
}
