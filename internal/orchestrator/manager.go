package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trnscrb/trnscrb/internal/audio"
	"github.com/trnscrb/trnscrb/internal/calendar"
	"github.com/trnscrb/trnscrb/internal/enrich"
	apperrors "github.com/trnscrb/trnscrb/internal/errors"
	"github.com/trnscrb/trnscrb/internal/metrics"
	"github.com/trnscrb/trnscrb/internal/orchestrator/events"
	"github.com/trnscrb/trnscrb/internal/pipeline"
	"github.com/trnscrb/trnscrb/internal/presence"
	"github.com/trnscrb/trnscrb/internal/trace"
)

// Capturer records one input stream at a time.
type Capturer interface {
	Start(selector string) error
	Stop() (*audio.Clip, error)
	IsActive() bool
	Device() audio.Device
	Frames() int
}

// Options wires a Manager.
type Options struct {
	Device     string // capture device selector
	MaxPending int    // clips held while the pipeline is busy
	AutoRecord bool   // start the watcher in Start

	Capture  Capturer
	Pipeline pipeline.Options // OnFinish is set by the manager
	Presence presence.Options // Handler is set by the manager
	Calendar calendar.Source
	Enricher *enrich.Enricher // optional
	Events   *events.Log
	Metrics  *metrics.Metrics
}

// session is the capture in progress.
type session struct {
	startedAt time.Time
	label     string
	manual    bool
}

// pendingClip waits for the pipeline slot.
type pendingClip struct {
	clip      *audio.Clip
	startedAt time.Time
	label     string
}

// Manager owns the capture session and the pending queue.
type Manager struct {
	opts    Options
	now     func() time.Time
	capture Capturer
	runner  *pipeline.Runner
	watcher *presence.Watcher
	events  *events.Log

	mu      sync.Mutex // guards cur and pending
	cur     *session
	pending []pendingClip
}

// New builds the manager, its pipeline runner and its watcher.
func New(opts Options) *Manager {
	if opts.Calendar == nil {
		opts.Calendar = calendar.None{}
	}
	if opts.Events == nil {
		opts.Events = events.New(EventLogSize, EventBuffer)
	}
	if opts.MaxPending < 0 {
		opts.MaxPending = 0
	}
	m := &Manager{
		opts:    opts,
		now:     time.Now,
		capture: opts.Capture,
		events:  opts.Events,
	}

	popts := opts.Pipeline
	popts.Metrics = opts.Metrics
	popts.OnFinish = m.pipelineFinished
	m.runner = pipeline.New(popts)

	wopts := opts.Presence
	wopts.Handler = m
	wopts.Metrics = opts.Metrics
	if wopts.Calendar == nil {
		wopts.Calendar = opts.Calendar
	}
	m.watcher = presence.NewWatcher(wopts)
	return m
}

// Events returns the lifecycle event log.
func (m *Manager) Events() *events.Log { return m.events }

// Start launches the watcher when auto-record is on.
func (m *Manager) Start(ctx context.Context) {
	if m.opts.AutoRecord {
		m.StartWatching(ctx)
	}
}

// StartWatching starts the presence watcher.
func (m *Manager) StartWatching(ctx context.Context) {
	if m.watcher.IsWatching() {
		return
	}
	m.watcher.Start(ctx)
	m.events.Emit(events.Event{Kind: events.WatcherStarted})
}

// StopWatching stops the presence watcher. A capture in progress keeps
// running until it is stopped manually.
func (m *Manager) StopWatching() {
	if !m.watcher.IsWatching() {
		return
	}
	m.watcher.Stop()
	m.events.Emit(events.Event{Kind: events.WatcherStopped})
}

// IsWatching reports whether the watcher runs.
func (m *Manager) IsWatching() bool { return m.watcher.IsWatching() }

// Stop shuts down: stops the watcher, hands an active capture to the
// pipeline, waits for queued work until ctx is done and closes the runner.
func (m *Manager) Stop(ctx context.Context) {
	log := trace.Logger(ctx)
	m.watcher.Stop()
	m.watcher.Wait()

	m.mu.Lock()
	if m.cur != nil {
		label := m.cur.label
		if label == "" {
			label = presence.FallbackLabel(ctx, m.opts.Calendar, m.cur.startedAt)
		}
		if err := m.finishLocked(ctx, label); err != nil && !errors.Is(err, audio.ErrNoAudio) {
			log.Warn("could not flush capture on shutdown", "error", err)
		}
	}
	m.mu.Unlock()

	m.waitIdle(ctx)
	m.runner.Close()

	m.mu.Lock()
	for _, p := range m.pending {
		log.Warn("discarding queued clip on shutdown", "label", p.label)
		_ = p.clip.Remove()
	}
	m.pending = nil
	m.opts.Metrics.SetPending(0)
	m.mu.Unlock()
}

func (m *Manager) waitIdle(ctx context.Context) {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for {
		m.mu.Lock()
		idle := len(m.pending) == 0 && !m.runner.Busy()
		m.mu.Unlock()
		if idle {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ConversationStarted starts capture for a detected conversation.
func (m *Manager) ConversationStarted(ctx context.Context, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events.Emit(events.Event{Kind: events.ConversationStarted, Label: label})
	if m.cur != nil {
		trace.Logger(ctx).Info("capture already running, keeping it", "label", m.cur.label)
		return
	}
	if err := m.startLocked(ctx, label, false); err != nil {
		trace.Logger(ctx).Error("could not start capture", "error", err)
	}
}

// ConversationEnded stops a capture the watcher started and submits it.
func (m *Manager) ConversationEnded(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil || m.cur.manual {
		return
	}
	label := m.cur.label
	m.events.Emit(events.Event{Kind: events.ConversationEnded, Label: label})
	if err := m.finishLocked(ctx, label); err != nil && !errors.Is(err, audio.ErrNoAudio) {
		trace.Logger(ctx).Error("could not hand off capture", "error", err)
	}
}

// ConversationDiscarded drops a capture the watcher started for a session
// below the minimum length.
func (m *Manager) ConversationDiscarded(ctx context.Context, length time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil || m.cur.manual {
		return
	}
	label := m.cur.label
	m.cur = nil
	m.opts.Metrics.SetCaptureActive(false)
	clip, err := m.capture.Stop()
	if err == nil {
		_ = clip.Remove()
	}
	m.events.Emit(events.Event{
		Kind:    events.ConversationDiscarded,
		Label:   label,
		Message: fmt.Sprintf("session of %s is below the minimum", length.Round(time.Second)),
	})
}

// StartRecording starts a manual capture.
func (m *Manager) StartRecording(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != nil || m.capture.IsActive() {
		return msgAlreadyRecording, nil
	}
	if err := m.startLocked(ctx, "", true); err != nil {
		return "", err
	}
	return fmt.Sprintf("Recording started at %s using %s.", m.cur.startedAt.Format(clockFmt), source(m.capture.Device())), nil
}

// StopRecording stops the current capture and submits it. The transcript
// is named by name, else the watcher's label, else the calendar, else
// "meeting-HHMM".
func (m *Manager) StopRecording(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return msgNotRecording, nil
	}
	sess := *m.cur
	if name == "" {
		name = sess.label
	}
	if name == "" {
		name = presence.FallbackLabel(ctx, m.opts.Calendar, sess.startedAt)
	}

	err := m.finishLocked(ctx, name)
	if errors.Is(err, audio.ErrNoAudio) {
		return msgNoAudio, nil
	}
	if err != nil {
		return "", err
	}
	secs := int(m.now().Sub(sess.startedAt).Seconds())
	return fmt.Sprintf("Recording stopped. %ds of audio captured for %q.\n"+
		"Transcription is running in the background.\n"+
		"Ask me for `recording_status` to check progress, or `get_last_transcript` once done.", secs, name), nil
}

// Enrich runs the LLM pass on a saved transcript.
func (m *Manager) Enrich(ctx context.Context, id string) (enrich.Result, error) {
	if m.opts.Enricher == nil {
		return enrich.Result{}, apperrors.New(apperrors.Unavailable, "enrichment is not configured")
	}
	res, err := m.opts.Enricher.Enrich(ctx, id)
	if err != nil {
		return res, err
	}
	m.events.Emit(events.Event{Kind: events.TranscriptEnriched, Label: id})
	return res, nil
}

func (m *Manager) startLocked(ctx context.Context, label string, manual bool) error {
	if err := m.capture.Start(m.opts.Device); err != nil {
		m.opts.Metrics.RecordCaptureFailure()
		m.events.Emit(events.Event{Kind: events.CaptureFailed, Label: label, Error: err.Error()})
		return err
	}
	m.cur = &session{startedAt: m.now(), label: label, manual: manual}
	m.opts.Metrics.SetCaptureActive(true)
	dev := m.capture.Device()
	m.events.Emit(events.Event{Kind: events.CaptureStarted, Label: label, Message: source(dev)})
	trace.Logger(ctx).Info("capture started", "device", dev.Name, "manual", manual)
	return nil
}

// finishLocked stops capture and hands the clip to the pipeline.
func (m *Manager) finishLocked(ctx context.Context, label string) error {
	sess := m.cur
	m.cur = nil
	m.opts.Metrics.SetCaptureActive(false)

	clip, err := m.capture.Stop()
	if err != nil {
		if errors.Is(err, audio.ErrNoAudio) {
			m.events.Emit(events.Event{Kind: events.NoAudio, Label: label})
			trace.Logger(ctx).Info("capture stopped with no audio", "label", label)
		}
		return err
	}
	m.opts.Metrics.RecordClip(clip.Duration().Seconds())
	m.events.Emit(events.Event{
		Kind:    events.CaptureStopped,
		Label:   label,
		Message: clip.Duration().Round(time.Second).String(),
	})
	m.submitLocked(ctx, pendingClip{clip: clip, startedAt: sess.startedAt, label: label})
	return nil
}

// submitLocked runs p now or queues it behind earlier clips.
func (m *Manager) submitLocked(ctx context.Context, p pendingClip) {
	if len(m.pending) == 0 {
		run, err := m.runner.Submit(p.clip, p.startedAt, p.label)
		switch {
		case err == nil:
			m.events.Emit(events.Event{Kind: events.PipelineProcessing, Label: p.label, Message: run.ID})
			return
		case !apperrors.IsCode(err, apperrors.AlreadyProcessing):
			trace.Logger(ctx).Error("pipeline rejected clip", "error", err)
			m.events.Emit(events.Event{Kind: events.PipelineFailed, Label: p.label, Error: err.Error()})
			_ = p.clip.Remove()
			return
		}
	}
	m.enqueueLocked(p)
}

func (m *Manager) enqueueLocked(p pendingClip) {
	m.pending = append(m.pending, p)
	m.events.Emit(events.Event{Kind: events.ClipQueued, Label: p.label})
	for len(m.pending) > m.opts.MaxPending {
		old := m.pending[0]
		m.pending = m.pending[1:]
		_ = old.clip.Remove()
		m.opts.Metrics.RecordDropped()
		m.events.Emit(events.Event{Kind: events.ClipDropped, Label: old.label})
	}
	m.opts.Metrics.SetPending(len(m.pending))
}

// pipelineFinished runs on the pipeline worker once the slot is free.
func (m *Manager) pipelineFinished(st pipeline.Status) {
	switch st.Phase {
	case pipeline.Done:
		m.events.Emit(events.Event{Kind: events.PipelineDone, Label: st.Label, Path: st.Path})
	case pipeline.Failed:
		m.events.Emit(events.Event{Kind: events.PipelineFailed, Label: st.Label, Error: st.Error})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return
	}
	next := m.pending[0]
	run, err := m.runner.Submit(next.clip, next.startedAt, next.label)
	switch {
	case err == nil:
		m.pending = m.pending[1:]
		m.events.Emit(events.Event{Kind: events.PipelineProcessing, Label: next.label, Message: run.ID})
	case apperrors.IsCode(err, apperrors.AlreadyProcessing):
		// another submit won the slot; its completion drains the queue
	default:
		m.pending = m.pending[1:]
		_ = next.clip.Remove()
		m.events.Emit(events.Event{Kind: events.PipelineFailed, Label: next.label, Error: err.Error()})
	}
	m.opts.Metrics.SetPending(len(m.pending))
}

// source describes the capture device for users.
func source(dev audio.Device) string {
	if dev.Loopback {
		return dev.Name + loopbackNote
	}
	return dev.Name
}
