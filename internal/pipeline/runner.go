// Package pipeline turns a finished clip into a saved transcript on a single
// background worker: transcribe, optionally diarize, persist.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trnscrb/trnscrb/internal/audio"
	apperrors "github.com/trnscrb/trnscrb/internal/errors"
	"github.com/trnscrb/trnscrb/internal/metrics"
	"github.com/trnscrb/trnscrb/internal/syncx"
	"github.com/trnscrb/trnscrb/internal/trace"
	"github.com/trnscrb/trnscrb/internal/transcript"
)

// Transcriber converts a clip into timed text segments.
type Transcriber interface {
	Transcribe(ctx context.Context, clip *audio.Clip) ([]transcript.Segment, error)
}

// Diarizer returns speaker turns for a clip.
type Diarizer interface {
	Diarize(ctx context.Context, clip *audio.Clip, credential string) ([]transcript.Turn, error)
}

// Sink persists a formatted transcript and returns where it went.
type Sink interface {
	Save(ctx context.Context, doc transcript.Document) (string, error)
}

// Options configures a Runner.
type Options struct {
	Transcriber Transcriber
	Diarizer    Diarizer // optional
	Sink        Sink
	// Credential returns the diarization credential; empty skips diarization.
	Credential func() string
	Timeout    time.Duration
	Metrics    *metrics.Metrics
	// OnFinish runs on the worker after the slot is released.
	OnFinish func(Status)
}

// Result is the outcome of one run.
type Result struct {
	Path    string
	Preview string
	Err     error
}

// Run is the exclusive handle of a submitted clip. Only the handle
// publishes status for its run.
type Run struct {
	ID        string
	Label     string
	StartedAt time.Time

	clip   *audio.Clip
	runner *Runner
	done   chan struct{}
	result Result
}

// Done is closed when the run has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Result blocks until the run finishes and returns its outcome.
func (r *Run) Result() Result {
	<-r.done
	return r.result
}

// publish replaces the status if this run still owns it.
func (r *Run) publish(s Status) {
	s.RunID, s.Label, s.StartedAt = r.ID, r.Label, r.StartedAt
	s.UpdatedAt = r.runner.now()
	r.runner.status.Write(func(cur *Status) {
		if cur.RunID == r.ID {
			*cur = s
		}
	})
}

// Runner owns the single pipeline slot.
type Runner struct {
	opts   Options
	now    func() time.Time
	status *syncx.RWGuard[Status]
	jobs   chan *Run

	mu     sync.Mutex // guards closed and sends on jobs
	closed bool
	wg     sync.WaitGroup
}

// New starts a runner with one worker goroutine.
func New(opts Options) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRunTimeout
	}
	if opts.Credential == nil {
		opts.Credential = func() string { return "" }
	}
	r := &Runner{
		opts:   opts,
		now:    time.Now,
		status: syncx.NewGuard(Status{Phase: Idle}),
		jobs:   make(chan *Run, 1),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// Status returns a copy of the current status.
func (r *Runner) Status() Status { return r.status.Get() }

// Busy reports whether a run is in flight.
func (r *Runner) Busy() bool {
	return syncx.View(r.status, func(s Status) bool { return s.Busy() })
}

// Submit hands clip to the worker. It fails with AlreadyProcessing while a
// run is in flight and with Unavailable after Close. On failure the caller
// keeps ownership of clip.
func (r *Runner) Submit(clip *audio.Clip, startedAt time.Time, label string) (*Run, error) {
	if clip == nil {
		return nil, apperrors.New(apperrors.InvalidArgument, "nil clip")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, apperrors.New(apperrors.Unavailable, "pipeline is shut down")
	}

	run := &Run{
		ID:        uuid.NewString(),
		Label:     label,
		StartedAt: startedAt,
		clip:      clip,
		runner:    r,
		done:      make(chan struct{}),
	}
	next := Status{
		Phase:     Processing,
		RunID:     run.ID,
		Label:     label,
		StartedAt: startedAt,
		UpdatedAt: r.now(),
	}
	cur, ok := r.status.TrySet(func(s Status) bool { return !s.Busy() }, next)
	if !ok {
		return nil, apperrors.New(apperrors.AlreadyProcessing, "a transcript is already being processed").
			WithMetadata("run_id", cur.RunID)
	}
	r.opts.Metrics.SetPipelineBusy(true)
	r.jobs <- run
	return run, nil
}

// Close stops accepting work and waits for the in-flight run.
func (r *Runner) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for run := range r.jobs {
		r.execute(run)
	}
}

func (r *Runner) execute(run *Run) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()
	ctx = trace.WithField(ctx, "run_id", run.ID)
	ctx, span := trace.StartSpan(ctx, "pipeline.run")
	span.SetAttr("label", run.Label)
	span.SetAttr("clip_seconds", run.clip.Duration().Seconds())
	log := trace.Logger(ctx)
	log.Info("pipeline run started", "label", run.Label, "clip", run.clip.Duration())

	var res Result
	func() {
		defer func() {
			if p := recover(); p != nil {
				res = Result{Err: apperrors.Newf(apperrors.Internal, "pipeline panic: %v", p)}
			}
		}()
		res = r.process(ctx, run)
	}()
	if err := run.clip.Remove(); err != nil {
		log.Warn("failed to remove clip", "path", run.clip.Path, "error", err)
	}

	var final Status
	if res.Err != nil {
		span.RecordError(res.Err)
		final = Status{Phase: Failed, Error: res.Err.Error(), Code: apperrors.CodeOf(res.Err).String()}
		r.opts.Metrics.RecordRun("failed")
		log.Error("pipeline run failed", "error", res.Err)
	} else {
		span.SetAttr("path", res.Path)
		final = Status{Phase: Done, Path: res.Path, Preview: res.Preview}
		r.opts.Metrics.RecordRun("done")
		log.Info("transcript saved", "path", res.Path)
	}
	span.End()

	run.result = res
	run.publish(final)
	r.opts.Metrics.SetPipelineBusy(false)
	close(run.done)

	if r.opts.OnFinish != nil {
		r.opts.OnFinish(r.Status())
	}
}

// process runs the stages. The clip is removed by the caller.
func (r *Runner) process(ctx context.Context, run *Run) Result {
	log := trace.Logger(ctx)

	start := time.Now()
	segments, err := r.transcribe(ctx, run.clip)
	r.opts.Metrics.ObserveStage("transcribe", time.Since(start).Seconds())
	if err != nil {
		return Result{Err: err}
	}

	if cred := r.opts.Credential(); cred != "" && len(segments) > 0 && r.opts.Diarizer != nil {
		start = time.Now()
		turns, err := r.diarize(ctx, run.clip, cred)
		r.opts.Metrics.ObserveStage("diarize", time.Since(start).Seconds())
		if err != nil {
			log.Warn("diarization failed, keeping unlabeled segments", "error", err)
		} else {
			transcript.AssignSpeakers(segments, turns)
		}
	}

	if err := run.clip.Remove(); err != nil {
		log.Warn("failed to remove clip", "path", run.clip.Path, "error", err)
	}

	doc := transcript.NewDocument(segments, run.StartedAt, run.Label)
	start = time.Now()
	path, err := r.opts.Sink.Save(ctx, doc)
	r.opts.Metrics.ObserveStage("persist", time.Since(start).Seconds())
	if err != nil {
		if !apperrors.IsCode(err, apperrors.PersistenceFailed) {
			err = apperrors.Wrap(err, apperrors.PersistenceFailed, "save transcript")
		}
		return Result{Err: err}
	}
	return Result{Path: path, Preview: Preview(doc.Text)}
}

func (r *Runner) transcribe(ctx context.Context, clip *audio.Clip) (segs []transcript.Segment, err error) {
	ctx, span := trace.StartSpan(ctx, "pipeline.transcribe")
	defer func() {
		span.RecordError(err)
		span.End()
	}()

	raw, err := r.opts.Transcriber.Transcribe(ctx, clip)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TranscriptionFailed, "transcribe")
	}
	segs = make([]transcript.Segment, 0, len(raw))
	for _, s := range raw {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		segs = append(segs, s)
	}
	span.SetAttr("segments", len(segs))
	return segs, nil
}

func (r *Runner) diarize(ctx context.Context, clip *audio.Clip, cred string) (turns []transcript.Turn, err error) {
	ctx, span := trace.StartSpan(ctx, "pipeline.diarize")
	defer func() {
		span.RecordError(err)
		span.End()
	}()
	defer func() {
		if p := recover(); p != nil {
			err = apperrors.Newf(apperrors.DiarizationFailed, "diarizer panic: %v", p)
		}
	}()

	turns, err = r.opts.Diarizer.Diarize(ctx, clip, cred)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.DiarizationFailed, "diarize")
	}
	span.SetAttr("turns", len(turns))
	return turns, nil
}
