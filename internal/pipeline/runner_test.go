package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/trnscrb/trnscrb/internal/audio"
	apperrors "github.com/trnscrb/trnscrb/internal/errors"
	"github.com/trnscrb/trnscrb/internal/transcript"
)

type fakeTranscriber struct {
	segments []transcript.Segment
	err      error
	panicMsg string
	gate     chan struct{} // when set, Transcribe waits for it
	sawFile  bool
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, clip *audio.Clip) ([]transcript.Segment, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	_, err := os.Stat(clip.Path)
	f.sawFile = err == nil
	return append([]transcript.Segment(nil), f.segments...), f.err
}

type fakeDiarizer struct {
	turns []transcript.Turn
	err   error
	calls int
	cred  string
}

func (f *fakeDiarizer) Diarize(ctx context.Context, clip *audio.Clip, cred string) ([]transcript.Turn, error) {
	f.calls++
	f.cred = cred
	return f.turns, f.err
}

type fakeSink struct {
	mu   sync.Mutex
	docs []transcript.Document
	err  error
}

func (f *fakeSink) Save(ctx context.Context, doc transcript.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.docs = append(f.docs, doc)
	return "/notes/" + doc.Name + ".txt", nil
}

func newClip(t *testing.T) *audio.Clip {
	t.Helper()
	clip, err := audio.NewClip(make([]int16, 1600), audio.SampleRate, t.TempDir())
	if err != nil {
		t.Fatalf("NewClip() error: %v", err)
	}
	return clip
}

func clipGone(t *testing.T, clip *audio.Clip) bool {
	t.Helper()
	_, err := os.Stat(clip.Path)
	return os.IsNotExist(err)
}

var sampleSegments = []transcript.Segment{
	{Start: 0, End: 2, Text: " Hello there "},
	{Start: 2, End: 3, Text: "   "},
	{Start: 3, End: 6, Text: "General Kenobi"},
}

func TestRunSucceeds(t *testing.T) {
	tr := &fakeTranscriber{segments: sampleSegments}
	sink := &fakeSink{}
	r := New(Options{Transcriber: tr, Sink: sink})
	defer r.Close()

	clip := newClip(t)
	started := time.Date(2025, 6, 1, 14, 0, 0, 0, time.Local)
	run, err := r.Submit(clip, started, "Standup")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	res := run.Result()
	if res.Err != nil {
		t.Fatalf("run failed: %v", res.Err)
	}

	if !tr.sawFile {
		t.Error("clip file should exist while transcribing")
	}
	if !clipGone(t, clip) {
		t.Error("clip should be removed after the run")
	}
	if len(sink.docs) != 1 {
		t.Fatalf("saved %d docs, want 1", len(sink.docs))
	}
	doc := sink.docs[0]
	if len(doc.Segments) != 2 || doc.Segments[0].Text != "Hello there" {
		t.Errorf("segments = %+v, want blank dropped and text trimmed", doc.Segments)
	}
	if !doc.StartedAt.Equal(started) || doc.Name != "Standup" {
		t.Errorf("doc = %q at %v", doc.Name, doc.StartedAt)
	}

	st := r.Status()
	if st.Phase != Done || st.Path != "/notes/Standup.txt" || st.RunID != run.ID {
		t.Errorf("status = %+v", st)
	}
	if st.Preview != doc.Text {
		t.Errorf("preview = %q, want the short transcript verbatim", st.Preview)
	}
}

func TestSubmitWhileProcessing(t *testing.T) {
	gate := make(chan struct{})
	r := New(Options{Transcriber: &fakeTranscriber{gate: gate}, Sink: &fakeSink{}})
	defer r.Close()

	run, err := r.Submit(newClip(t), time.Now(), "first")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Busy() || r.Status().Phase != Processing {
		t.Fatalf("status = %+v, want processing", r.Status())
	}

	second := newClip(t)
	if _, err := r.Submit(second, time.Now(), "second"); !apperrors.IsCode(err, apperrors.AlreadyProcessing) {
		t.Errorf("Submit() error = %v, want AlreadyProcessing", err)
	}
	if clipGone(t, second) {
		t.Error("a rejected clip stays with the caller")
	}

	close(gate)
	<-run.Done()
	if _, err := r.Submit(second, time.Now(), "second"); err != nil {
		t.Errorf("Submit() after finish error: %v", err)
	}
}

func TestConcurrentSubmitSingleWinner(t *testing.T) {
	gate := make(chan struct{})
	r := New(Options{Transcriber: &fakeTranscriber{gate: gate}, Sink: &fakeSink{}})
	defer r.Close()

	clips := make([]*audio.Clip, 20)
	for i := range clips {
		clips[i] = newClip(t)
	}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, c := range clips {
		wg.Add(1)
		go func(c *audio.Clip) {
			defer wg.Done()
			if _, err := r.Submit(c, time.Now(), "x"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()
	close(gate)
	if wins != 1 {
		t.Errorf("%d submits accepted, want 1", wins)
	}
}

func TestTranscriptionFailure(t *testing.T) {
	sink := &fakeSink{}
	r := New(Options{Transcriber: &fakeTranscriber{err: errors.New("model crashed")}, Sink: sink})
	defer r.Close()

	clip := newClip(t)
	run, _ := r.Submit(clip, time.Now(), "x")
	res := run.Result()

	if !apperrors.IsCode(res.Err, apperrors.TranscriptionFailed) {
		t.Errorf("error = %v, want TranscriptionFailed", res.Err)
	}
	st := r.Status()
	if st.Phase != Failed || st.Code != "TRANSCRIPTION_FAILED" || !strings.Contains(st.Error, "model crashed") {
		t.Errorf("status = %+v", st)
	}
	if !clipGone(t, clip) {
		t.Error("clip should be removed after a failed transcription")
	}
	if len(sink.docs) != 0 {
		t.Error("nothing should be saved")
	}
}

func TestDiarization(t *testing.T) {
	tests := []struct {
		name      string
		cred      string
		segments  []transcript.Segment
		diar      *fakeDiarizer
		wantCalls int
		wantFirst string
	}{
		{
			"labels speakers",
			"hf_x",
			sampleSegments,
			&fakeDiarizer{turns: []transcript.Turn{{Start: 0, End: 2.5, Speaker: "SPEAKER_00"}, {Start: 2.5, End: 6, Speaker: "SPEAKER_01"}}},
			1, "SPEAKER_00",
		},
		{
			"failure is ignored",
			"hf_x",
			sampleSegments,
			&fakeDiarizer{err: errors.New("gated model")},
			1, "",
		},
		{
			"no credential skips",
			"",
			sampleSegments,
			&fakeDiarizer{},
			0, "",
		},
		{
			"no segments skips",
			"hf_x",
			nil,
			&fakeDiarizer{},
			0, "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{}
			r := New(Options{
				Transcriber: &fakeTranscriber{segments: tt.segments},
				Diarizer:    tt.diar,
				Sink:        sink,
				Credential:  func() string { return tt.cred },
			})
			defer r.Close()

			clip := newClip(t)
			run, err := r.Submit(clip, time.Now(), "x")
			if err != nil {
				t.Fatal(err)
			}
			if res := run.Result(); res.Err != nil {
				t.Fatalf("run failed: %v", res.Err)
			}
			if tt.diar.calls != tt.wantCalls {
				t.Errorf("diarizer calls = %d, want %d", tt.diar.calls, tt.wantCalls)
			}
			if tt.wantCalls > 0 && tt.diar.cred != tt.cred {
				t.Errorf("credential = %q, want %q", tt.diar.cred, tt.cred)
			}
			if !clipGone(t, clip) {
				t.Error("clip should be removed regardless of diarization outcome")
			}
			if len(sink.docs) != 1 {
				t.Fatalf("saved %d docs, want 1", len(sink.docs))
			}
			if segs := sink.docs[0].Segments; len(segs) > 0 && segs[0].Speaker != tt.wantFirst {
				t.Errorf("first speaker = %q, want %q", segs[0].Speaker, tt.wantFirst)
			}
		})
	}
}

func TestPersistenceFailure(t *testing.T) {
	r := New(Options{
		Transcriber: &fakeTranscriber{segments: sampleSegments},
		Sink:        &fakeSink{err: errors.New("disk full")},
	})
	defer r.Close()

	clip := newClip(t)
	run, _ := r.Submit(clip, time.Now(), "x")
	res := run.Result()
	if !apperrors.IsCode(res.Err, apperrors.PersistenceFailed) {
		t.Errorf("error = %v, want PersistenceFailed", res.Err)
	}
	if r.Status().Phase != Failed {
		t.Errorf("phase = %v, want failed", r.Status().Phase)
	}
	if !clipGone(t, clip) {
		t.Error("clip should be removed")
	}
}

func TestPanicBecomesFailure(t *testing.T) {
	r := New(Options{Transcriber: &fakeTranscriber{panicMsg: "boom"}, Sink: &fakeSink{}})
	defer r.Close()

	clip := newClip(t)
	run, _ := r.Submit(clip, time.Now(), "x")
	res := run.Result()
	if res.Err == nil || !strings.Contains(res.Err.Error(), "boom") {
		t.Errorf("error = %v, want recovered panic", res.Err)
	}
	if !clipGone(t, clip) {
		t.Error("clip should be removed after a panic")
	}

	// The worker survives the panic.
	run, err := r.Submit(newClip(t), time.Now(), "y")
	if err != nil {
		t.Fatal(err)
	}
	<-run.Done()
}

func TestCloseDrainsAndRejects(t *testing.T) {
	gate := make(chan struct{})
	sink := &fakeSink{}
	r := New(Options{Transcriber: &fakeTranscriber{gate: gate, segments: sampleSegments}, Sink: sink})

	run, err := r.Submit(newClip(t), time.Now(), "x")
	if err != nil {
		t.Fatal(err)
	}
	closed := make(chan struct{})
	go func() {
		r.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned before the in-flight run finished")
	case <-time.After(20 * time.Millisecond):
	}
	close(gate)
	<-closed

	if res := run.Result(); res.Err != nil {
		t.Errorf("drained run failed: %v", res.Err)
	}
	if _, err := r.Submit(newClip(t), time.Now(), "late"); !apperrors.IsCode(err, apperrors.Unavailable) {
		t.Errorf("Submit() after Close error = %v, want Unavailable", err)
	}
	r.Close() // idempotent
}

func TestOnFinishRunsAfterSlotRelease(t *testing.T) {
	var (
		r        *Runner
		mu       sync.Mutex
		statuses []Status
		resubmit *Run
	)
	next := newClip(t)
	finished := make(chan struct{}, 2)
	r = New(Options{
		Transcriber: &fakeTranscriber{segments: sampleSegments},
		Sink:        &fakeSink{},
		OnFinish: func(s Status) {
			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, s)
			if len(statuses) == 1 {
				run, err := r.Submit(next, time.Now(), "queued")
				if err != nil {
					t.Errorf("Submit() from hook error: %v", err)
				}
				resubmit = run
			}
			finished <- struct{}{}
		},
	})
	defer r.Close()

	if _, err := r.Submit(newClip(t), time.Now(), "first"); err != nil {
		t.Fatal(err)
	}
	<-finished
	<-finished

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 2 || statuses[0].Phase != Done {
		t.Fatalf("statuses = %+v", statuses)
	}
	if resubmit == nil || statuses[1].RunID != resubmit.ID {
		t.Error("the hook's submission should have run next")
	}
}

func TestPreview(t *testing.T) {
	short := strings.Repeat("a", PreviewLen)
	if got := Preview(short); got != short {
		t.Error("text at the limit should not be truncated")
	}
	long := strings.Repeat("é", PreviewLen+5)
	got := Preview(long)
	if !strings.HasSuffix(got, "…") {
		t.Error("truncated preview should end with an ellipsis")
	}
	if n := len([]rune(got)); n != PreviewLen+1 {
		t.Errorf("preview has %d characters, want %d", n, PreviewLen+1)
	}
}

func TestPhaseString(t *testing.T) {
	for p, want := range map[Phase]string{Idle: "idle", Processing: "processing", Done: "done", Failed: "failed", Phase(7): "unknown"} {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d) = %q, want %q", p, got, want)
		}
	}
}

func TestPhaseText(t *testing.T) {
	for _, p := range []Phase{Idle, Processing, Done, Failed} {
		b, _ := p.MarshalText()
		var got Phase
		if err := got.UnmarshalText(b); err != nil || got != p {
			t.Errorf("UnmarshalText(%q) = %v, %v", b, got, err)
		}
	}
	var p Phase
	if err := p.UnmarshalText([]byte("unknown")); err == nil {
		t.Error("unknown phase should not parse")
	}
}
