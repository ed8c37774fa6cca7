package presence

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

const psOutput = `    1 /sbin/launchd
  412 /Applications/Slack.app/Contents/Frameworks/Slack Helper.app/Contents/MacOS/Slack Helper
  733 /Applications/zoom.us.app/Contents/MacOS/zoom.us
  981 /Applications/zoom.us.app/Contents/Frameworks/CptHost.app/Contents/MacOS/CptHost
 1200 /Applications/Google Chrome.app/Contents/MacOS/Google Chrome
garbage line
`

type fakeRunner struct {
	ps      string
	psErr   error
	scripts []string // outputs per osascript call, in order
	calls   []string
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, name)
	switch name {
	case "ps":
		return f.ps, f.psErr
	case "osascript":
		if len(f.scripts) == 0 {
			return "", nil
		}
		out := f.scripts[0]
		f.scripts = f.scripts[1:]
		return out, nil
	}
	return "", errors.New("unexpected command " + name)
}

func newTestSurface(r *fakeRunner, sig Signals, extra ...string) *ProcessSurface {
	s := NewProcessSurface(sig, extra)
	s.run = r.run
	s.scripts = []string{"chrome", "safari"}
	return s
}

func TestParseProcesses(t *testing.T) {
	procs := parseProcesses(psOutput)
	if len(procs) != 5 {
		t.Fatalf("parsed %d processes, want 5", len(procs))
	}
	if procs[2].pid != 733 || !strings.HasSuffix(procs[2].comm, "zoom.us") {
		t.Errorf("procs[2] = %+v", procs[2])
	}
	if !strings.Contains(procs[1].comm, "Slack Helper.app") {
		t.Errorf("comm with spaces not kept whole: %q", procs[1].comm)
	}
}

func TestLabelUsesTableOrder(t *testing.T) {
	r := &fakeRunner{ps: psOutput}
	s := newTestSurface(r, nil)
	got, ok := s.Label(context.Background())
	if !ok || got != "Zoom" {
		t.Errorf("Label() = %q, %v; want Zoom", got, ok)
	}
}

func TestLabelFallsBackToBrowser(t *testing.T) {
	r := &fakeRunner{ps: "    1 /sbin/launchd\n", scripts: []string{"", "Google Meet"}}
	s := newTestSurface(r, nil)
	got, ok := s.Label(context.Background())
	if !ok || got != "Google Meet" {
		t.Errorf("Label() = %q, %v; want Google Meet from the second probe", got, ok)
	}
}

func TestSessionPresent(t *testing.T) {
	tests := []struct {
		name    string
		ps      string
		pids    map[int]struct{}
		scripts []string
		want    bool
	}{
		{"mic pid is session process", psOutput, map[int]struct{}{981: {}}, nil, true},
		{"session process without mic", psOutput, map[int]struct{}{1200: {}}, nil, true},
		{"only helpers running", "  412 /x/Slack Helper\n  733 /x/zoom.us\n", nil, nil, false},
		{"browser tab", "  1 launchd\n", nil, []string{"Microsoft Teams"}, true},
		{"nothing", "  1 launchd\n", nil, []string{"", ""}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{ps: tt.ps, scripts: tt.scripts}
			s := newTestSurface(r, &fakeSignals{pids: tt.pids})
			if got := s.SessionPresent(context.Background()); got != tt.want {
				t.Errorf("SessionPresent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionPresentSurvivesProbeFailure(t *testing.T) {
	r := &fakeRunner{psErr: errors.New("ps: not permitted")}
	s := newTestSurface(r, nil)
	if s.SessionPresent(context.Background()) {
		t.Error("failed probes should report absent")
	}
}

func TestExtraApps(t *testing.T) {
	r := &fakeRunner{ps: "  55 /Applications/Gather.app/Contents/MacOS/Gather\n"}
	s := newTestSurface(r, nil, "Gather=Gather Town", " ", "Pop")

	if !s.SessionPresent(context.Background()) {
		t.Error("extra fragment should count as a live session")
	}
	r.ps = "  55 /Applications/Gather.app/Contents/MacOS/Gather\n"
	if got, ok := s.Label(context.Background()); !ok || got != "Gather Town" {
		t.Errorf("Label() = %q, %v; want Gather Town", got, ok)
	}
	if len(s.session) != len(sessionProcs)+2 {
		t.Errorf("session fragments = %v", s.session)
	}
}

func TestParseSourceOutputs(t *testing.T) {
	out := `Source Output #41
	Driver: PipeWire
	Corked: no
	Properties:
		application.name = "Firefox"
		application.process.id = "4242"
Source Output #42
	Corked: yes
	Properties:
		application.process.id = "77"
`
	outputs := parseSourceOutputs(out)
	if len(outputs) != 2 {
		t.Fatalf("parsed %d outputs, want 2", len(outputs))
	}
	if outputs[0].corked || outputs[0].pid != 4242 {
		t.Errorf("outputs[0] = %+v", outputs[0])
	}
	if !outputs[1].corked || outputs[1].pid != 77 {
		t.Errorf("outputs[1] = %+v", outputs[1])
	}

	p := &pulseSignals{self: 4242, run: func(context.Context, string, ...string) (string, error) { return out, nil }}
	if p.InputActive() {
		t.Error("our own stream should not count as input activity")
	}
	if pids := p.ActiveInputPIDs(); len(pids) != 0 {
		t.Errorf("pids = %v, want own pid and corked outputs excluded", pids)
	}

	p.self = 1
	if !p.InputActive() {
		t.Error("another process's uncorked output means input is active")
	}
	if _, ok := p.ActiveInputPIDs()[4242]; !ok {
		t.Error("pid 4242 should be reported as capturing")
	}
}

func TestCaptureAppHoldingMic(t *testing.T) {
	const ps = " 4242 firefox\n 5000 trnscrb\n 6100 zoom\n"
	tests := []struct {
		name string
		pids map[int]struct{}
		want bool
	}{
		{"browser capturing", map[int]struct{}{4242: {}}, true},
		{"linux zoom client capturing", map[int]struct{}{6100: {}}, true},
		{"browser open without mic", nil, false},
		{"unknown process capturing", map[int]struct{}{5000: {}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSurface(&fakeRunner{ps: ps}, &fakeSignals{pids: tt.pids})
			s.scripts = nil
			if got := s.SessionPresent(context.Background()); got != tt.want {
				t.Errorf("SessionPresent() = %v, want %v", got, tt.want)
			}
		})
	}
}

// A browser call without tab probes must stay one session and end once the
// browser releases the microphone.
func TestBrowserCallWithoutTabProbes(t *testing.T) {
	sig := &fakeSignals{pids: map[int]struct{}{4242: {}}}
	s := newTestSurface(&fakeRunner{ps: " 4242 firefox\n"}, sig)
	s.scripts = nil

	d := newDriver(DefaultTiming())
	step := func(n int, mic bool) {
		for i := 0; i < n; i++ {
			d.now = d.now.Add(time.Second)
			tr := d.m.step(d.now, mic, func() bool { return s.SessionPresent(context.Background()) })
			if tr.Edge != NoEdge {
				d.edges = append(d.edges, tr)
			}
		}
	}

	step(180, true)
	sig.pids = nil
	step(10, false)

	if got := d.count(Started); got != 1 {
		t.Errorf("started = %d, want 1", got)
	}
	if got := d.count(Discarded); got != 0 {
		t.Errorf("discarded = %d, want 0", got)
	}
	if got := d.count(Ended); got != 1 {
		t.Errorf("ended = %d, want 1", got)
	}
	if d.m.state != Idle {
		t.Errorf("state = %v, want idle", d.m.state)
	}
}
