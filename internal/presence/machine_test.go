package presence

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, 5, 5, 10, 0, 0, 0, time.UTC)

// driver feeds the machine one tick per second.
type driver struct {
	m      machine
	now    time.Time
	app    bool
	checks int
	edges  []Transition
}

func newDriver(tm Timing) *driver {
	return &driver{m: newMachine(tm), now: t0, app: true}
}

func (d *driver) tick(mic bool) Transition {
	d.now = d.now.Add(time.Second)
	tr := d.m.step(d.now, mic, func() bool {
		d.checks++
		return d.app
	})
	if tr.Edge != NoEdge {
		d.edges = append(d.edges, tr)
	}
	return tr
}

func (d *driver) run(n int, mic bool) {
	for i := 0; i < n; i++ {
		d.tick(mic)
	}
}

func (d *driver) count(e Edge) int {
	n := 0
	for _, tr := range d.edges {
		if tr.Edge == e {
			n++
		}
	}
	return n
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Idle, "idle"},
		{Warming, "warming"},
		{Active, "active"},
		{Cooling, "cooling"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
		var parsed State
		err := parsed.UnmarshalText([]byte(tt.want))
		if tt.want == "unknown" {
			if err == nil {
				t.Error("unknown state should not parse")
			}
		} else if err != nil || parsed != tt.s {
			t.Errorf("UnmarshalText(%q) = %v, %v", tt.want, parsed, err)
		}
	}
}

func TestDebounceBelowWarmup(t *testing.T) {
	d := newDriver(DefaultTiming())

	// Mic on for 3 ticks, then off: never reaches Active.
	d.run(4, true)
	if d.m.state != Warming {
		t.Fatalf("state = %v, want warming", d.m.state)
	}
	d.tick(false)
	if d.m.state != Idle {
		t.Errorf("state = %v, want idle", d.m.state)
	}
	if !d.m.since.IsZero() {
		t.Error("idle must have a zero since")
	}
	if len(d.edges) != 0 {
		t.Errorf("edges = %v, want none", d.edges)
	}
}

func TestWarmupReachesActive(t *testing.T) {
	d := newDriver(DefaultTiming())
	d.tick(true) // Idle -> Warming at t0+1
	for i := 0; i < 4; i++ {
		if tr := d.tick(true); tr.Edge != NoEdge {
			t.Fatalf("tick %d emitted %v before warm-up elapsed", i, tr.Edge)
		}
	}
	tr := d.tick(true) // 5s after entering Warming
	if tr.Edge != Started || d.m.state != Active {
		t.Fatalf("got %+v state %v, want Started/active", tr, d.m.state)
	}
	if d.checks != 0 {
		t.Errorf("session check ran %d times before Active", d.checks)
	}
}

func TestFirstActiveTickChecksSession(t *testing.T) {
	d := newDriver(DefaultTiming())
	d.run(6, true) // now Active
	d.tick(true)
	if d.checks != 1 {
		t.Fatalf("checks = %d after first Active tick, want 1", d.checks)
	}
	d.run(3, true)
	if d.checks != 1 {
		t.Errorf("checks = %d, want 1 until AppPollEvery ticks pass", d.checks)
	}
	d.tick(true)
	if d.checks != 2 {
		t.Errorf("checks = %d, want 2 on the AppPollEvery-th tick", d.checks)
	}
}

func TestShortSessionDiscarded(t *testing.T) {
	d := newDriver(DefaultTiming())
	d.run(6, true)  // Started
	d.run(10, true) // 10s of Active
	d.run(6, false) // Cooling then Idle

	if d.count(Started) != 1 {
		t.Errorf("Started = %d, want 1", d.count(Started))
	}
	if d.count(Ended) != 0 {
		t.Errorf("Ended = %d, want 0 for a short session", d.count(Ended))
	}
	if d.count(Discarded) != 1 {
		t.Errorf("Discarded = %d, want 1", d.count(Discarded))
	}
	if d.m.state != Idle {
		t.Errorf("state = %v, want idle", d.m.state)
	}
}

func TestLongSessionEndsOnce(t *testing.T) {
	d := newDriver(DefaultTiming())
	d.run(6, true)
	d.run(35, true)
	d.run(8, false)

	if d.count(Started) != 1 || d.count(Ended) != 1 {
		t.Fatalf("Started=%d Ended=%d, want 1/1", d.count(Started), d.count(Ended))
	}
	last := d.edges[len(d.edges)-1]
	if last.Edge != Ended {
		t.Fatalf("last edge = %v, want Ended", last.Edge)
	}
	// 35s active + 5s grace, measured from the Active entry.
	if last.Session != 41*time.Second {
		t.Errorf("session = %v, want 41s", last.Session)
	}
	if !d.m.recStarted.IsZero() {
		t.Error("session start must be cleared on Idle")
	}
}

func TestSixOnSixOffLongCall(t *testing.T) {
	// A call with 6s mic bursts and 6s pauses: each pause outlasts grace, so
	// every burst that reaches Active is its own session.
	d := newDriver(DefaultTiming())
	d.run(6, true)
	d.run(30, true) // long enough on its own
	d.run(6, false)
	d.run(6, true)
	d.run(6, false)

	if d.count(Started) != 2 {
		t.Errorf("Started = %d, want 2", d.count(Started))
	}
	if d.count(Ended) != 1 {
		t.Errorf("Ended = %d, want 1", d.count(Ended))
	}
	if d.count(Discarded) != 1 {
		t.Errorf("Discarded = %d, want 1", d.count(Discarded))
	}
	// Started always precedes its Ended.
	if d.edges[0].Edge != Started || d.edges[1].Edge != Ended {
		t.Errorf("edge order = %v", d.edges)
	}
}

func TestAppGoneEntersCooling(t *testing.T) {
	tm := DefaultTiming()
	d := newDriver(tm)
	d.run(6, true)
	d.app = false

	// Checks happen on the 1st, 5th and 9th Active ticks.
	d.run(8, true)
	if d.m.state != Active {
		t.Fatalf("state = %v after two gone checks, want active", d.m.state)
	}
	if d.m.gone != 2 {
		t.Errorf("gone = %d, want 2", d.m.gone)
	}
	d.tick(true)
	if d.m.state != Cooling {
		t.Fatalf("state = %v after %d gone checks, want cooling", d.m.state, tm.AppGonePolls)
	}
	if d.m.gone != 0 {
		t.Error("gone counter must reset on Cooling")
	}
}

func TestAppPresentResetsGoneCount(t *testing.T) {
	d := newDriver(DefaultTiming())
	d.run(6, true)
	d.app = false
	d.run(5, true) // two gone checks
	d.app = true
	d.run(4, true) // one present check
	if d.m.gone != 0 {
		t.Errorf("gone = %d, want 0 after a present check", d.m.gone)
	}
	if d.m.state != Active {
		t.Errorf("state = %v, want active", d.m.state)
	}
}

func TestCoolingResumesWithoutNewEdge(t *testing.T) {
	d := newDriver(DefaultTiming())
	d.run(6, true)
	started := d.m.recStarted
	d.run(20, true)
	d.run(2, false) // Cooling
	if d.m.state != Cooling {
		t.Fatalf("state = %v, want cooling", d.m.state)
	}
	checks := d.checks
	tr := d.tick(true) // mic back and app present
	if d.m.state != Active || tr.Edge != NoEdge {
		t.Fatalf("got %+v state %v, want silent resume to active", tr, d.m.state)
	}
	if d.checks != checks+1 {
		t.Error("resume must consult the session check")
	}
	if !d.m.recStarted.Equal(started) {
		t.Error("resume must keep the original session start")
	}
	// The tick after resuming performs a check (counter primed).
	d.tick(true)
	if d.checks != checks+2 {
		t.Errorf("checks = %d, want %d", d.checks, checks+2)
	}
	d.run(10, true)
	d.run(6, false)
	if d.count(Started) != 1 || d.count(Ended) != 1 {
		t.Errorf("Started=%d Ended=%d, want 1/1", d.count(Started), d.count(Ended))
	}
}

func TestCoolingWithMicButNoAppStaysCooling(t *testing.T) {
	d := newDriver(DefaultTiming())
	d.run(6, true)
	d.run(40, true)
	d.app = false
	d.run(2, false)
	d.run(3, true)
	if d.m.state != Cooling {
		t.Fatalf("state = %v, want cooling when app is gone", d.m.state)
	}
	d.tick(true)
	if d.m.state != Idle || d.count(Ended) != 1 {
		t.Errorf("state = %v Ended=%d, want idle/1 after grace", d.m.state, d.count(Ended))
	}
}

func TestCoolingSkipsCheckWhenMicOff(t *testing.T) {
	d := newDriver(DefaultTiming())
	d.run(6, true)
	d.tick(true)
	checks := d.checks
	d.run(3, false)
	if d.checks != checks {
		t.Errorf("session check ran with mic off: %d -> %d", checks, d.checks)
	}
}

func TestRepeatedTraversals(t *testing.T) {
	d := newDriver(DefaultTiming())
	for i := 0; i < 3; i++ {
		d.run(6, true)
		d.run(31, true)
		d.run(6, false)
	}
	if d.count(Started) != 3 || d.count(Ended) != 3 {
		t.Errorf("Started=%d Ended=%d, want 3/3", d.count(Started), d.count(Ended))
	}
	for i := 0; i+1 < len(d.edges); i += 2 {
		if d.edges[i].Edge != Started || d.edges[i+1].Edge != Ended {
			t.Errorf("traversal %d edges = %v, %v", i/2, d.edges[i].Edge, d.edges[i+1].Edge)
		}
	}
}
