package presence

import (
	"fmt"
	"time"
)

// State of the presence watcher.
type State int

const (
	Idle State = iota
	Warming
	Active
	Cooling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Warming:
		return "warming"
	case Active:
		return "active"
	case Cooling:
		return "cooling"
	default:
		return "unknown"
	}
}

// MarshalText lets State render as its name in JSON and YAML.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for st := Idle; st <= Cooling; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown presence state %q", b)
}

// Timing holds the watcher thresholds.
type Timing struct {
	Poll         time.Duration
	Warmup       time.Duration
	Grace        time.Duration
	MinSession   time.Duration
	AppPollEvery int
	AppGonePolls int
}

// DefaultTiming returns the built-in thresholds.
func DefaultTiming() Timing {
	return Timing{
		Poll:         PollInterval,
		Warmup:       WarmupPeriod,
		Grace:        GracePeriod,
		MinSession:   MinSessionLength,
		AppPollEvery: AppPollEvery,
		AppGonePolls: AppGonePolls,
	}
}

// Edge is what a tick emits.
type Edge int

const (
	NoEdge Edge = iota
	Started
	Ended
	Discarded // session ended below the minimum length
)

// Transition describes the outcome of one tick.
type Transition struct {
	From, To State
	Edge     Edge
	// Session is the session length for Ended and Discarded.
	Session time.Duration
}

// Changed reports whether the state moved.
func (t Transition) Changed() bool { return t.From != t.To }

// machine is the pure presence state machine. It never touches the clock or
// the platform; callers pass both in.
type machine struct {
	timing     Timing
	state      State
	since      time.Time
	recStarted time.Time
	gone       int
	appCounter int
}

func newMachine(t Timing) machine { return machine{timing: t} }

// step advances the machine by one tick. appCheck is called only when the
// session check is due.
func (m *machine) step(now time.Time, micActive bool, appCheck func() bool) Transition {
	tr := Transition{From: m.state}
	var elapsed time.Duration
	if !m.since.IsZero() {
		elapsed = now.Sub(m.since)
	}

	switch m.state {
	case Idle:
		if micActive {
			m.enter(Warming, now)
		}

	case Warming:
		switch {
		case !micActive:
			m.enter(Idle, time.Time{})
		case elapsed >= m.timing.Warmup:
			m.recStarted = now
			m.enter(Active, now)
			m.appCounter = m.timing.AppPollEvery
			tr.Edge = Started
		}

	case Active:
		if !micActive {
			m.enter(Cooling, now)
			break
		}
		m.appCounter++
		if m.appCounter >= m.timing.AppPollEvery {
			m.appCounter = 0
			if appCheck() {
				m.gone = 0
			} else {
				m.gone++
				if m.gone >= m.timing.AppGonePolls {
					m.enter(Cooling, now)
				}
			}
		}

	case Cooling:
		switch {
		case micActive && appCheck():
			m.enter(Active, now)
			m.appCounter = m.timing.AppPollEvery
		case elapsed >= m.timing.Grace:
			var session time.Duration
			if !m.recStarted.IsZero() {
				session = now.Sub(m.recStarted)
			}
			m.recStarted = time.Time{}
			m.enter(Idle, time.Time{})
			tr.Session = session
			if session >= m.timing.MinSession {
				tr.Edge = Ended
			} else {
				tr.Edge = Discarded
			}
		}
	}

	tr.To = m.state
	return tr
}

func (m *machine) enter(s State, since time.Time) {
	m.state = s
	m.since = since
	m.gone = 0
}
