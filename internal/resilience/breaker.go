// Package resilience guards calls to the inference engine with a circuit
// breaker and jittered retries.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	apperrors "github.com/trnscrb/trnscrb/internal/errors"
)

// State of a breaker.
type State uint32

const (
	Closed   State = iota // calls flow
	Open                  // calls fail fast
	HalfOpen              // probing recovery
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling through while the breaker is open.
var ErrOpen = apperrors.New(apperrors.Unavailable, "inference engine unavailable: circuit open")

// Breaker is a lock-free circuit breaker.
type Breaker struct {
	cfg         Config
	state       atomic.Uint32
	failures    atomic.Int32
	successes   atomic.Int32
	lastFailure atomic.Int64 // unix nano
	now         func() time.Time
	hook        func(name string, from, to State)
}

// New creates a breaker.
func New(cfg Config) *Breaker {
	b := &Breaker{cfg: cfg.withDefaults(), now: time.Now}
	b.state.Store(uint32(Closed))
	return b
}

// WithHook sets a state change callback, e.g. for metrics.
func (b *Breaker) WithHook(fn func(name string, from, to State)) *Breaker {
	b.hook = fn
	return b
}

// Name returns the configured name.
func (b *Breaker) Name() string { return b.cfg.Name }

// Allow returns nil if a call may proceed.
func (b *Breaker) Allow() error {
	switch State(b.state.Load()) {
	case Open:
		if b.resetDue() {
			b.transition(Open, HalfOpen)
			return nil
		}
		return ErrOpen
	default:
		return nil
	}
}

// Success records a successful call.
func (b *Breaker) Success() {
	switch State(b.state.Load()) {
	case HalfOpen:
		if b.successes.Add(1) >= int32(b.cfg.HalfOpenSuccesses) {
			b.transition(HalfOpen, Closed)
		}
	case Closed:
		b.failures.Store(0)
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.lastFailure.Store(b.now().UnixNano())
	count := b.failures.Add(1)

	switch State(b.state.Load()) {
	case HalfOpen:
		b.transition(HalfOpen, Open)
	case Closed:
		if count >= int32(b.cfg.Threshold) {
			b.transition(Closed, Open)
		}
	}
}

// Record counts err against the breaker when it is an engine-side failure.
func (b *Breaker) Record(err error) {
	switch {
	case err == nil:
		b.Success()
	case b.cfg.IsFailure(err):
		b.Failure()
	default:
		// the engine answered; the request itself was bad
		b.Success()
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.transition(b.State(), Closed)
}

// transition moves from -> to; a lost race is a no-op.
func (b *Breaker) transition(from, to State) {
	if from == to || !b.state.CompareAndSwap(uint32(from), uint32(to)) {
		return
	}

	log := slog.With("breaker", b.cfg.Name)
	switch to {
	case Closed:
		b.failures.Store(0)
		b.successes.Store(0)
		log.Info("circuit breaker closed")
	case Open:
		b.successes.Store(0)
		log.Warn("circuit breaker opened", "failures", b.failures.Load())
	case HalfOpen:
		b.successes.Store(0)
		log.Info("circuit breaker half-open")
	}

	if b.hook != nil {
		b.hook(b.cfg.Name, from, to)
	}
}

func (b *Breaker) resetDue() bool {
	last := b.lastFailure.Load()
	if last == 0 {
		return true
	}
	return b.now().Sub(time.Unix(0, last)) > b.cfg.ResetTimeout
}

// Execute runs fn with breaker protection.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	b.Record(err)
	return err
}

// ExecuteWithResult runs fn returning a value with breaker protection.
func ExecuteWithResult[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	result, err := fn()
	b.Record(err)
	if err != nil {
		return zero, err
	}
	return result, nil
}

// countsAsFailure excludes errors that say nothing about engine health.
func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch apperrors.CodeOf(apperrors.FromGRPCError(err)) {
	case apperrors.InvalidArgument, apperrors.NotFound, apperrors.Cancelled:
		return false
	default:
		return true
	}
}
