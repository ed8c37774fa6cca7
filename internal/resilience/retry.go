package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Retry settings.
const (
	DefaultMaxRetries   = 3
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
	DefaultJitterFactor = 0.2

	// Transcription and diarization calls are long; retry only a couple of
	// times, and only for failures that happened before any work was done.
	EngineMaxRetries = 2
	EngineBaseDelay  = time.Second
	EngineMaxDelay   = 5 * time.Second

	// The enrichment LLM is flakier.
	LLMMaxRetries = 4
	LLMBaseDelay  = time.Second
	LLMMaxDelay   = 30 * time.Second
)

// RetryConfig holds retry settings.
type RetryConfig struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
	IsRetryable  func(error) bool
}

// DefaultRetryConfig returns general retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  IsRetryableGRPC,
	}
}

// EngineRetryConfig returns settings for transcribe and diarize calls.
func EngineRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   EngineMaxRetries,
		BaseDelay:    EngineBaseDelay,
		MaxDelay:     EngineMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  isUnavailable,
	}
}

// LLMRetryConfig returns settings for enrichment calls.
func LLMRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   LLMMaxRetries,
		BaseDelay:    LLMBaseDelay,
		MaxDelay:     LLMMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  IsRetryableGRPC,
	}
}

// IsRetryableGRPC reports whether a gRPC error is transient.
func IsRetryableGRPC(err error) bool {
	if err == nil || errors.Is(err, ErrOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return true
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

// isUnavailable only retries a refused connection.
func isUnavailable(err error) bool {
	if err == nil || errors.Is(err, ErrOpen) {
		return false
	}
	return status.Code(err) == codes.Unavailable
}

// Retry runs fn with exponential backoff and returns the last error.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if !cfg.IsRetryable(lastErr) || attempt == cfg.MaxRetries {
			return lastErr
		}

		delay := backoffDelay(cfg, attempt)
		slog.Debug("retrying engine call", "attempt", attempt+1, "max", cfg.MaxRetries, "delay", delay, "error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// Call runs fn behind b, retrying per cfg. Open-breaker rejections are
// returned at once.
func Call[T any](ctx context.Context, b *Breaker, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := Retry(ctx, cfg, func() error {
		v, err := ExecuteWithResult(b, func() (T, error) { return fn(ctx) })
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// backoffDelay is BaseDelay doubled per attempt, capped, with jitter.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay << min(attempt, 6)
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	jitter := float64(delay) * cfg.JitterFactor * (rand.Float64() - 0.5)
	return time.Duration(float64(delay) + jitter)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterFactor <= 0 {
		c.JitterFactor = DefaultJitterFactor
	}
	if c.IsRetryable == nil {
		c.IsRetryable = IsRetryableGRPC
	}
	return c
}
