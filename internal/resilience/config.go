package resilience

import "time"

// Breaker settings.
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 2

	// The engine runs next to us; a short run of failures means it is down.
	EngineThreshold         = 3
	EngineResetTimeout      = 15 * time.Second
	EngineHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // used in logs and state hooks
	Threshold         int           // consecutive failures before opening
	ResetTimeout      time.Duration // wait before a half-open probe
	HalfOpenSuccesses int           // probe successes needed to close
	// IsFailure decides which errors count against the breaker.
	// Nil counts every error except caller mistakes and cancellation.
	IsFailure func(error) bool
}

// DefaultConfig returns general-purpose defaults.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// EngineConfig returns the settings used for inference engine calls.
func EngineConfig(name string) Config {
	return Config{
		Name:              name,
		Threshold:         EngineThreshold,
		ResetTimeout:      EngineResetTimeout,
		HalfOpenSuccesses: EngineHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	if c.IsFailure == nil {
		c.IsFailure = countsAsFailure
	}
	return c
}
