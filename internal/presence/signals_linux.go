//go:build linux

package presence

import "github.com/trnscrb/trnscrb/internal/execx"

// DefaultSignals returns pactl-backed signals, or NoSignals without pactl.
func DefaultSignals() Signals {
	if !execx.Available("pactl") {
		return NoSignals{}
	}
	return newPulseSignals()
}
