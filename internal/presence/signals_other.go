//go:build !linux && !(darwin && cgo)

package presence

// DefaultSignals reports no activity on this platform.
func DefaultSignals() Signals { return NoSignals{} }
