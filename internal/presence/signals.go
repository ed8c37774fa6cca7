package presence

// Signals reports input-device activity on the host.
type Signals interface {
	// InputActive reports whether the default input is in use. The linux
	// implementation leaves out this process's own stream.
	InputActive() bool
	// ActiveInputPIDs returns the pids of other processes capturing input.
	ActiveInputPIDs() map[int]struct{}
}

// NoSignals reports no activity ever.
type NoSignals struct{}

func (NoSignals) InputActive() bool                 { return false }
func (NoSignals) ActiveInputPIDs() map[int]struct{} { return nil }
