//go:build darwin

package calendar

// Default returns the Calendar.app source.
func Default() Source { return NewAppleScript() }
