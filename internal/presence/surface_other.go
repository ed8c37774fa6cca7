//go:build !darwin

package presence

// Browser tabs are only inspected through AppleScript.
func browserScripts() []string { return nil }
