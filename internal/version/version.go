// Package version holds build metadata set through -ldflags.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Full renders the version line printed by --version.
func Full() string {
	return fmt.Sprintf("trnscrb %s, commit %s, built at %s", Version, Commit, Date)
}
