package pipeline

import "time"

const (
	// PreviewLen is the number of characters kept in Status.Preview.
	PreviewLen = 800

	// DefaultRunTimeout bounds a whole run.
	DefaultRunTimeout = 30 * time.Minute
)
