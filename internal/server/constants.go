// Package server exposes the recorder over HTTP and a WebSocket event stream.
package server

import "time"

const (
	// Per-connection WebSocket rate limit for client requests.
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// wsWriteTimeout bounds a single broadcast write to a slow client.
	wsWriteTimeout = 5 * time.Second

	// maxBodyBytes caps JSON request bodies.
	maxBodyBytes = 64 << 10
)

const (
	msgNoEvent     = "No current or upcoming calendar events found."
	msgNotFoundFmt = "Transcript '%s' not found."
	msgRateLimited = "rate limit exceeded"
	msgUnknownType = "unknown message type"
	unmatchedRoute = "unmatched"
)
