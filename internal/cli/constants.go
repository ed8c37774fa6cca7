// Package cli implements the trnscrb command line.
package cli

import "time"

const (
	// drainTimeout bounds how long shutdown waits for queued transcriptions.
	drainTimeout = 5 * time.Minute
	// httpShutdownTimeout bounds the HTTP server's graceful shutdown.
	httpShutdownTimeout = 5 * time.Second
	// statusTimeout bounds the status query against a running server.
	statusTimeout = 3 * time.Second

	// listLimit caps the transcripts printed by list.
	listLimit = 30
	// modifiedLayout matches the list timestamp to the minute.
	modifiedLayout = "2006-01-02T15:04"

	// micSamples is how many times mic-status samples the input by default.
	micSamples = 10
)

// micSampleInterval spaces the mic-status samples.
var micSampleInterval = time.Second

const (
	msgNoTranscripts = "No transcripts found in %s/"
	msgNotFound      = "Transcript '%s' not found."
	msgNoEvent       = "No current or upcoming calendar events found."
	msgNoDevices     = "No input devices found."
	msgUnknownApp    = "unknown"
)
