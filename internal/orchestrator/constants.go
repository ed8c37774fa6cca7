// Package orchestrator connects the presence watcher, audio capture and the
// transcription pipeline, and answers the manual recording commands.
package orchestrator

import "time"

const (
	// EventLogSize is the number of lifecycle events kept for /api/events.
	EventLogSize = 200
	// EventBuffer is the broadcast buffer of the event log.
	EventBuffer = 64

	// drainPoll is how often Stop checks for pipeline idleness.
	drainPoll = 100 * time.Millisecond

	clockFmt     = "15:04"
	loopbackNote = " (system + mic)"
)

// User-facing messages of the manual commands.
const (
	msgAlreadyRecording = "Already recording."
	msgNotRecording     = "Not currently recording."
	msgNoAudio          = "Recording stopped but no audio was captured."
	msgTranscribing     = "Transcription in progress — processing audio, please wait."
	msgComplete         = "Transcription complete. Use get_last_transcript to read it."
	msgIdle             = "Idle — no active recording or pending transcription."
	msgStillRunning     = "Still transcribing — check back in a moment."
	msgNoTranscript     = "No transcript available yet. Start and stop a recording first."
)
