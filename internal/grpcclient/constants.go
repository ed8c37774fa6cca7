package grpcclient

import "time"

const (
	// Service is the fully qualified inference service name.
	Service = "trnscrb.inference.v1.Inference"

	methodTranscribe = "Transcribe"
	methodDiarize    = "Diarize"
	methodComplete   = "Complete"

	// Keepalive configuration
	DefaultKeepaliveTime    = 30 * time.Second
	DefaultKeepaliveTimeout = 5 * time.Second

	// Health check configuration
	HealthCheckTimeout = 2 * time.Second

	// DefaultCallTimeout bounds a single transcribe or diarize call.
	DefaultCallTimeout = 10 * time.Minute

	// Beam width requested from the transcription model.
	beamSize = 5

	// maxMessageSize allows long transcripts in responses.
	maxMessageSize = 32 << 20
)
