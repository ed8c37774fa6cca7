package audio

const (
	// SampleRate is the capture rate the transcription engine expects.
	SampleRate = 16000
	// Channels is fixed to mono.
	Channels = 1
	// FramesPerBuffer is the callback block size.
	FramesPerBuffer = 1024

	maxSample = 32767
)
