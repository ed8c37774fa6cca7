package presence

import "time"

const (
	// PollInterval is how often the input signal is sampled.
	PollInterval = time.Second
	// WarmupPeriod is how long input must stay active before a conversation starts.
	WarmupPeriod = 5 * time.Second
	// GracePeriod is how long Cooling lasts before the conversation ends.
	GracePeriod = 5 * time.Second
	// MinSessionLength is the shortest session that produces an Ended edge.
	MinSessionLength = 30 * time.Second
	// AppPollEvery runs the session check every N Active ticks.
	AppPollEvery = 4
	// AppGonePolls consecutive negative session checks end an Active session.
	AppGonePolls = 3

	probeTimeout   = 3 * time.Second
	scriptTimeout  = 4 * time.Second
	labelTimeFmt   = "1504"
	fallbackPrefix = "meeting-"
)
