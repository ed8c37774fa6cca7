//go:build darwin && cgo

package presence

/*
#cgo LDFLAGS: -framework CoreAudio
#include <CoreAudio/CoreAudio.h>
#include <stdlib.h>
#include <sys/types.h>

#define SEL_DEFAULT_INPUT  0x64496E20 // 'dIn '
#define SEL_RUNNING_SOMEWH 0x676F6E65 // 'gone'
#define SEL_PROCESS_LIST   0x706C7374 // 'plst'
#define SEL_PROCESS_PID    0x70706964 // 'ppid'
#define SEL_PROCESS_IN     0x70697220 // 'pir '
#define SCOPE_GLOBAL       0x676C6F62 // 'glob'

static int trnscrb_input_running(void) {
	AudioObjectPropertyAddress addr = { SEL_DEFAULT_INPUT, SCOPE_GLOBAL, 0 };
	AudioDeviceID dev = 0;
	UInt32 size = sizeof(dev);
	if (AudioObjectGetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, &size, &dev) != noErr || dev == 0) {
		return 0;
	}
	addr.mSelector = SEL_RUNNING_SOMEWH;
	UInt32 running = 0;
	size = sizeof(running);
	if (AudioObjectGetPropertyData(dev, &addr, 0, NULL, &size, &running) != noErr) {
		return 0;
	}
	return running != 0;
}

static int trnscrb_input_pids(pid_t *out, int max) {
	AudioObjectPropertyAddress addr = { SEL_PROCESS_LIST, SCOPE_GLOBAL, 0 };
	UInt32 size = 0;
	if (AudioObjectGetPropertyDataSize(kAudioObjectSystemObject, &addr, 0, NULL, &size) != noErr || size == 0) {
		return 0;
	}
	AudioObjectID *objs = malloc(size);
	if (objs == NULL) {
		return 0;
	}
	if (AudioObjectGetPropertyData(kAudioObjectSystemObject, &addr, 0, NULL, &size, objs) != noErr) {
		free(objs);
		return 0;
	}
	UInt32 n = size / sizeof(AudioObjectID);
	int count = 0;
	for (UInt32 i = 0; i < n && count < max; i++) {
		AudioObjectPropertyAddress in = { SEL_PROCESS_IN, SCOPE_GLOBAL, 0 };
		UInt32 running = 0, rs = sizeof(running);
		if (AudioObjectGetPropertyData(objs[i], &in, 0, NULL, &rs, &running) != noErr || running == 0) {
			continue;
		}
		AudioObjectPropertyAddress pa = { SEL_PROCESS_PID, SCOPE_GLOBAL, 0 };
		pid_t pid = 0;
		UInt32 ps = sizeof(pid);
		if (AudioObjectGetPropertyData(objs[i], &pa, 0, NULL, &ps, &pid) != noErr) {
			continue;
		}
		out[count++] = pid;
	}
	free(objs);
	return count;
}
*/
import "C"

import "os"

const maxInputPIDs = 256

type coreAudioSignals struct{}

// DefaultSignals returns the CoreAudio-backed signals.
func DefaultSignals() Signals { return coreAudioSignals{} }

func (coreAudioSignals) InputActive() bool {
	return C.trnscrb_input_running() != 0
}

// ActiveInputPIDs needs macOS 14; older systems report an empty set.
func (coreAudioSignals) ActiveInputPIDs() map[int]struct{} {
	var buf [maxInputPIDs]C.pid_t
	n := int(C.trnscrb_input_pids(&buf[0], maxInputPIDs))
	self := os.Getpid()
	pids := make(map[int]struct{}, n)
	for i := 0; i < n; i++ {
		if pid := int(buf[i]); pid != self {
			pids[pid] = struct{}{}
		}
	}
	return pids
}
