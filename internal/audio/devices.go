package audio

import (
	"strconv"
	"strings"

	apperrors "github.com/trnscrb/trnscrb/internal/errors"
)

// Device is an input-capable audio device.
type Device struct {
	Index    int    `json:"index" yaml:"index"`
	Name     string `json:"name" yaml:"name"`
	Channels int    `json:"channels" yaml:"channels"`
	Loopback bool   `json:"loopback" yaml:"loopback"`
	Default  bool   `json:"default,omitempty" yaml:"default,omitempty"`
}

var loopbackKeywords = []string{"blackhole", "soundflower", "loopback", "vb-cable", "monitor of"}

// isLoopback reports whether name looks like a virtual system-audio device.
func isLoopback(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range loopbackKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// FindDevice returns the first device whose name contains fragment,
// ignoring case.
func FindDevice(devs []Device, fragment string) (Device, bool) {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return Device{}, false
	}
	for _, d := range devs {
		if d.Channels > 0 && strings.Contains(strings.ToLower(d.Name), needle) {
			return d, true
		}
	}
	return Device{}, false
}

// FindLoopback returns the first loopback device, preferring BlackHole.
func FindLoopback(devs []Device) (Device, bool) {
	if d, ok := FindDevice(devs, "blackhole"); ok {
		return d, true
	}
	for _, d := range devs {
		if d.Loopback && d.Channels > 0 {
			return d, true
		}
	}
	return Device{}, false
}

// resolveDevice maps a selector to a device: empty picks the loopback (when
// preferred) or the default input, digits select by index, anything else is
// a name fragment.
func resolveDevice(devs []Device, selector string, preferLoopback bool) (Device, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		if preferLoopback {
			if d, ok := FindLoopback(devs); ok {
				return d, nil
			}
		}
		for _, d := range devs {
			if d.Default && d.Channels > 0 {
				return d, nil
			}
		}
		for _, d := range devs {
			if d.Channels > 0 {
				return d, nil
			}
		}
		return Device{}, apperrors.New(apperrors.DeviceUnavailable, "no input device available")
	}

	if idx, err := strconv.Atoi(selector); err == nil {
		for _, d := range devs {
			if d.Index == idx && d.Channels > 0 {
				return d, nil
			}
		}
		return Device{}, apperrors.Newf(apperrors.DeviceUnavailable, "no input device with index %d", idx)
	}

	if d, ok := FindDevice(devs, selector); ok {
		return d, nil
	}
	return Device{}, apperrors.Newf(apperrors.DeviceUnavailable, "no input device matching %q", selector)
}
