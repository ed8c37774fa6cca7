package presence

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/trnscrb/trnscrb/internal/execx"
)

// sourceOutput is one record of `pactl list source-outputs`.
type sourceOutput struct {
	corked bool
	pid    int
}

// parseSourceOutputs reads the long-form pactl listing.
func parseSourceOutputs(out string) []sourceOutput {
	var (
		outputs []sourceOutput
		cur     *sourceOutput
	)
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Source Output #"):
			outputs = append(outputs, sourceOutput{})
			cur = &outputs[len(outputs)-1]
		case cur == nil:
		case strings.HasPrefix(trimmed, "Corked:"):
			cur.corked = strings.TrimSpace(strings.TrimPrefix(trimmed, "Corked:")) == "yes"
		case strings.HasPrefix(trimmed, "application.process.id"):
			_, v, ok := strings.Cut(trimmed, "=")
			if !ok {
				continue
			}
			if pid, err := strconv.Atoi(strings.Trim(strings.TrimSpace(v), `"`)); err == nil {
				cur.pid = pid
			}
		}
	}
	return outputs
}

// pulseSignals reads PulseAudio/PipeWire capture streams through pactl.
type pulseSignals struct {
	run  execx.Runner
	self int
}

func newPulseSignals() *pulseSignals {
	return &pulseSignals{run: execx.WithTimeout(execx.Command, probeTimeout), self: os.Getpid()}
}

func (p *pulseSignals) list() []sourceOutput {
	out, err := p.run(context.Background(), "pactl", "list", "source-outputs")
	if err != nil {
		slog.Debug("pactl failed", "error", err)
		return nil
	}
	return parseSourceOutputs(out)
}

// InputActive ignores this process's own capture stream, so an ongoing
// recording does not keep the session alive.
func (p *pulseSignals) InputActive() bool {
	for _, o := range p.list() {
		if !o.corked && o.pid != p.self {
			return true
		}
	}
	return false
}

func (p *pulseSignals) ActiveInputPIDs() map[int]struct{} {
	pids := make(map[int]struct{})
	for _, o := range p.list() {
		if !o.corked && o.pid > 0 && o.pid != p.self {
			pids[o.pid] = struct{}{}
		}
	}
	return pids
}
