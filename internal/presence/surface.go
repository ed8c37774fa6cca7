package presence

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/trnscrb/trnscrb/internal/execx"
)

// Surface inspects what is on screen to confirm and name a conversation.
type Surface interface {
	// SessionPresent reports whether a call is live right now.
	SessionPresent(ctx context.Context) bool
	// Label names the conversation app, if one is recognised.
	Label(ctx context.Context) (string, bool)
}

type appMatch struct {
	fragment string
	label    string
}

// nativeApps name the conversation at start. Helper processes stay resident
// while these apps are open, so they are only used for labelling.
var nativeApps = []appMatch{
	{"zoom.us", "Zoom"},
	{"Slack Helper", "Slack Huddle"},
	{"Microsoft Teams Helper", "Microsoft Teams"},
	{"Webex", "Webex"},
	{"Around Helper", "Around"},
	{"Tuple", "Tuple"},
	{"Loom", "Loom"},
	{"FaceTime", "FaceTime"},
	{"Discord Helper", "Discord"},
}

// sessionProcs exist only while a call is in progress.
var sessionProcs = []string{
	"CptHost", // Zoom meeting capture host
	"FaceTime",
	"Tuple",
}

// captureApps count as a live session only while they hold an input
// stream. Browsers host web calls; Linux clients have no session helper.
// Fragments are matched against the lowercased process name.
var captureApps = []string{
	"firefox",
	"chrome",
	"chromium",
	"brave",
	"msedge",
	"opera",
	"vivaldi",
	"safari",
	"zoom",
	"teams",
	"slack",
	"discord",
	"webex",
	"skype",
}

type process struct {
	pid  int
	comm string
}

// parseProcesses reads `ps -ax -o pid=,comm=` output.
func parseProcesses(out string) []process {
	var procs []process
	for _, line := range strings.Split(out, "\n") {
		pidStr, comm, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			continue
		}
		procs = append(procs, process{pid: pid, comm: strings.TrimSpace(comm)})
	}
	return procs
}

// ProcessSurface checks the process table, per-process input use and
// browser tabs.
type ProcessSurface struct {
	signals Signals
	run     execx.Runner
	scripts []string // osascript tab probes, tried in order
	native  []appMatch
	session []string
	capture []string
}

// NewProcessSurface builds a surface. Each extra entry is a process name
// fragment that marks a live session, optionally followed by "=Label" to
// also name the conversation.
func NewProcessSurface(signals Signals, extra []string) *ProcessSurface {
	s := &ProcessSurface{
		signals: signals,
		run:     execx.Command,
		scripts: browserScripts(),
		native:  append([]appMatch(nil), nativeApps...),
		session: append([]string(nil), sessionProcs...),
		capture: captureApps,
	}
	for _, e := range extra {
		frag, label, hasLabel := strings.Cut(e, "=")
		frag = strings.TrimSpace(frag)
		if frag == "" {
			continue
		}
		s.session = append(s.session, frag)
		if hasLabel && strings.TrimSpace(label) != "" {
			s.native = append(s.native, appMatch{frag, strings.TrimSpace(label)})
		}
	}
	return s
}

func (s *ProcessSurface) processes(ctx context.Context) []process {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := s.run(ctx, "ps", "-ax", "-o", "pid=,comm=")
	if err != nil {
		slog.Debug("process listing failed", "error", err)
		return nil
	}
	return parseProcesses(out)
}

// SessionPresent checks, in order: an input-capturing process that is a
// session process or a capture app, any session process, a meeting
// browser tab.
func (s *ProcessSurface) SessionPresent(ctx context.Context) bool {
	procs := s.processes(ctx)

	var micPIDs map[int]struct{}
	if s.signals != nil {
		micPIDs = s.signals.ActiveInputPIDs()
	}
	for _, p := range procs {
		if _, ok := micPIDs[p.pid]; !ok {
			continue
		}
		if s.isSessionProc(p.comm) || s.isCaptureApp(p.comm) {
			return true
		}
	}

	for _, p := range procs {
		if s.isSessionProc(p.comm) {
			return true
		}
	}

	_, ok := s.browserTab(ctx)
	return ok
}

// Label returns the first native app found, else the browser tab.
func (s *ProcessSurface) Label(ctx context.Context) (string, bool) {
	procs := s.processes(ctx)
	for _, app := range s.native {
		for _, p := range procs {
			if strings.Contains(p.comm, app.fragment) {
				return app.label, true
			}
		}
	}
	return s.browserTab(ctx)
}

func (s *ProcessSurface) isSessionProc(comm string) bool {
	for _, frag := range s.session {
		if strings.Contains(comm, frag) {
			return true
		}
	}
	return false
}

func (s *ProcessSurface) isCaptureApp(comm string) bool {
	comm = strings.ToLower(comm)
	for _, frag := range s.capture {
		if strings.Contains(comm, frag) {
			return true
		}
	}
	return false
}

func (s *ProcessSurface) browserTab(ctx context.Context) (string, bool) {
	for _, script := range s.scripts {
		sctx, cancel := context.WithTimeout(ctx, scriptTimeout)
		out, err := s.run(sctx, "osascript", "-e", script)
		cancel()
		if err != nil {
			slog.Debug("browser probe failed", "error", err)
			continue
		}
		if name := strings.TrimSpace(out); name != "" {
			return name, true
		}
	}
	return "", false
}
