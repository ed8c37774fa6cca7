// Package calendar looks up the meeting that is on now or about to start.
package calendar

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/trnscrb/trnscrb/internal/execx"
)

// Event is a calendar entry near the current time. Start and End are kept as
// the calendar application renders them.
type Event struct {
	Title     string   `json:"title" yaml:"title"`
	Start     string   `json:"start" yaml:"start"`
	End       string   `json:"end,omitempty" yaml:"end,omitempty"`
	Attendees []string `json:"attendees,omitempty" yaml:"attendees,omitempty"`
}

// Source returns the current or next upcoming event, if any.
type Source interface {
	Current(ctx context.Context) (Event, bool)
}

// None never finds an event.
type None struct{}

func (None) Current(context.Context) (Event, bool) { return Event{}, false }

const queryTimeout = 10 * time.Second

// eventScript asks Calendar.app for events starting between five minutes
// ago and thirty minutes from now.
const eventScript = `
tell application "Calendar"
    set now to current date
    set windowEnd to now + (30 * minutes)
    set found to {}
    repeat with cal in calendars
        try
            set evts to (events of cal whose start date >= (now - 5 * minutes) and start date <= windowEnd)
            set found to found & evts
        end try
    end repeat
    if (count of found) is 0 then return ""
    set evt to item 1 of found
    set evtTitle to summary of evt
    set evtStart to start date of evt as string
    set evtEnd to end date of evt as string
    set attendeeList to ""
    try
        repeat with a in attendees of evt
            set attendeeList to attendeeList & (name of a) & ","
        end repeat
    end try
    return evtTitle & "||" & evtStart & "||" & evtEnd & "||" & attendeeList
end tell
`

// AppleScript queries Calendar.app through osascript.
type AppleScript struct {
	run execx.Runner
}

// NewAppleScript returns a Source backed by osascript.
func NewAppleScript() *AppleScript {
	return &AppleScript{run: execx.WithTimeout(execx.Command, queryTimeout)}
}

func (a *AppleScript) Current(ctx context.Context) (Event, bool) {
	out, err := a.run(ctx, "osascript", "-e", eventScript)
	if err != nil {
		slog.Debug("calendar query failed", "error", err)
		return Event{}, false
	}
	return parseEvent(out)
}

// parseEvent decodes "title||start||end||a,b," output.
func parseEvent(out string) (Event, bool) {
	out = strings.TrimSpace(out)
	if out == "" || !strings.Contains(out, "||") {
		return Event{}, false
	}
	parts := strings.Split(out, "||")
	evt := Event{Title: parts[0], Start: parts[1]}
	if len(parts) > 2 {
		evt.End = parts[2]
	}
	if len(parts) > 3 {
		for _, a := range strings.Split(parts[3], ",") {
			if a = strings.TrimSpace(a); a != "" {
				evt.Attendees = append(evt.Attendees, a)
			}
		}
	}
	return evt, true
}
