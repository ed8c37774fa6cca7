package transcript

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02 15:04"
	ruleWidth  = 60
)

// Rule is the separator between the header and the body.
var Rule = strings.Repeat("=", ruleWidth)

// Document is a finished transcript ready to persist.
type Document struct {
	Name      string
	StartedAt time.Time
	Duration  float64 // seconds, end of the last segment
	Segments  []Segment
	Speakers  []string
	Text      string
}

// NewDocument formats segments and collects their metadata.
func NewDocument(segments []Segment, startedAt time.Time, name string) Document {
	var dur float64
	if len(segments) > 0 {
		dur = segments[len(segments)-1].End
	}
	return Document{
		Name:      name,
		StartedAt: startedAt,
		Duration:  dur,
		Segments:  segments,
		Speakers:  Speakers(segments),
		Text:      Format(segments, startedAt, name),
	}
}

// Format renders the transcript text.
func Format(segments []Segment, startedAt time.Time, name string) string {
	duration := "00:00"
	if len(segments) > 0 {
		duration = FormatClock(segments[len(segments)-1].End)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Meeting: %s\n", name)
	fmt.Fprintf(&b, "Date:    %s\n", startedAt.Format(dateLayout))
	fmt.Fprintf(&b, "Duration:%s\n", duration)
	b.WriteString("\n")
	b.WriteString(Rule)
	b.WriteString("\n")

	current, first := "", true
	for _, seg := range segments {
		speaker := seg.Speaker
		if speaker == "" {
			speaker = UnknownSpeaker
		}
		if first || speaker != current {
			b.WriteString("\n")
			if !first {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "[%s]", speaker)
			current, first = speaker, false
		}
		fmt.Fprintf(&b, "\n  %s  %s", FormatClock(seg.Start), seg.Text)
	}
	return b.String()
}

// FormatClock renders whole seconds as MM:SS; minutes may exceed 59.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
