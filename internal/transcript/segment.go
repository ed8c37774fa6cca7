// Package transcript merges speaker turns into transcribed segments and
// renders the plain-text transcript.
package transcript

// UnknownSpeaker labels segments no speaker turn overlaps.
const UnknownSpeaker = "Unknown"

// Segment is a transcribed stretch of speech, in seconds from clip start.
type Segment struct {
	Start   float64 `json:"start" yaml:"start"`
	End     float64 `json:"end" yaml:"end"`
	Text    string  `json:"text" yaml:"text"`
	Speaker string  `json:"speaker,omitempty" yaml:"speaker,omitempty"`
}

// Turn is a diarized speaker interval.
type Turn struct {
	Start   float64 `json:"start" yaml:"start"`
	End     float64 `json:"end" yaml:"end"`
	Speaker string  `json:"speaker" yaml:"speaker"`
}

// AssignSpeakers labels each segment, in place, with the speaker of the turn
// it overlaps most. Ties keep the earliest turn; no positive overlap gives
// UnknownSpeaker.
func AssignSpeakers(segments []Segment, turns []Turn) {
	for i := range segments {
		seg := &segments[i]
		best, bestOverlap := "", 0.0
		for _, t := range turns {
			overlap := min(seg.End, t.End) - max(seg.Start, t.Start)
			if overlap > bestOverlap {
				best, bestOverlap = t.Speaker, overlap
			}
		}
		if best == "" {
			best = UnknownSpeaker
		}
		seg.Speaker = best
	}
}

// Speakers returns the distinct speakers in order of first appearance.
func Speakers(segments []Segment) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range segments {
		name := s.Speaker
		if name == "" {
			name = UnknownSpeaker
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
