// Package enrich runs an LLM pass over a saved transcript: summary, action
// items and inferred speaker names, which are written back into the file.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/trnscrb/trnscrb/internal/calendar"
	apperrors "github.com/trnscrb/trnscrb/internal/errors"
	"github.com/trnscrb/trnscrb/internal/trace"
	"github.com/trnscrb/trnscrb/internal/transcript"
)

const (
	maxTokens      = 1024
	mappingHeader  = "SPEAKER MAPPING:"
	mappingArrow   = "→"
	promptTemplate = `You are analyzing a meeting transcript.%s

Transcript:
%s

Provide:
1. A brief summary (2-3 sentences)
2. Action items with owner names if identifiable
3. Inferred speaker names — if speakers appear as SPEAKER_00, SPEAKER_01 etc., infer their names or roles from the conversation

Respond in exactly this format:

SUMMARY:
<summary here>

ACTION ITEMS:
- <item> (Owner: <name or Unknown>)

SPEAKER MAPPING:
- SPEAKER_00 → <inferred name or "Participant 1">
- SPEAKER_01 → <inferred name or "Participant 2">
`
)

// LLM completes a single prompt.
type LLM interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Store reads and rewrites saved transcripts.
type Store interface {
	Read(id string) (string, error)
	Write(id, text string) error
	MarkEnriched(ctx context.Context, id string) error
}

// Mapping renames one diarization label.
type Mapping struct {
	Raw  string `json:"raw" yaml:"raw"`
	Name string `json:"name" yaml:"name"`
}

// Result of an enrichment pass.
type Result struct {
	ID         string    `json:"id" yaml:"id"`
	Enrichment string    `json:"enrichment" yaml:"enrichment"`
	Speakers   []Mapping `json:"speakers,omitempty" yaml:"speakers,omitempty"`
	Transcript string    `json:"-" yaml:"-"`
}

// Enricher enriches transcripts in a store.
type Enricher struct {
	llm   LLM
	store Store
	cal   calendar.Source
}

// New returns an Enricher. A nil cal means no calendar context.
func New(llm LLM, store Store, cal calendar.Source) *Enricher {
	if cal == nil {
		cal = calendar.None{}
	}
	return &Enricher{llm: llm, store: store, cal: cal}
}

// Enrich runs the LLM over transcript id and rewrites the file as the
// renamed transcript followed by a rule and the enrichment text.
func (e *Enricher) Enrich(ctx context.Context, id string) (res Result, err error) {
	ctx = trace.WithField(ctx, "transcript", id)
	ctx, span := trace.StartSpan(ctx, "enrich")
	defer func() {
		span.RecordError(err)
		span.End()
	}()

	text, err := e.store.Read(id)
	if err != nil {
		return Result{}, err
	}

	ev, ok := e.cal.Current(ctx)
	var evp *calendar.Event
	if ok {
		evp = &ev
	}

	out, err := e.llm.Complete(ctx, Prompt(text, evp), maxTokens)
	if err != nil {
		if apperrors.IsCode(err, apperrors.Unavailable) {
			return Result{}, err
		}
		return Result{}, apperrors.Wrap(err, apperrors.EnrichmentFailed, "llm completion")
	}

	mapping := ParseSpeakerMap(out)
	res = Result{
		ID:         id,
		Enrichment: out,
		Speakers:   mapping,
		Transcript: ApplySpeakerMap(text, mapping),
	}
	if err := e.store.Write(id, Compose(res.Transcript, out)); err != nil {
		return Result{}, err
	}
	if err := e.store.MarkEnriched(ctx, id); err != nil {
		trace.Logger(ctx).Warn("enriched transcript not flagged in index", "error", err)
	}
	span.SetAttr("speakers", len(mapping))
	trace.Logger(ctx).Info("transcript enriched", "speakers", len(mapping))
	return res, nil
}

// Prompt builds the LLM prompt, with meeting title and attendees when a
// calendar event is known.
func Prompt(text string, ev *calendar.Event) string {
	var meeting string
	if ev != nil {
		meeting = "\nMeeting: " + ev.Title
		if len(ev.Attendees) > 0 {
			meeting += "\nKnown attendees: " + strings.Join(ev.Attendees, ", ")
		}
	}
	return fmt.Sprintf(promptTemplate, meeting, text)
}

// ParseSpeakerMap reads "- SPEAKER_00 → Name" lines following the
// SPEAKER MAPPING: header. The section ends at the first non-blank line
// that does not start with a dash. A repeated label keeps its first
// position and takes the last name.
func ParseSpeakerMap(enrichment string) []Mapping {
	var out []Mapping
	pos := map[string]int{}
	inSection := false
	for _, line := range strings.Split(enrichment, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(strings.TrimSpace(line), mappingHeader) {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		raw, name, found := strings.Cut(line, mappingArrow)
		if !found {
			if strings.TrimSpace(line) != "" && !strings.HasPrefix(line, "-") {
				break
			}
			continue
		}
		raw = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "- "))
		name = strings.Trim(strings.TrimSpace(name), `"`)
		if raw == "" {
			continue
		}
		if i, ok := pos[raw]; ok {
			out[i].Name = name
			continue
		}
		pos[raw] = len(out)
		out = append(out, Mapping{Raw: raw, Name: name})
	}
	return out
}

// ApplySpeakerMap replaces "[raw]" speaker headers with "[name]", in order.
func ApplySpeakerMap(text string, mapping []Mapping) string {
	for _, m := range mapping {
		text = strings.ReplaceAll(text, "["+m.Raw+"]", "["+m.Name+"]")
	}
	return text
}

// Compose is the rewritten file body.
func Compose(enriched, enrichment string) string {
	return enriched + "\n\n" + transcript.Rule + "\n\n" + enrichment
}
