package enrich

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/trnscrb/trnscrb/internal/calendar"
	apperrors "github.com/trnscrb/trnscrb/internal/errors"
	"github.com/trnscrb/trnscrb/internal/transcript"
)

const sampleEnrichment = `SUMMARY:
The team agreed to ship on Friday.

ACTION ITEMS:
- Write release notes (Owner: Ana)

SPEAKER MAPPING:
- SPEAKER_00 → Ana
- SPEAKER_01 → "Bo"

Anything else is ignored.`

func TestParseSpeakerMap(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Mapping
	}{
		{"typical", sampleEnrichment, []Mapping{{"SPEAKER_00", "Ana"}, {"SPEAKER_01", "Bo"}}},
		{"no section", "SUMMARY:\n- SPEAKER_00 → Ana", nil},
		{"blank lines inside", "SPEAKER MAPPING:\n\n- SPEAKER_00 → Ana\n\n- SPEAKER_01 → Bo\n", []Mapping{{"SPEAKER_00", "Ana"}, {"SPEAKER_01", "Bo"}}},
		{"dash lines without arrow", "SPEAKER MAPPING:\n- none found\n- SPEAKER_02 → Cy", []Mapping{{"SPEAKER_02", "Cy"}}},
		{"repeated label", "SPEAKER MAPPING:\n- SPEAKER_00 → Ana\n- SPEAKER_01 → Bo\n- SPEAKER_00 → Anna", []Mapping{{"SPEAKER_00", "Anna"}, {"SPEAKER_01", "Bo"}}},
		{"crlf", "SPEAKER MAPPING:\r\n- SPEAKER_00 → Ana\r\n", []Mapping{{"SPEAKER_00", "Ana"}}},
		{"empty label", "SPEAKER MAPPING:\n- → Ana", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSpeakerMap(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseSpeakerMap() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("mapping[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestApplySpeakerMap(t *testing.T) {
	text := "[SPEAKER_00]\n  00:01  hi\n\n[SPEAKER_01]\n  00:03  SPEAKER_00 said hi\n"
	got := ApplySpeakerMap(text, []Mapping{{"SPEAKER_00", "Ana"}, {"SPEAKER_01", "Bo"}})
	want := "[Ana]\n  00:01  hi\n\n[Bo]\n  00:03  SPEAKER_00 said hi\n"
	if got != want {
		t.Errorf("ApplySpeakerMap() = %q, want %q", got, want)
	}
}

func TestCompose(t *testing.T) {
	got := Compose("body", "SUMMARY:\nx")
	want := "body\n\n" + strings.Repeat("=", 60) + "\n\nSUMMARY:\nx"
	if got != want {
		t.Errorf("Compose() = %q, want %q", got, want)
	}
}

func TestPrompt(t *testing.T) {
	plain := Prompt("hello", nil)
	if !strings.HasPrefix(plain, "You are analyzing a meeting transcript.\n\nTranscript:\nhello\n") {
		t.Errorf("prompt without event = %q", plain[:80])
	}
	withEvent := Prompt("hello", &calendar.Event{Title: "Retro", Attendees: []string{"Ana", "Bo"}})
	if !strings.Contains(withEvent, "transcript.\nMeeting: Retro\nKnown attendees: Ana, Bo\n\nTranscript:") {
		t.Errorf("prompt with event lacks context: %q", withEvent[:120])
	}
}

type fakeLLM struct {
	out    string
	err    error
	prompt string
}

func (f *fakeLLM) Complete(_ context.Context, prompt string, _ int) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

type fakeStore struct {
	files    map[string]string
	enriched []string
	writeErr error
}

func (s *fakeStore) Read(id string) (string, error) {
	text, ok := s.files[id]
	if !ok {
		return "", apperrors.Newf(apperrors.NotFound, "transcript %q not found", id)
	}
	return text, nil
}

func (s *fakeStore) Write(id, text string) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.files[id] = text
	return nil
}

func (s *fakeStore) MarkEnriched(_ context.Context, id string) error {
	s.enriched = append(s.enriched, id)
	return nil
}

type fixedCalendar struct{ ev calendar.Event }

func (c fixedCalendar) Current(context.Context) (calendar.Event, bool) { return c.ev, true }

func TestEnrich(t *testing.T) {
	doc := transcript.Format([]transcript.Segment{
		{Start: 1, End: 2, Text: "hi", Speaker: "SPEAKER_00"},
		{Start: 3, End: 4, Text: "hello", Speaker: "SPEAKER_01"},
	}, testTime, "Retro")
	store := &fakeStore{files: map[string]string{"2025-06-01_14-00_Retro": doc}}
	llm := &fakeLLM{out: sampleEnrichment}
	e := New(llm, store, fixedCalendar{calendar.Event{Title: "Retro", Attendees: []string{"Ana"}}})

	res, err := e.Enrich(context.Background(), "2025-06-01_14-00_Retro")
	if err != nil {
		t.Fatalf("Enrich() error: %v", err)
	}
	if len(res.Speakers) != 2 {
		t.Errorf("speakers = %v", res.Speakers)
	}
	if !strings.Contains(llm.prompt, "Known attendees: Ana") || !strings.Contains(llm.prompt, "[SPEAKER_00]") {
		t.Error("prompt should carry the calendar context and the raw transcript")
	}

	saved := store.files["2025-06-01_14-00_Retro"]
	if !strings.Contains(saved, "[Ana]\n  00:01  hi") || strings.Contains(saved, "[SPEAKER_01]") {
		t.Errorf("speaker labels not replaced:\n%s", saved)
	}
	if !strings.HasSuffix(saved, "\n\n"+transcript.Rule+"\n\n"+sampleEnrichment) {
		t.Error("enrichment should follow a rule at the end of the file")
	}
	if len(store.enriched) != 1 {
		t.Error("index row should be flagged")
	}
}

func TestEnrichFailures(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		llmErr   error
		writeErr error
		want     apperrors.Code
	}{
		{"missing transcript", "nope", nil, nil, apperrors.NotFound},
		{"llm error", "a", errors.New("quota"), nil, apperrors.EnrichmentFailed},
		{"engine down", "a", apperrors.New(apperrors.Unavailable, "circuit open"), nil, apperrors.Unavailable},
		{"write fails", "a", nil, apperrors.New(apperrors.PersistenceFailed, "disk"), apperrors.PersistenceFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{files: map[string]string{"a": "text"}, writeErr: tt.writeErr}
			e := New(&fakeLLM{out: sampleEnrichment, err: tt.llmErr}, store, nil)
			_, err := e.Enrich(context.Background(), tt.id)
			if !apperrors.IsCode(err, tt.want) {
				t.Errorf("Enrich() error = %v, want %v", err, tt.want)
			}
			if store.files["a"] != "text" {
				t.Error("file should be untouched on failure")
			}
			if len(store.enriched) != 0 {
				t.Error("nothing should be flagged on failure")
			}
		})
	}
}

var testTime = mustTime("2025-06-01T14:00:00Z")

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
