package calendar

import (
	"context"
	"errors"
	"testing"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name   string
		out    string
		want   Event
		wantOK bool
	}{
		{"empty", "", Event{}, false},
		{"no separator", "Standup", Event{}, false},
		{
			"full",
			"Weekly sync||Monday, 5 May 2025 at 10:00:00||Monday, 5 May 2025 at 10:30:00||Ana,Bo,",
			Event{
				Title:     "Weekly sync",
				Start:     "Monday, 5 May 2025 at 10:00:00",
				End:       "Monday, 5 May 2025 at 10:30:00",
				Attendees: []string{"Ana", "Bo"},
			},
			true,
		},
		{"no attendees", "1:1||10:00||10:30||", Event{Title: "1:1", Start: "10:00", End: "10:30"}, true},
		{"two fields", "Demo||10:00", Event{Title: "Demo", Start: "10:00"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseEvent(tt.out)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got.Title != tt.want.Title || got.Start != tt.want.Start || got.End != tt.want.End {
				t.Errorf("parseEvent() = %+v, want %+v", got, tt.want)
			}
			if len(got.Attendees) != len(tt.want.Attendees) {
				t.Fatalf("attendees = %v, want %v", got.Attendees, tt.want.Attendees)
			}
			for i := range got.Attendees {
				if got.Attendees[i] != tt.want.Attendees[i] {
					t.Errorf("attendee[%d] = %q, want %q", i, got.Attendees[i], tt.want.Attendees[i])
				}
			}
		})
	}
}

func TestAppleScriptCurrent(t *testing.T) {
	var gotName string
	a := &AppleScript{run: func(ctx context.Context, name string, args ...string) (string, error) {
		gotName = name
		return "Retro||9:00||10:00||", nil
	}}
	evt, ok := a.Current(context.Background())
	if !ok || evt.Title != "Retro" {
		t.Errorf("Current() = %+v, %v", evt, ok)
	}
	if gotName != "osascript" {
		t.Errorf("ran %q, want osascript", gotName)
	}

	a.run = func(ctx context.Context, name string, args ...string) (string, error) {
		return "", errors.New("not authorized")
	}
	if _, ok := a.Current(context.Background()); ok {
		t.Error("Current() should report no event when osascript fails")
	}
}
