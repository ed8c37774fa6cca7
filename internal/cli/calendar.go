package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func NewCalendarCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "calendar",
		Short: "Show the current or next upcoming calendar event",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := deps.out()
			ev, ok := deps.App.Calendar.Current(cmd.Context())
			if f.structured() {
				if !ok {
					return f.render(map[string]any{})
				}
				return f.render(ev)
			}
			if !ok {
				f.println(msgNoEvent)
				return nil
			}
			f.printf("Title: %s\nStart: %s\n", ev.Title, ev.Start)
			if ev.End != "" {
				f.printf("End:   %s\n", ev.End)
			}
			if len(ev.Attendees) > 0 {
				f.printf("Attendees: %s\n", strings.Join(ev.Attendees, ", "))
			}
			return nil
		},
	}
}
