package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var (
		name     string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record until Ctrl-C (or --duration) and transcribe",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			f := deps.out()
			mgr := deps.App.Manager
			msg, err := mgr.StartRecording(ctx)
			if err != nil {
				return err
			}
			f.println(msg)

			var timeout <-chan time.Time
			if duration > 0 {
				timer := time.NewTimer(duration)
				defer timer.Stop()
				timeout = timer.C
			}
			select {
			case <-ctx.Done():
			case <-timeout:
			}
			stop()

			// The signal context is done; stop on a fresh one.
			msg, err = mgr.StopRecording(cmd.Context(), name)
			if err != nil {
				return err
			}
			f.println(msg)
			drain(mgr)
			f.println(mgr.LastTranscript())
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "transcript name (default: calendar event or meeting-HHMM)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "stop after this long")
	return cmd
}
