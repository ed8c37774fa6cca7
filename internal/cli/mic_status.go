package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type micStatusView struct {
	Active     bool   `json:"active" yaml:"active"`
	App        string `json:"app,omitempty" yaml:"app,omitempty"`
	Warmup     string `json:"warmup" yaml:"warmup"`
	Grace      string `json:"grace" yaml:"grace"`
	MinSession string `json:"min_session" yaml:"min_session"`
	Samples    []bool `json:"samples" yaml:"samples"`
}

func NewMicStatusCmd(deps *Dependencies) *cobra.Command {
	var samples int
	cmd := &cobra.Command{
		Use:   "mic-status",
		Short: "Show live microphone activity and the detected meeting app",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := deps.App
			p := deps.Config.Presence
			view := micStatusView{
				Active:     a.Signals.InputActive(),
				Warmup:     p.Warmup.String(),
				Grace:      p.Grace.String(),
				MinSession: p.MinSession.String(),
			}
			if view.Active {
				view.App = msgUnknownApp
				if label, ok := a.Surface.Label(ctx); ok {
					view.App = label
				}
			}

			f := deps.out()
			if !f.structured() {
				state := "idle  ⚪"
				if view.Active {
					state = "IN USE 🔴"
				}
				f.printf("\n  Microphone: %s\n", state)
				if view.Active {
					f.printf("  Detected app: %s\n", view.App)
				}
				f.printf("\n  Watcher thresholds: warmup=%s  grace=%s  min_save=%s\n\n", view.Warmup, view.Grace, view.MinSession)
				f.printf("  Watching for %d seconds (press Ctrl-C to stop early)…\n", samples)
			}

			view.Samples = sampleMic(ctx, samples, a.Signals.InputActive, func(i int, active bool) {
				if f.structured() {
					return
				}
				mark := "⚪"
				if active {
					mark = "🔴"
				}
				f.printf("  %2ds  %s\n", i+1, mark)
			})

			if f.structured() {
				return f.render(view)
			}
			f.println()
			return nil
		},
	}
	cmd.Flags().IntVarP(&samples, "samples", "n", micSamples, "number of one-second samples")
	return cmd
}

// sampleMic polls active n times, stopping early when ctx ends.
func sampleMic(ctx context.Context, n int, active func() bool, each func(i int, active bool)) []bool {
	samples := make([]bool, 0, n)
	ticker := time.NewTicker(micSampleInterval)
	defer ticker.Stop()
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return samples
		case <-ticker.C:
		}
		on := active()
		samples = append(samples, on)
		each(i, on)
	}
	return samples
}
