package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trnscrb/trnscrb/internal/orchestrator"
	"github.com/trnscrb/trnscrb/internal/orchestrator/events"
)

func NewWatchCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch for conversations and record them (headless)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			f := deps.out()
			mgr := deps.App.Manager
			stopPrinting := startPrinter(f, mgr.Events())
			defer stopPrinting()

			mgr.StartWatching(ctx)
			p := deps.Config.Presence
			if !f.structured() {
				f.printf("Watching for mic activity (warmup=%s, grace=%s).\n", p.Warmup, p.Grace)
				f.println("Press Ctrl-C to stop.")
				f.println()
			}

			<-ctx.Done()
			if !f.structured() {
				f.println("\nStopping watcher…")
			}
			drain(mgr)
			return nil
		},
	}
}

// drain stops the manager and waits for queued transcriptions.
func drain(mgr *orchestrator.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	mgr.Stop(ctx)
}

// startPrinter prints lifecycle events in the background. The returned
// function flushes buffered events and stops it.
func startPrinter(f *formatter, log *events.Log) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(ctx, f, log)
	}()
	return func() {
		cancel()
		<-done
	}
}

func printEvents(ctx context.Context, f *formatter, log *events.Log) {
	for {
		select {
		case e := <-log.Events():
			printEvent(f, e)
		case <-ctx.Done():
			for {
				select {
				case e := <-log.Events():
					printEvent(f, e)
				default:
					return
				}
			}
		}
	}
}

func printEvent(f *formatter, e events.Event) {
	if f.structured() {
		_ = f.render(e)
		return
	}
	if line := eventLine(e); line != "" {
		f.println(line)
	}
}

// eventLine renders the events a user watching the terminal cares about.
func eventLine(e events.Event) string {
	switch e.Kind {
	case events.ConversationStarted:
		return "  🔴 Meeting detected: " + e.Label + " — recording started"
	case events.ConversationEnded:
		return "  ⏹  Meeting ended — transcribing…"
	case events.ConversationDiscarded:
		return "  ·  Too short, discarded (" + e.Message + ")"
	case events.CaptureFailed:
		return "  ✗ Could not start recording: " + e.Error
	case events.NoAudio:
		return "  ⚠️  No audio captured."
	case events.ClipQueued:
		return "  ⏳ Queued " + e.Label + " behind the running transcription"
	case events.ClipDropped:
		return "  ⚠️  Queue full, dropped " + e.Label
	case events.PipelineFailed:
		return "  ✗ Transcription failed: " + e.Error
	case events.PipelineDone:
		return "  ✓ Saved: " + filepath.Base(e.Path)
	default:
		return ""
	}
}
