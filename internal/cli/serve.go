package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trnscrb/trnscrb/internal/server"
)

func NewServeCmd(deps *Dependencies) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the recorder with the HTTP and WebSocket API",
		Long:  "Runs the recorder behind the status API. The watcher starts when auto_record is on and can be toggled over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := deps.App
			if addr == "" {
				addr = deps.Config.HTTPAddr
			}
			srv := server.New(server.Options{
				Recorder:    a.Manager,
				Transcripts: a.Store,
				Calendar:    a.Calendar,
				Devices:     a.Devices,
				Metrics:     a.Metrics,
				BaseContext: ctx,
			})
			a.Manager.Start(ctx)

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				slog.Info("trnscrb server starting", "http", addr, "inference", deps.Config.InferenceAddr,
					"auto_record", deps.Config.AutoRecord)
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			var serveErr error
			select {
			case <-ctx.Done():
			case serveErr = <-errCh:
				slog.Error("http server error", "error", serveErr)
			}

			slog.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("http shutdown error", "error", err)
			}
			drain(a.Manager)
			slog.Info("shutdown complete")
			return serveErr
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
