package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/trnscrb/trnscrb/internal/orchestrator"
)

func NewStatusCmd(deps *Dependencies) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Ask a running `trnscrb serve` what it is doing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = deps.Config.HTTPAddr
			}
			snap, err := fetchStatus(cmd.Context(), baseURL(addr))
			if err != nil {
				return fmt.Errorf("trnscrb is not serving at %s: %w", addr, err)
			}

			f := deps.out()
			if f.structured() {
				return f.render(snap)
			}
			f.println(snap.Message)
			w := snap.Watcher
			if w.Watching {
				f.printf("Watcher: %s\n", w.State)
			} else {
				f.println("Watcher: off")
			}
			if len(snap.Pending) > 0 {
				f.printf("Queued:  %d\n", len(snap.Pending))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "server address (default from config)")
	return cmd
}

// baseURL turns a listen address such as ":8765" into a client URL.
func baseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func fetchStatus(ctx context.Context, base string) (orchestrator.Snapshot, error) {
	var snap orchestrator.Snapshot
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/status", http.NoBody)
	if err != nil {
		return snap, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("unexpected status %s", resp.Status)
	}
	err = json.NewDecoder(resp.Body).Decode(&snap)
	return snap, err
}
