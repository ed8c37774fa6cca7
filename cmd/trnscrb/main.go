// Command trnscrb detects conversations, records them and saves
// speaker-labeled transcripts.
package main

import (
	"fmt"
	"os"

	"github.com/trnscrb/trnscrb/internal/cli"
	"github.com/trnscrb/trnscrb/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	deps := &cli.Dependencies{Config: cfg}
	defer func() {
		if deps.App != nil {
			_ = deps.App.Close()
		}
	}()
	return cli.NewRootCmd(deps).Execute()
}
