package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/trnscrb/trnscrb/internal/app"
	"github.com/trnscrb/trnscrb/internal/config"
	"github.com/trnscrb/trnscrb/internal/version"
)

// Dependencies are shared by every command. App is built on first use when
// it is nil.
type Dependencies struct {
	Config *config.Config
	App    *app.App
	Out    io.Writer
	Err    io.Writer

	format  string
	verbose bool
}

func (d *Dependencies) out() *formatter { return &formatter{w: d.Out, format: d.format} }

// NewRootCmd builds the command tree.
func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Err == nil {
		deps.Err = os.Stderr
	}

	rootCmd := &cobra.Command{
		Use:           "trnscrb",
		Short:         "Detect conversations, record them and save speaker-labeled transcripts",
		Long:          "trnscrb watches for an active call, records it and hands the audio to a local inference engine for transcription and speaker diarization.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !validFormat(deps.format) {
				return fmt.Errorf("unknown output format %q (text, json or yaml)", deps.format)
			}
			level := deps.Config.LogLevel
			if deps.verbose {
				level = "debug"
			}
			slog.SetDefault(newLogger(deps.Err, level, deps.Config.LogFormat))

			if deps.App == nil {
				a, err := app.New(deps.Config)
				if err != nil {
					return fmt.Errorf("initializing app: %w", err)
				}
				deps.App = a
			}
			return nil
		},
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")
	rootCmd.SetOut(deps.Out)
	rootCmd.SetErr(deps.Err)

	rootCmd.PersistentFlags().StringVarP(&deps.format, "output", "o", formatText, "output format: text, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&deps.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(NewWatchCmd(deps))
	rootCmd.AddCommand(NewServeCmd(deps))
	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewShowCmd(deps))
	rootCmd.AddCommand(NewEnrichCmd(deps))
	rootCmd.AddCommand(NewCalendarCmd(deps))
	rootCmd.AddCommand(NewDevicesCmd(deps))
	rootCmd.AddCommand(NewMicStatusCmd(deps))
	rootCmd.AddCommand(NewStatusCmd(deps))
	rootCmd.AddCommand(NewSettingsCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}
