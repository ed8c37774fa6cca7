package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/trnscrb/trnscrb/internal/config"
)

type settingsView struct {
	AutoRecord bool   `json:"auto_record" yaml:"auto_record"`
	ModelSize  string `json:"model_size" yaml:"model_size"`
	File       string `json:"file" yaml:"file"`
}

func NewSettingsCmd(deps *Dependencies) *cobra.Command {
	var (
		autoRecord bool
		modelSize  string
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change auto_record and model_size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			var auto *bool
			if cmd.Flags().Changed("auto-record") {
				auto = &autoRecord
			}
			if modelSize != "" && !slices.Contains(config.ModelSizes, modelSize) {
				return fmt.Errorf("model size must be one of %v", config.ModelSizes)
			}
			if auto != nil || modelSize != "" {
				if err := config.SaveSettings(cfg.File, auto, modelSize); err != nil {
					return fmt.Errorf("saving settings: %w", err)
				}
				if auto != nil {
					cfg.AutoRecord = *auto
				}
				if modelSize != "" {
					cfg.ModelSize = modelSize
				}
			}

			view := settingsView{AutoRecord: cfg.AutoRecord, ModelSize: cfg.ModelSize, File: cfg.File}
			f := deps.out()
			if f.structured() {
				return f.render(view)
			}
			f.printf("auto_record: %t\nmodel_size:  %s\nfile:        %s\n", view.AutoRecord, view.ModelSize, view.File)
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoRecord, "auto-record", true, "start the watcher when serving")
	cmd.Flags().StringVar(&modelSize, "model-size", "", "transcription model size")
	return cmd
}
