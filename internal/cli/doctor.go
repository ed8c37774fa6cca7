package cli

import (
	"context"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/trnscrb/trnscrb/internal/audio"
	"github.com/trnscrb/trnscrb/internal/execx"
)

type checkResult struct {
	Name   string `json:"name" yaml:"name"`
	OK     bool   `json:"ok" yaml:"ok"`
	Detail string `json:"detail" yaml:"detail"`
}

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := runChecks(cmd.Context(), deps)

			f := deps.out()
			if f.structured() {
				return f.render(checks)
			}
			ok := true
			for _, c := range checks {
				f.check(c.Name, c.OK, c.Detail)
				ok = ok && c.OK
			}
			if ok {
				f.println("\nAll prerequisites met. Ready to record.")
			} else {
				f.println("\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}

func runChecks(ctx context.Context, deps *Dependencies) []checkResult {
	cfg := deps.Config
	a := deps.App
	var checks []checkResult
	add := func(name string, ok bool, detail string) {
		checks = append(checks, checkResult{Name: name, OK: ok, Detail: detail})
	}

	if err := a.Engine.Check(ctx); err != nil {
		add("Inference engine", false, err.Error())
	} else {
		add("Inference engine", true, "serving at "+cfg.InferenceAddr)
	}

	devs, err := a.Devices()
	switch {
	case err != nil:
		add("Audio input", false, err.Error())
	case len(devs) == 0:
		add("Audio input", false, msgNoDevices)
	default:
		add("Audio input", true, devs[0].Name)
	}
	if dev, ok := audio.FindLoopback(devs); ok {
		add("System audio loopback", true, dev.Name)
	} else {
		add("System audio loopback", false, "only your microphone will be recorded (install BlackHole 2ch on macOS)")
	}

	if cfg.HFToken != "" {
		add("Diarization token", true, "configured")
	} else {
		add("Diarization token", false, "not set; speakers stay unlabeled. Set HF_TOKEN or run huggingface-cli login")
	}

	if err := writable(cfg.NotesDir); err != nil {
		add("Notes folder", false, err.Error())
	} else {
		add("Notes folder", true, cfg.NotesDir)
	}
	if a.Store.Index() != nil {
		add("Transcript index", true, cfg.IndexPath)
	} else {
		add("Transcript index", false, "unavailable; listing falls back to file metadata")
	}

	switch runtime.GOOS {
	case "darwin":
		add("Calendar", execx.Available("osascript"), "Calendar.app names meetings")
	case "linux":
		add("Microphone activity", execx.Available("pactl"), "pactl reports capture streams")
	}
	return checks
}

// writable creates dir if needed and verifies a file can be written there.
func writable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
