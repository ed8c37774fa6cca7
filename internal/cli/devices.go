package cli

import (
	"github.com/spf13/cobra"
)

func NewDevicesCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := deps.out()
			devs, err := deps.App.Devices()
			if err != nil {
				return err
			}
			if f.structured() {
				return f.render(devs)
			}
			if len(devs) == 0 {
				f.println(msgNoDevices)
				return nil
			}
			for _, d := range devs {
				tag := ""
				if d.Loopback {
					tag += "  (loopback)"
				}
				if d.Default {
					tag += "  (default)"
				}
				f.printf("  [%d] %s  %dch%s\n", d.Index, d.Name, d.Channels, tag)
			}
			return nil
		},
	}
}
