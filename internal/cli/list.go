package cli

import (
	"github.com/spf13/cobra"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved transcripts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := deps.out()
			entries, err := deps.App.Store.List(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			if f.structured() {
				return f.render(entries)
			}
			if len(entries) == 0 {
				f.printf(msgNoTranscripts+"\n", deps.App.Store.Dir())
				return nil
			}
			for _, e := range entries {
				kb := e.Size / 1024
				if kb == 0 {
					kb = 1
				}
				f.printf("  %s  (%s)  %d KB\n", e.ID, e.Modified.Format(modifiedLayout), kb)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", listLimit, "maximum transcripts to list (0 for all)")
	return cmd
}
