package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/trnscrb/trnscrb/internal/errors"
)

func NewEnrichCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "enrich <id>",
		Short: "Summarize a transcript and resolve speaker names with the engine's LLM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			f := deps.out()
			if !f.structured() {
				f.println("Running enrichment…")
			}
			res, err := deps.App.Manager.Enrich(cmd.Context(), id)
			if apperrors.IsCode(err, apperrors.NotFound) {
				return fmt.Errorf(msgNotFound, id)
			}
			if err != nil {
				return err
			}
			if f.structured() {
				return f.render(res)
			}
			f.println(res.Enrichment)
			for _, m := range res.Speakers {
				f.printf("  %s → %s\n", m.Raw, m.Name)
			}
			f.printf("\nTranscript updated: %s\n", res.ID)
			return nil
		},
	}
}
