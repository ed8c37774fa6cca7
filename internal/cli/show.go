package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/trnscrb/trnscrb/internal/errors"
)

func NewShowCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			text, err := deps.App.Store.Read(id)
			if apperrors.IsCode(err, apperrors.NotFound) {
				return fmt.Errorf(msgNotFound, id)
			}
			if err != nil {
				return err
			}
			f := deps.out()
			if f.structured() {
				return f.render(map[string]string{"id": id, "text": text})
			}
			f.println(text)
			return nil
		},
	}
}
