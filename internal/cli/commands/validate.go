package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/typegraph/internal/cli/ui"
)

func newValidateCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <metadata-file>",
		Short: "Check an application metadata file",
		Long: `Validate decodes a .json, .yaml or .yml metadata file and checks it:
duplicate declarations, unresolved references, invalid enum members and
actions without a return slot are all reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.loadMetadata(cmd, args[0])
			if err != nil {
				return err
			}
			hash, err := app.Hash()
			if err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%s is valid (%s, sha256 %s)", args[0], app.Name, hash[:12]), g.noColor)
			return nil
		},
	}
}
