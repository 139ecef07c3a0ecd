package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/typegraph/internal/cli/ui"
	"github.com/conduit-lang/typegraph/internal/openapi"
	"github.com/conduit-lang/typegraph/runtime/metadata"
)

func newOpenAPICommand(g *globals) *cobra.Command {
	var (
		output  string
		format  string
		version string
		servers []string
	)

	cmd := &cobra.Command{
		Use:   "openapi <metadata-file>",
		Short: "Generate the OpenAPI document of the application actions",
		Example: `  typegraph openapi app.yaml
  typegraph openapi app.yaml -o openapi.yaml
  typegraph openapi app.yaml --server https://api.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.loadMetadata(cmd, args[0])
			if err != nil {
				return err
			}
			if len(app.Actions) == 0 {
				ui.Write(cmd.ErrOrStderr(), ui.Warning(args[0]+" declares no actions", g.noColor))
			}

			f := metadata.Format(format)
			if f == "" {
				f = metadata.FormatJSON
				if output != "" {
					if f, err = metadata.FormatFromPath(output); err != nil {
						return err
					}
				}
			}

			opts := []openapi.Option{openapi.WithVersion(version)}
			for _, s := range servers {
				opts = append(opts, openapi.WithServer(s))
			}
			doc, err := openapi.Generate(app, opts...)
			if err != nil {
				return err
			}
			data, err := openapi.Encode(doc, f)
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("wrote %s (%d operations)", output, len(app.Actions)), g.noColor)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default from the output extension, else json)")
	cmd.Flags().StringVar(&version, "api-version", "1.0.0", "Version reported in the document info")
	cmd.Flags().StringSliceVar(&servers, "server", nil, "Server URL (repeatable)")
	return cmd
}
