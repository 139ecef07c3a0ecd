package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/typegraph/internal/app"
)

func newServeCommand(g *globals) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve <metadata-file>",
		Short: "Serve an application over HTTP",
		Long: `Serve loads an application metadata file and serves it over HTTP:
GraphQL on server.graphql_path, subscriptions on /subscriptions, actions on
their routes, plus /openapi.json, /metrics and /healthz.

With database.url set, tables are migrated for every model and the CRUD
extension adds one, many, count, save, remove and observe roots.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := g.loadMetadata(cmd, args[0])
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger, err := cfg.Log.Logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := app.New(ctx, cfg, md, nil, logger)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Override server.host")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override server.port")
	return cmd
}
