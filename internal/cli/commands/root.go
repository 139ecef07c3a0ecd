// Package commands implements the typegraph command line.
package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/typegraph/internal/cli/config"
	"github.com/conduit-lang/typegraph/internal/cli/ui"
	"github.com/conduit-lang/typegraph/runtime/metadata"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globals holds the persistent flags shared by every subcommand
type globals struct {
	configPath string
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "typegraph",
		Short: "Type metadata driven GraphQL and REST runtime",
		Long: color.CyanString(`typegraph - GraphQL from type metadata

typegraph reads the type metadata of a compiled application and serves it:
  • GraphQL queries, mutations and subscriptions
  • REST actions with an OpenAPI document
  • Generated CRUD roots over a SQL database`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (default ./typegraph.yaml)")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newValidateCommand(g))
	rootCmd.AddCommand(newDescribeCommand(g))
	rootCmd.AddCommand(newOpenAPICommand(g))
	rootCmd.AddCommand(newServeCommand(g))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the typegraph version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)

			titleColor.Fprint(out, "typegraph version: ")
			fmt.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// loadMetadata reads and validates an application metadata file. Problems
// are printed to the command's error stream.
func (g *globals) loadMetadata(cmd *cobra.Command, path string) (*metadata.Application, error) {
	app, err := metadata.Load(path)
	if err != nil {
		return nil, err
	}
	if err := app.Validate(); err != nil {
		ui.Write(cmd.ErrOrStderr(), ui.InvalidMetadata(path, err, g.noColor))
		return nil, fmt.Errorf("%s is not valid", path)
	}
	return app, nil
}

// loadConfig reads the configuration, printing problems to the command's
// error stream
func (g *globals) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		ui.Write(cmd.ErrOrStderr(), ui.ConfigError(err, g.noColor))
		return nil, fmt.Errorf("invalid configuration")
	}
	return cfg, nil
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
