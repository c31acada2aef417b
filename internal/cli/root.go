// Package cli provides the command-line interface for Wheelhouse.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wheelhouse-labs/wheelhouse/internal/cli/commands"
	"github.com/wheelhouse-labs/wheelhouse/internal/cli/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wheelhouse",
		Short: "Wheelhouse - Warehouse Lineage Explorer",
		Long: `Wheelhouse maps how data flows through a warehouse.

It snapshots the catalog, parses every object's DDL for the tables, views,
and procedures it reads from, and exports the resulting dependency graph
for querying and visualization.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			cmd.SetContext(context.WithValue(cmd.Context(), config.LoggerKey(), logger))

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					fmt.Fprintf(os.Stderr, "Using config file: %s\n", configFile)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./wheelhouse.yaml)")
	rootCmd.PersistentFlags().String("type", "", "Source type (redshift|duckdb)")
	rootCmd.PersistentFlags().String("host", "", "Warehouse host")
	rootCmd.PersistentFlags().Int("port", 0, "Warehouse port")
	rootCmd.PersistentFlags().String("user", "", "Warehouse user")
	rootCmd.PersistentFlags().String("password", "", "Warehouse password")
	rootCmd.PersistentFlags().String("database", "", "Database to connect to")
	rootCmd.PersistentFlags().String("sslmode", "", "SSL mode for the connection")
	rootCmd.PersistentFlags().String("path", "", "Database file for embedded engines")
	rootCmd.PersistentFlags().String("sample-file", "", "SQL template collecting one sample row per object")
	rootCmd.PersistentFlags().IntP("concurrency", "j", 0, "Parallel metadata fetches")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"redshift", "duckdb"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewExtractCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewParseCommand())
	rootCmd.AddCommand(commands.NewDepsCommand())
	rootCmd.AddCommand(commands.NewServeCommand())

	return rootCmd
}
