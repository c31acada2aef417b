package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wheelhouse-labs/wheelhouse/internal/cli/config"
	"github.com/wheelhouse-labs/wheelhouse/internal/wheel"
)

// NewExtractCommand creates the extract command.
func NewExtractCommand() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:     "extract",
		Aliases: []string{"snapshot"},
		Short:   "Snapshot the warehouse and export its lineage graph",
		Long: `Connect to the configured warehouse, list every table, view, and stored
procedure, fetch each object's DDL and columns, and export the resulting
dependency graph as a JSON artifact.

The artifact is a flat array of object records. Each record carries the
objects it reads from (incoming) and the objects that read from it
(outgoing), so a visualization can render the full wheel without touching
the warehouse again.`,
		Example: `  # Snapshot into the default wheel.json
  wheelhouse extract

  # Snapshot a DuckDB file to stdout
  wheelhouse extract --type duckdb --path warehouse.duckdb -o -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExtract(cmd, outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", `Artifact path ("-" for stdout; default from config)`)

	return cmd
}

func runExtract(cmd *cobra.Command, outputPath string) error {
	cfg := config.GetCurrentConfig()
	logger := config.GetLogger(cmd.Context())

	reg, err := takeSnapshot(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	w := wheel.Build(reg, wheel.Options{Database: cfg.Source.Database})

	data, err := json.MarshalIndent(w.Nodes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	data = append(data, '\n')

	path := outputPath
	if path == "" {
		path = cfg.Output
	}
	if path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d objects to %s\n", len(w.Nodes), path)
	return nil
}
