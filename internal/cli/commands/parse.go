package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wheelhouse-labs/wheelhouse/internal/sqlnorm"
	"github.com/wheelhouse-labs/wheelhouse/pkg/lineage"
)

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "parse <file.sql>...",
		Short: "Extract column-level lineage from SQL files",
		Long: `Parse each SELECT statement and report, per source object, which columns
the query reads, the alias they are exposed under, and the expression they
pass through.

With --schema pointing at a JSON file of the form
{"schema.table": ["col", ...]}, SELECT * expands to the actual columns;
without it an unresolved wildcard marker is recorded instead.`,
		Example: `  # Lineage of one query
  wheelhouse parse reports/revenue.sql

  # Expand stars using table metadata
  wheelhouse parse --schema schema.json reports/*.sql`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args, schemaPath)
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "JSON file mapping schema.table to its column names")

	return cmd
}

func runParse(cmd *cobra.Command, files []string, schemaPath string) error {
	var schema lineage.Schema
	if schemaPath != "" {
		data, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("failed to read schema file: %w", err)
		}
		if err := json.Unmarshal(data, &schema); err != nil {
			return fmt.Errorf("failed to decode schema file %s: %w", schemaPath, err)
		}
	}

	results := make(map[string]lineage.QueryLineage)
	failed := 0
	for _, file := range files {
		sql, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", file, err)
			failed++
			continue
		}
		q, err := lineage.Extract(sqlnorm.ScrubDialect(string(sql)), schema)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", file, err)
			failed++
			continue
		}
		results[file] = q
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return err
	}
	// the batch continues past bad files, but the exit code reports them
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}
