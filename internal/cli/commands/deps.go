package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wheelhouse-labs/wheelhouse/internal/catalog"
	"github.com/wheelhouse-labs/wheelhouse/internal/extract"
	"github.com/wheelhouse-labs/wheelhouse/internal/sqlnorm"
	"github.com/wheelhouse-labs/wheelhouse/internal/wheel"
)

// fileDeps is the per-file output record of the deps command.
type fileDeps struct {
	File   string   `json:"file"`
	Reads  []string `json:"reads"`
	Writes []string `json:"writes"`
}

// NewDepsCommand creates the deps command.
func NewDepsCommand() *cobra.Command {
	var (
		inputPath    string
		outputFormat string
		database     string
	)

	cmd := &cobra.Command{
		Use:   "deps <file.sql>...",
		Short: "Show which known objects SQL files read and write",
		Long: `Match each file's statements against a previously exported artifact and
report the known objects the file reads from and writes to. Identifiers
that are not part of the artifact (CTE aliases, temporary tables, function
calls) are dropped.`,
		Example: `  # Check a migration against the last snapshot
  wheelhouse deps --input wheel.json migrations/0042.sql`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(cmd, args, inputPath, outputFormat, database)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "wheel.json", "Artifact to resolve object names against")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().StringVar(&database, "database", "", "Restrict matches to one database")

	return cmd
}

func runDeps(cmd *cobra.Command, files []string, inputPath, outputFormat, database string) error {
	known, err := loadKnownPaths(inputPath)
	if err != nil {
		return err
	}

	var results []fileDeps
	failed := 0
	for _, file := range files {
		sql, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", file, err)
			failed++
			continue
		}

		deps := fileDeps{File: file, Reads: []string{}, Writes: []string{}}
		readSeen := make(map[string]struct{})
		writeSeen := make(map[string]struct{})
		for _, stmt := range sqlnorm.SplitStatements(sqlnorm.Normalize(string(sql))) {
			for _, ref := range extract.Parents(stmt, known, database) {
				id := ref.Path.String()
				if _, dup := readSeen[id]; dup {
					continue
				}
				readSeen[id] = struct{}{}
				deps.Reads = append(deps.Reads, id)
			}
			for _, ref := range extract.Children(stmt, known, database) {
				id := ref.Path.String()
				if _, dup := writeSeen[id]; dup {
					continue
				}
				writeSeen[id] = struct{}{}
				deps.Writes = append(deps.Writes, id)
			}
		}
		results = append(results, deps)
	}

	if outputFormat == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(files))
		}
		return nil
	}

	for _, deps := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", deps.File)
		fmt.Fprintf(cmd.OutOrStdout(), "  reads (%d):\n", len(deps.Reads))
		for _, id := range deps.Reads {
			fmt.Fprintf(cmd.OutOrStdout(), "    - %s\n", id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  writes (%d):\n", len(deps.Writes))
		for _, id := range deps.Writes {
			fmt.Fprintf(cmd.OutOrStdout(), "    - %s\n", id)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

// loadKnownPaths reads an exported artifact and rebuilds the known-path
// universe from its record names.
func loadKnownPaths(path string) (*catalog.PathSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	var nodes []wheel.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}

	known := catalog.NewPathSet()
	for _, n := range nodes {
		p, err := catalog.ParsePath(n.Name)
		if err != nil {
			continue
		}
		known.Add(p)
	}
	return known, nil
}
