package commands

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wheelhouse-labs/wheelhouse/internal/cli/config"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List warehouse objects",
		Long:  `List every table, view, and stored procedure visible in the warehouse.`,
		Example: `  # List objects as a table
  wheelhouse list

  # List objects as JSON
  wheelhouse list --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text|json)")

	return cmd
}

func runList(cmd *cobra.Command, outputFormat string) error {
	cfg := config.GetCurrentConfig()
	logger := config.GetLogger(cmd.Context())

	reg, err := takeSnapshot(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		type record struct {
			Name    string `json:"name"`
			Type    string `json:"type"`
			Columns int    `json:"columns"`
		}
		records := make([]record, 0, reg.Len())
		for _, o := range reg.Objects() {
			records = append(records, record{
				Name:    o.Path.String(),
				Type:    string(o.Kind),
				Columns: len(o.Columns),
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"OBJECT", "TYPE", "COLUMNS"})
	for _, o := range reg.Objects() {
		t.AppendRow(table.Row{o.Path.String(), string(o.Kind), len(o.Columns)})
	}
	t.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "%d objects\n", reg.Len())
	return nil
}
