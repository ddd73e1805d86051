package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	"github.com/spf13/cobra"
)

func (a *app) normalizeCmd() *cobra.Command {
	var (
		format   string
		jsonPath string
		dataset  string
		start    int
		end      int
		co2      bool
	)
	cmd := &cobra.Command{
		Use:   "normalize <file>",
		Short: "Align a local CSV or JSON dataset onto a yearly grid",
		Long: `Parse a delimited or JSON dataset, classify sector labels, sum values per
year, and print every series aligned onto one year grid as JSON.
Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if format == "" {
				format = formatFromName(args[0])
			}
			if dataset == "" {
				dataset = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			var table domain.Table
			if format == "json" {
				var path []string
				if jsonPath != "" {
					path = strings.Split(jsonPath, ".")
				}
				table, err = domain.DecodeRecords(data, path...)
			} else {
				table, err = domain.ParseDelimited(string(data))
			}
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			var overrides map[string]domain.Sector
			if co2 {
				overrides = domain.CO2SectorOverrides
			}
			payload, stats, err := domain.BuildChart(dataset, table, domain.NewClassifier(overrides), domain.ChartRange{Start: start, End: end})
			if err != nil {
				return err
			}
			a.logger.Info("dataset aligned",
				"dataset", dataset,
				"series", len(payload.Series),
				"exact", stats.Exact,
				"interpolated", stats.Interpolated,
				"held", stats.Held,
				"missing", stats.Missing,
			)
			return writeJSON(cmd.OutOrStdout(), payload)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "input format: csv or json (default: from file extension)")
	cmd.Flags().StringVar(&jsonPath, "json-path", "", "dot-separated keys leading to the record array")
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset name (default: file name)")
	cmd.Flags().IntVar(&start, "start", 0, "first year of the grid (default: first year in the data)")
	cmd.Flags().IntVar(&end, "end", 0, "last year of the grid (default: last year in the data)")
	cmd.Flags().BoolVar(&co2, "co2", false, "apply emissions export label overrides (Traffic as Transportation)")
	cmd.MarkFlagsRequiredTogether("start", "end")
	return cmd
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func formatFromName(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return "json"
	}
	return "csv"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
