package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/couchcryptid/overshoot-data-etl/internal/adapter/source"
	"github.com/couchcryptid/overshoot-data-etl/internal/dashboard"
	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	"github.com/spf13/cobra"
)

type chartOutput struct {
	ID     string               `json:"id"`
	Series []domain.NamedSeries `json:"series,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func (a *app) chartsCmd() *cobra.Command {
	var (
		start int
		end   int
	)
	cmd := &cobra.Command{
		Use:   "charts <id>=<path> ...",
		Short: "Load several dashboard charts from the data API",
		Long: `Fetch each dataset, align it, and register it as a synchronized chart view.
Paths ending in .csv or .tsv are parsed as delimited text; anything else is
decoded as JSON. A json_path query key names the nested keys leading to the
record array and is not sent to the API. A chart that fails is reported
without affecting the others.`,
		Example: `  overshootctl charts co2=/co2/sectors.csv pie=/pie_data/all`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := parseChartArgs(args, domain.ChartRange{Start: start, End: end})
			if err != nil {
				return err
			}

			session := dashboard.NewSession(a.fetcher(), domain.NewClassifier(domain.CO2SectorOverrides), nil, 0, a.logger, a.metrics)
			defer session.Close()

			failed := session.LoadCharts(cmd.Context(), specs)
			out := make([]chartOutput, 0, len(specs))
			for _, spec := range specs {
				if err, ok := failed[spec.ID]; ok {
					out = append(out, chartOutput{ID: spec.ID, Error: err.Error()})
					continue
				}
				if c, ok := session.Chart(spec.ID); ok {
					out = append(out, chartOutput{ID: spec.ID, Series: c.Series()})
				}
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if len(failed) == len(specs) {
				return fmt.Errorf("all %d charts failed", len(specs))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "first year of every grid (default: data span)")
	cmd.Flags().IntVar(&end, "end", 0, "last year of every grid (default: data span)")
	cmd.MarkFlagsRequiredTogether("start", "end")
	return cmd
}

// parseChartArgs turns id=path arguments into chart specs. IDs must be unique.
func parseChartArgs(args []string, r domain.ChartRange) ([]dashboard.ChartSpec, error) {
	specs := make([]dashboard.ChartSpec, 0, len(args))
	seen := make(map[string]bool, len(args))
	for _, arg := range args {
		id, raw, ok := strings.Cut(arg, "=")
		if !ok || id == "" || raw == "" {
			return nil, fmt.Errorf("invalid chart %q: want <id>=<path>", arg)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate chart id %q", id)
		}
		seen[id] = true

		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid chart path %q: %w", raw, err)
		}
		q := u.Query()
		spec := dashboard.ChartSpec{ID: id, Range: r, Format: "csv"}
		if p := q.Get("json_path"); p != "" {
			spec.Format = "json"
			spec.JSONPath = strings.Split(p, ".")
			q.Del("json_path")
		} else if !strings.HasSuffix(strings.ToLower(u.Path), ".csv") && !strings.HasSuffix(strings.ToLower(u.Path), ".tsv") {
			spec.Format = "json"
		}
		if len(q) == 0 {
			q = nil
		}
		spec.Request = source.Request{Path: u.Path, Query: q}
		specs = append(specs, spec)
	}
	return specs, nil
}
