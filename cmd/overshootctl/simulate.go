package main

import (
	"time"

	"github.com/couchcryptid/overshoot-data-etl/internal/dashboard"
	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	"github.com/spf13/cobra"
)

type simulateOutput struct {
	Year         int                `json:"year"`
	BaselineDay  int                `json:"baseline_day_of_year"`
	AdjustedDay  int                `json:"adjusted_day_of_year"`
	BaselineDate string             `json:"baseline_date"`
	AdjustedDate string             `json:"adjusted_date"`
	DeltaDays    int                `json:"delta_days"`
	Adjustments  map[string]float64 `json:"adjustments"`
}

func (a *app) simulateCmd() *cobra.Command {
	var year int
	levers := make(map[dashboard.Lever]*int, len(dashboard.Levers))

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate how sector emission changes move the overshoot day",
		Long: `Send sector adjustments, in percent from -100 to 100, to the emissions
simulator and print the baseline and adjusted overshoot days. Without --year
the latest forecast year the simulator reports is used.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := a.fetcher()
			session := dashboard.NewSession(f, domain.NewClassifier(nil), nil, 0, a.logger, a.metrics)
			defer session.Close()

			runner := dashboard.NewScenarioRunner(f, session, a.logger)
			years, err := runner.Init(cmd.Context())
			if err != nil {
				return err
			}
			if year == 0 {
				year = years.Max
			}

			adj := make(dashboard.Adjustments, len(levers))
			for lever, pct := range levers {
				adj[lever] = *pct
			}
			out, err := runner.Simulate(cmd.Context(), year, adj)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), simulateOutput{
				Year:         out.Year,
				BaselineDay:  out.BaselineDay,
				AdjustedDay:  out.AdjustedDay,
				BaselineDate: out.BaselineDate.Format(time.DateOnly),
				AdjustedDate: out.AdjustedDate.Format(time.DateOnly),
				DeltaDays:    out.Delta(),
				Adjustments:  dashboard.MapAdjustments(runner.Features(), adj),
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "forecast year")
	for _, lever := range dashboard.Levers {
		levers[lever] = cmd.Flags().Int(string(lever), 0, "change for the "+string(lever)+" sector in percent")
	}
	return cmd
}
