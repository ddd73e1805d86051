package main

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/overshoot-data-etl/internal/dashboard"
	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	"github.com/spf13/cobra"
)

type comparisonOutput struct {
	Country        domain.OvershootSummary `json:"country"`
	Baseline       domain.OvershootSummary `json:"baseline"`
	DifferenceDays int                     `json:"difference_days"`
}

func (a *app) overshootCmd() *cobra.Command {
	var (
		year        int
		biocapacity float64
		footprint   float64
		country     string
		baseline    string
	)
	cmd := &cobra.Command{
		Use:   "overshoot",
		Short: "Compute the overshoot day for a year",
		Long: `Compute the day of year on which footprint exhausts biocapacity.

With --biocapacity and --footprint the calculation is local. With --country
the values are fetched from the data API, and --baseline adds a comparison
against a second country (the world is compared against Germany by default).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if country == "" {
				if !cmd.Flags().Changed("biocapacity") || !cmd.Flags().Changed("footprint") {
					return errors.New("either --country or both --biocapacity and --footprint are required")
				}
				summary, ok := domain.Summarize(year, biocapacity, footprint)
				if !ok {
					return fmt.Errorf("overshoot day is undefined for biocapacity %v and footprint %v", biocapacity, footprint)
				}
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			if baseline == "" && country == dashboard.WorldCode {
				baseline = dashboard.GermanyCode
			}
			f := a.fetcher()
			if baseline == "" {
				res, progress, err := dashboard.CountryOvershoot(cmd.Context(), f, country, year)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), summarize(res, progress))
			}

			comparison, err := dashboard.CompareOvershoot(cmd.Context(), f, country, baseline, year)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), comparisonOutput{
				Country:        summarize(comparison.Country, comparison.Progress),
				Baseline:       summarize(comparison.Baseline, 0),
				DifferenceDays: comparison.DifferenceDays,
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "calendar year")
	cmd.Flags().Float64Var(&biocapacity, "biocapacity", 0, "biocapacity per capita")
	cmd.Flags().Float64Var(&footprint, "footprint", 0, "ecological footprint per capita")
	cmd.Flags().StringVar(&country, "country", "", "country code in the data API (5001 is the world)")
	cmd.Flags().StringVar(&baseline, "baseline", "", "country code to compare against")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func summarize(r domain.OvershootResult, progress float64) domain.OvershootSummary {
	return domain.OvershootSummary{
		Year:       r.Year,
		DayOfYear:  r.DayOfYear,
		Date:       r.DateString(),
		WithinYear: r.WithinYear,
		Progress:   progress,
	}
}

func (a *app) evolutionCmd() *cobra.Command {
	var (
		country string
		start   int
		end     int
	)
	cmd := &cobra.Command{
		Use:   "evolution",
		Short: "Print a country's footprint history next to world biocapacity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if country == dashboard.WorldCode {
				country = dashboard.GermanyCode
			}
			series, err := dashboard.EvolutionSeries(cmd.Context(), a.fetcher(), country, domain.ChartRange{Start: start, End: end})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), domain.ChartPayload{
				Dataset:     "evolution-" + country,
				Start:       start,
				End:         end,
				Series:      series,
				ProcessedAt: domain.Now(),
			})
		},
	}
	cmd.Flags().StringVar(&country, "country", dashboard.GermanyCode, "country code in the data API")
	cmd.Flags().IntVar(&start, "start", 1961, "first year")
	cmd.Flags().IntVar(&end, "end", 2024, "last year")
	return cmd
}
