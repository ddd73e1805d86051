// Command overshootctl runs the normalization engine offline: it aligns local
// CSV or JSON datasets, computes overshoot days, and queries the footprint
// and simulator APIs.
//
// Settings come from flags, then OVERSHOOT_* environment variables, then an
// optional config file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/couchcryptid/overshoot-data-etl/internal/adapter/source"
	"github.com/couchcryptid/overshoot-data-etl/internal/observability"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	v       *viper.Viper
	logger  *slog.Logger
	metrics *observability.Metrics
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), metrics: observability.NewMetricsForTesting()}
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "overshootctl",
		Short: "Align footprint datasets and compute overshoot days",
		Long: `overshootctl normalizes heterogeneous footprint and emissions tables onto
a uniform yearly grid and computes Earth Overshoot Days from them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd, cfgFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./overshoot.yaml if present)")
	flags.String("source-url", "http://localhost:8000", "footprint data API base URL")
	flags.String("api-key", "", "footprint data API key")
	flags.Duration("timeout", 10*time.Second, "data API request timeout")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	_ = a.v.BindPFlag("source.url", flags.Lookup("source-url"))
	_ = a.v.BindPFlag("source.api_key", flags.Lookup("api-key"))
	_ = a.v.BindPFlag("source.timeout", flags.Lookup("timeout"))
	_ = a.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", flags.Lookup("log-format"))

	cmd.AddCommand(a.normalizeCmd())
	cmd.AddCommand(a.overshootCmd())
	cmd.AddCommand(a.evolutionCmd())
	cmd.AddCommand(a.chartsCmd())
	cmd.AddCommand(a.simulateCmd())
	return cmd
}

func (a *app) initConfig(cmd *cobra.Command, cfgFile string) error {
	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("overshoot")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("OVERSHOOT")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	// Logs go to stderr so stdout stays machine-readable.
	a.logger = observability.NewLoggerTo(cmd.ErrOrStderr(), a.v.GetString("logging.level"), a.v.GetString("logging.format"))
	return nil
}

// fetcher builds a data API client from the loaded configuration.
func (a *app) fetcher() source.Fetcher {
	return source.NewClient(
		a.v.GetString("source.url"),
		a.v.GetString("source.api_key"),
		a.v.GetDuration("source.timeout"),
		a.logger,
		a.metrics,
	)
}
