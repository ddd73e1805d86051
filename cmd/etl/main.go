package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/overshoot-data-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/overshoot-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/overshoot-data-etl/internal/adapter/source"
	"github.com/couchcryptid/overshoot-data-etl/internal/config"
	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	"github.com/couchcryptid/overshoot-data-etl/internal/observability"
	"github.com/couchcryptid/overshoot-data-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Datasets referenced by source_path are fetched through a cached API client.
	client := source.NewClient(cfg.SourceBaseURL, cfg.SourceAPIKey, cfg.SourceTimeout, logger, metrics)
	fetcher, err := source.NewCachedFetcher(client, cfg.SourceCacheSize, metrics)
	if err != nil {
		logger.Error("failed to create source cache", "error", err)
		os.Exit(1)
	}
	logger.Info("data source configured", "base_url", cfg.SourceBaseURL, "cache_size", cfg.SourceCacheSize)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	classifier := domain.NewClassifier(domain.CO2SectorOverrides)
	defaultRange := domain.ChartRange{Start: cfg.DefaultStartYear, End: cfg.DefaultEndYear}
	transformer := pipeline.NewTransformer(fetcher, classifier, defaultRange, logger, metrics)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
