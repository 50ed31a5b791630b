package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"apiregistry/internal/catalog"
	"apiregistry/internal/config"
	"apiregistry/internal/domain"
	"apiregistry/internal/infra/registrystore"
	"apiregistry/internal/observability"
	"apiregistry/internal/usecase"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		bootLogger := observability.InitLogger("seeder", "info", false)
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := observability.InitLogger("seeder", cfg.LogLevel, cfg.LogJSON)
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("seed failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if err := config.ValidateStore(cfg); err != nil {
		return err
	}
	entries, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	store, closeStore, err := registrystore.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	seeder, err := usecase.NewSeeder(store, usecase.SeederConfigFrom(cfg), logger)
	if err != nil {
		return err
	}
	if cfg.Seed.DocumentsRoot != "" {
		seeder.WithDocumentVerifier(catalog.NewDocumentVerifier(cfg.Seed.DocumentsRoot))
	}

	report, err := seeder.Seed(ctx, entries)
	if err != nil && errors.Is(err, domain.ErrStoreFailure) {
		logFailures(logger, report)
		logger.Warn().Int("failed", len(report.Failures())).Msg("retrying failed items once")
		var retried domain.SeedReport
		retried, err = seeder.Retry(ctx, entries, report)
		report = mergeRetry(report, retried)
	}
	if err != nil {
		logFailures(logger, report)
		return err
	}
	logger.Info().
		Str("service_table", report.Services.Table).
		Int("services", len(report.Services.Succeeded)).
		Str("version_table", report.Versions.Table).
		Int("versions", len(report.Versions.Succeeded)).
		Msg("registry seeded")
	return nil
}

// mergeRetry keeps the first run's successes and replaces its failures with
// the outcome of the retry.
func mergeRetry(first, retried domain.SeedReport) domain.SeedReport {
	out := first
	out.Services = domain.BatchResult{
		Table:     first.Services.Table,
		Succeeded: append(append([]domain.ItemKey(nil), first.Services.Succeeded...), retried.Services.Succeeded...),
		Failed:    retried.Services.Failed,
	}
	out.Versions = domain.BatchResult{
		Table:     first.Versions.Table,
		Succeeded: append(append([]domain.ItemKey(nil), first.Versions.Succeeded...), retried.Versions.Succeeded...),
		Failed:    retried.Versions.Failed,
	}
	return out
}

func loadCatalog(cfg config.Config) ([]domain.CatalogEntry, error) {
	if cfg.Seed.CatalogPath == "" {
		return catalog.Default()
	}
	return catalog.Load(cfg.Seed.CatalogPath)
}

func logFailures(logger zerolog.Logger, report domain.SeedReport) {
	for _, f := range report.Failures() {
		logger.Warn().
			Str("table", f.Table).
			Str("key", f.Key.String()).
			Str("service", f.ServiceName).
			Bool("cancelled", f.Cancelled).
			Msg(f.Reason)
	}
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.yml"
}
