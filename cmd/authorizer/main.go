package main

import (
	"context"
	"os"

	"apiregistry/internal/config"
	httpinfra "apiregistry/internal/infra/http"
	"apiregistry/internal/observability"
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		bootLogger := observability.InitLogger("authorizer", "info", false)
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := observability.InitLogger("authorizer", cfg.LogLevel, cfg.LogJSON)

	if err := config.ValidateAuthorization(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid authorization config")
	}

	srv, err := httpinfra.NewServer(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init server")
	}
	defer srv.Close()

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("authorizer listening")
	if err := srv.Run(); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.yml"
}
