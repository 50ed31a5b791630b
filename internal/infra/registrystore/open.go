// Package registrystore opens the registry store selected by
// store.backend.
package registrystore

import (
	"context"
	"fmt"

	"apiregistry/internal/config"
	"apiregistry/internal/domain"
	"apiregistry/internal/infra/awsclient"
	"apiregistry/internal/infra/db"
	"apiregistry/internal/infra/registrydynamo"
	"apiregistry/internal/infra/registrymem"
	"apiregistry/internal/infra/registryredis"
	"apiregistry/internal/usecase"

	"github.com/rs/zerolog"
)

// Open returns the store and a close func that is never nil. The postgres
// backend creates its tables before returning.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (usecase.RegistryStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Store.Backend {
	case config.BackendDynamoDB:
		client, err := awsclient.NewFromConfig(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
		}
		logger.Info().Str("endpoint", client.Endpoint()).Msg("using dynamodb store")
		return registrydynamo.New(client), noop, nil
	case config.BackendRedis:
		store, err := registryredis.NewFromConfig(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
		}
		logger.Info().Str("addr", cfg.Store.RedisAddr).Msg("using redis store")
		return store, store.Close, nil
	case config.BackendPostgres:
		pg, err := db.NewStore(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx, cfg); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		return db.NewRegistryRepository(pg.DB), pg.Close, nil
	case config.BackendMemory:
		logger.Warn().Msg("using in-memory store; nothing is persisted")
		return registrymem.New(), noop, nil
	default:
		return nil, nil, fmt.Errorf("%w: unsupported store backend %q", domain.ErrConfig, cfg.Store.Backend)
	}
}
