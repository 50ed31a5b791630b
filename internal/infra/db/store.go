package db

import (
	"context"
	"errors"
	"fmt"

	"apiregistry/internal/config"
	"apiregistry/internal/domain"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config, log zerolog.Logger) (*Store, error) {
	if cfg.Store.PostgresDSN == "" {
		return nil, errors.New("POSTGRES_DSN is required for the postgres store")
	}
	gdb, err := gorm.Open(postgres.Open(cfg.Store.PostgresDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info().Msg("connected to postgres")
	return &Store{DB: gdb}, nil
}

// Migrate creates the service and version tables under the configured names.
func (s *Store) Migrate(ctx context.Context, cfg config.Config) error {
	if s == nil || s.DB == nil {
		return errDBUnavailable
	}
	tx := s.DB.WithContext(ctx)
	if err := tx.Table(cfg.TableName(domain.TableServiceInfo)).AutoMigrate(&ServiceInfoModel{}); err != nil {
		return fmt.Errorf("migrate service table: %w", err)
	}
	if err := tx.Table(cfg.TableName(domain.TableVersionInfo)).AutoMigrate(&VersionInfoModel{}); err != nil {
		return fmt.Errorf("migrate version table: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
