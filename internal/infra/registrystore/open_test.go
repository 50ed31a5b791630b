package registrystore

import (
	"context"
	"errors"
	"testing"

	"apiregistry/internal/config"
	"apiregistry/internal/domain"
	"apiregistry/internal/infra/registrydynamo"
	"apiregistry/internal/infra/registrymem"
	"apiregistry/internal/infra/registryredis"

	"github.com/rs/zerolog"
)

func TestOpenSelectsBackend(t *testing.T) {
	tests := []struct {
		name  string
		store config.Store
		check func(t *testing.T, store any)
	}{
		{
			name:  "memory",
			store: config.Store{Backend: config.BackendMemory},
			check: func(t *testing.T, store any) {
				if _, ok := store.(*registrymem.Store); !ok {
					t.Fatalf("expected memory store, got %T", store)
				}
			},
		},
		{
			name:  "dynamodb local",
			store: config.Store{Backend: config.BackendDynamoDB, DynamoDBEndpoint: "http://localhost:8000"},
			check: func(t *testing.T, store any) {
				if _, ok := store.(*registrydynamo.Store); !ok {
					t.Fatalf("expected dynamodb store, got %T", store)
				}
			},
		},
		{
			name:  "redis",
			store: config.Store{Backend: config.BackendRedis, RedisAddr: "localhost:6379"},
			check: func(t *testing.T, store any) {
				if _, ok := store.(*registryredis.Store); !ok {
					t.Fatalf("expected redis store, got %T", store)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Config{Region: "sa-east-1", Store: tt.store}
			store, closeFn, err := Open(context.Background(), cfg, zerolog.Nop())
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer closeFn()
			tt.check(t, store)
		})
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{name: "unknown backend", cfg: config.Config{Store: config.Store{Backend: "cassandra"}}},
		{name: "dynamodb without region", cfg: config.Config{Store: config.Store{Backend: config.BackendDynamoDB}}},
		{name: "redis without addr", cfg: config.Config{Store: config.Store{Backend: config.BackendRedis}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Open(context.Background(), tt.cfg, zerolog.Nop()); !errors.Is(err, domain.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
