package usecase

import (
	"context"

	"apiregistry/internal/domain"
)

// RegistryWriter persists records into a named table. A returned error means
// no per-item outcome is known; otherwise every item appears exactly once in
// the result.
type RegistryWriter interface {
	BatchWrite(ctx context.Context, table string, items []domain.Item) (domain.BatchResult, error)
}

type RegistryReader interface {
	GetService(ctx context.Context, table, serviceID string) (domain.ServiceRecord, error)
	ListServices(ctx context.Context, table string) ([]domain.ServiceRecord, error)
	ListVersions(ctx context.Context, table, serviceID string) ([]domain.VersionRecord, error)
}

type RegistryStore interface {
	RegistryWriter
	RegistryReader
}

// EffectEngine decides the statement effect for one authorization request.
type EffectEngine interface {
	Decide(ctx context.Context, input domain.PolicyInput) (domain.Effect, error)
}

// DocumentVerifier checks the interface document behind a catalog version.
type DocumentVerifier interface {
	Verify(ctx context.Context, documentPath string) error
}
