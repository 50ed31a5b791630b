package registrymem

import (
	"context"
	"errors"
	"testing"
	"time"

	"apiregistry/internal/catalog"
	"apiregistry/internal/domain"
	"apiregistry/internal/usecase"

	"github.com/rs/zerolog"
)

const (
	serviceTable = "swagger-test-swagger-dynamo-serviceinfo"
	versionTable = "swagger-test-swagger-dynamo-versioninfo"
)

func newSeeder(t *testing.T, store *Store) *usecase.Seeder {
	t.Helper()
	seeder, err := usecase.NewSeeder(store, usecase.SeederConfig{
		ServiceTable: serviceTable,
		VersionTable: versionTable,
		ChunkSize:    2,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new seeder: %v", err)
	}
	return seeder.WithClock(func() time.Time { return time.UnixMilli(1700000000000) })
}

func TestSeedDefaultCatalogTwiceLeavesSameRows(t *testing.T) {
	entries, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	store := New()
	seeder := newSeeder(t, store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := seeder.Seed(ctx, entries); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
		if store.Len(serviceTable) != 3 || store.Len(versionTable) != 7 {
			t.Fatalf("seed %d: expected 3 services and 7 versions, got %d and %d", i, store.Len(serviceTable), store.Len(versionTable))
		}
	}

	audit, err := store.GetService(ctx, serviceTable, "7876153a-da82-54a2-8c48-647e87674701")
	if err != nil {
		t.Fatalf("get audit: %v", err)
	}
	if audit.ServiceName != "audit" || audit.LastUpdated != 1700000000000 {
		t.Fatalf("unexpected audit row: %+v", audit)
	}
	versions, err := store.ListVersions(ctx, versionTable, audit.ID)
	if err != nil || len(versions) != 3 {
		t.Fatalf("expected 3 audit versions, got %d (%v)", len(versions), err)
	}
}

func TestSeedRejectsOneOfThreeServices(t *testing.T) {
	entries, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	essID := usecase.StableID("ess")
	store := New().WithRejector(func(table string, key domain.ItemKey) error {
		if table == serviceTable && key.ServiceID == essID {
			return errors.New("conditional check failed")
		}
		return nil
	})

	report, err := newSeeder(t, store).Seed(context.Background(), entries)
	if !errors.Is(err, domain.ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
	if len(report.Services.Succeeded) != 2 || len(report.Services.Failed) != 1 {
		t.Fatalf("unexpected service outcome: %+v", report.Services)
	}
	if report.Services.Failed[0].ServiceName != "ess" {
		t.Fatalf("failure should name ess, got %+v", report.Services.Failed[0])
	}
	if _, err := store.GetService(context.Background(), serviceTable, essID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("rejected service must not be stored, got %v", err)
	}
}

func TestBatchWriteHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().BatchWrite(ctx, serviceTable, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
