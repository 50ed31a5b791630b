//go:build integration

package registryredis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"apiregistry/internal/domain"

	"github.com/redis/go-redis/v9"
)

func TestStore_RedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	prefix := "registry-test-" + time.Now().Format("150405.000000")
	store := New(client, prefix)
	ctx := context.Background()
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = store.Close()
	})

	services := []domain.Item{
		domain.ServiceRecord{ID: "id-audit", ServiceName: "audit", LatestVersion: "1.0.0", LastUpdated: 1},
		domain.ServiceRecord{ID: "id-ess", ServiceName: "ess", LatestVersion: "1.0.0", LastUpdated: 1},
	}
	result, err := store.BatchWrite(ctx, "svc", services)
	if err != nil || len(result.Succeeded) != 2 {
		t.Fatalf("write services: %+v %v", result, err)
	}
	versions := []domain.Item{
		domain.VersionRecord{ServiceID: "id-audit", Version: "1.0.0", DocumentPath: "a.yaml", LastUpdated: 1},
		domain.VersionRecord{ServiceID: "id-audit", Version: "2.0.0", DocumentPath: "b.yaml", LastUpdated: 1},
	}
	if _, err := store.BatchWrite(ctx, "ver", versions); err != nil {
		t.Fatalf("write versions: %v", err)
	}
	// Overwrite must not duplicate.
	if _, err := store.BatchWrite(ctx, "ver", versions); err != nil {
		t.Fatalf("rewrite versions: %v", err)
	}

	got, err := store.GetService(ctx, "svc", "id-audit")
	if err != nil || got.ServiceName != "audit" {
		t.Fatalf("get service: %+v %v", got, err)
	}
	if _, err := store.GetService(ctx, "svc", "id-none"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	all, err := store.ListServices(ctx, "svc")
	if err != nil || len(all) != 2 {
		t.Fatalf("list services: %+v %v", all, err)
	}
	list, err := store.ListVersions(ctx, "ver", "id-audit")
	if err != nil || len(list) != 2 || list[0].Version != "1.0.0" {
		t.Fatalf("list versions: %+v %v", list, err)
	}
}
