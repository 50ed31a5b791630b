package registrydynamo

import (
	"context"
	"errors"
	"testing"

	"apiregistry/internal/domain"
	"apiregistry/internal/infra/awsclient"
)

type fakeAPI struct {
	tables      map[string][]awsclient.Item
	unprocessed map[string]bool
	batchErr    error
	batches     int
	lastQuery   awsclient.QueryInput
}

func (f *fakeAPI) BatchWriteItem(ctx context.Context, requests map[string][]awsclient.WriteRequest) (map[string][]awsclient.WriteRequest, error) {
	f.batches++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	left := make(map[string][]awsclient.WriteRequest)
	for table, reqs := range requests {
		for _, req := range reqs {
			name, _ := req.PutRequest.Item.Str(attrServiceName)
			version, _ := req.PutRequest.Item.Str(attrVersion)
			if f.unprocessed[name] || f.unprocessed[version] {
				left[table] = append(left[table], req)
				continue
			}
			f.tables[table] = append(f.tables[table], req.PutRequest.Item)
		}
	}
	return left, nil
}

func (f *fakeAPI) GetItem(ctx context.Context, table string, key awsclient.Item) (awsclient.Item, error) {
	want, _ := key.Str(attrID)
	for _, item := range f.tables[table] {
		if id, _ := item.Str(attrID); id == want {
			return item, nil
		}
	}
	return nil, nil
}

func (f *fakeAPI) Query(ctx context.Context, in awsclient.QueryInput) (awsclient.Page, error) {
	f.lastQuery = in
	want, _ := in.ExpressionAttributeValues.Str(":id")
	var page awsclient.Page
	for _, item := range f.tables[in.TableName] {
		if id, _ := item.Str(attrID); id == want {
			page.Items = append(page.Items, item)
		}
	}
	return page, nil
}

func (f *fakeAPI) ScanAll(ctx context.Context, table string) ([]awsclient.Item, error) {
	return f.tables[table], nil
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{tables: make(map[string][]awsclient.Item), unprocessed: make(map[string]bool)}
}

func services(names ...string) []domain.Item {
	out := make([]domain.Item, 0, len(names))
	for i, name := range names {
		out = append(out, domain.ServiceRecord{ID: "id-" + name, ServiceName: name, LatestVersion: "1.0.0", LastUpdated: int64(i)})
	}
	return out
}

func TestStore_BatchWriteReportsUnprocessedItems(t *testing.T) {
	api := newFakeAPI()
	api.unprocessed["auth"] = true
	store := New(api)

	result, err := store.BatchWrite(context.Background(), "services", services("audit", "auth", "ess"))
	if err != nil {
		t.Fatalf("batch write: %v", err)
	}
	if len(result.Succeeded) != 2 || len(result.Failed) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Failed[0].Key.ServiceID != "id-auth" || result.Failed[0].Reason != reasonUnprocessed {
		t.Fatalf("unexpected failure: %+v", result.Failed[0])
	}
}

func TestStore_BatchWriteSplitsAtRequestLimit(t *testing.T) {
	api := newFakeAPI()
	store := New(api)
	names := make([]string, 30)
	for i := range names {
		names[i] = string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	result, err := store.BatchWrite(context.Background(), "services", services(names...))
	if err != nil {
		t.Fatalf("batch write: %v", err)
	}
	if api.batches != 2 || len(result.Succeeded) != 30 {
		t.Fatalf("expected 2 requests and 30 successes, got %d and %d", api.batches, len(result.Succeeded))
	}
}

func TestStore_BatchWriteRequestError(t *testing.T) {
	api := newFakeAPI()
	api.batchErr = &awsclient.APIError{StatusCode: 400, Type: "x#ResourceNotFoundException"}
	store := New(api)

	_, err := store.BatchWrite(context.Background(), "services", services("audit"))
	var apiErr *awsclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestStore_BatchWriteUnsupportedItem(t *testing.T) {
	store := New(newFakeAPI())
	result, err := store.BatchWrite(context.Background(), "services", []domain.Item{unknownItem{}})
	if err != nil {
		t.Fatalf("batch write: %v", err)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("expected unsupported item to fail, got %+v", result)
	}
}

type unknownItem struct{}

func (unknownItem) ItemKey() domain.ItemKey { return domain.ItemKey{ServiceID: "x"} }

func TestStore_ReadBack(t *testing.T) {
	api := newFakeAPI()
	store := New(api)
	ctx := context.Background()

	if _, err := store.BatchWrite(ctx, "services", services("ess", "audit")); err != nil {
		t.Fatalf("write services: %v", err)
	}
	versions := []domain.Item{
		domain.VersionRecord{ServiceID: "id-audit", Version: "1.0.0", DocumentPath: "a1.yaml", LastUpdated: 7},
		domain.VersionRecord{ServiceID: "id-audit", Version: "2.0.0", DocumentPath: "a2.yaml", LastUpdated: 7},
		domain.VersionRecord{ServiceID: "id-ess", Version: "2.0.0", DocumentPath: "e.yaml", LastUpdated: 7},
	}
	if _, err := store.BatchWrite(ctx, "versions", versions); err != nil {
		t.Fatalf("write versions: %v", err)
	}

	svc, err := store.GetService(ctx, "services", "id-audit")
	if err != nil || svc.ServiceName != "audit" || svc.LatestVersion != "1.0.0" {
		t.Fatalf("unexpected service: %+v %v", svc, err)
	}
	if _, err := store.GetService(ctx, "services", "id-missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	all, err := store.ListServices(ctx, "services")
	if err != nil || len(all) != 2 || all[0].ServiceName != "audit" {
		t.Fatalf("unexpected services: %+v %v", all, err)
	}
	got, err := store.ListVersions(ctx, "versions", "id-audit")
	if err != nil || len(got) != 2 || got[1].DocumentPath != "a2.yaml" || got[1].LastUpdated != 7 {
		t.Fatalf("unexpected versions: %+v %v", got, err)
	}
	if api.lastQuery.ExpressionAttributeNames["#id"] != attrID {
		t.Fatalf("unexpected query: %+v", api.lastQuery)
	}
}
