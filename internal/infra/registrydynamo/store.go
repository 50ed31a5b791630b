package registrydynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"apiregistry/internal/domain"
	"apiregistry/internal/infra/awsclient"
)

const reasonUnprocessed = "left unprocessed by DynamoDB (throughput exceeded)"

// API is the subset of awsclient.Client the store needs.
type API interface {
	BatchWriteItem(ctx context.Context, requests map[string][]awsclient.WriteRequest) (map[string][]awsclient.WriteRequest, error)
	GetItem(ctx context.Context, table string, key awsclient.Item) (awsclient.Item, error)
	Query(ctx context.Context, in awsclient.QueryInput) (awsclient.Page, error)
	ScanAll(ctx context.Context, table string) ([]awsclient.Item, error)
}

type Store struct {
	api API
}

func New(api API) *Store {
	return &Store{api: api}
}

// BatchWrite splits items into BatchWriteItem requests. Items DynamoDB leaves
// unprocessed, and items of a request that failed outright, are reported as
// failures. An error is returned only when no request got through.
func (s *Store) BatchWrite(ctx context.Context, table string, items []domain.Item) (domain.BatchResult, error) {
	if s == nil || s.api == nil {
		return domain.BatchResult{}, errors.New("dynamodb store is not configured")
	}
	out := domain.BatchResult{Table: table}
	var (
		firstErr error
		errored  int
	)
	for start := 0; start < len(items); start += awsclient.MaxBatchWriteItems {
		chunk := items[start:min(start+awsclient.MaxBatchWriteItems, len(items))]
		requests := make([]awsclient.WriteRequest, 0, len(chunk))
		keys := make([]domain.ItemKey, 0, len(chunk))
		for _, item := range chunk {
			attrs, err := marshalItem(item)
			if err != nil {
				out.Failed = append(out.Failed, domain.ItemFailure{Table: table, Key: item.ItemKey(), Reason: err.Error()})
				continue
			}
			requests = append(requests, awsclient.WriteRequest{PutRequest: &awsclient.PutRequest{Item: attrs}})
			keys = append(keys, item.ItemKey())
		}
		if len(requests) == 0 {
			continue
		}

		unprocessed, err := s.api.BatchWriteItem(ctx, map[string][]awsclient.WriteRequest{table: requests})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			errored += len(keys)
			for _, key := range keys {
				out.Failed = append(out.Failed, domain.ItemFailure{
					Table:     table,
					Key:       key,
					Reason:    err.Error(),
					Cancelled: ctx.Err() != nil,
				})
			}
			continue
		}

		left := make(map[domain.ItemKey]bool)
		for _, req := range unprocessed[table] {
			if req.PutRequest == nil {
				continue
			}
			key, err := itemKey(req.PutRequest.Item)
			if err != nil {
				continue
			}
			left[key] = true
		}
		for _, key := range keys {
			if left[key] {
				out.Failed = append(out.Failed, domain.ItemFailure{Table: table, Key: key, Reason: reasonUnprocessed})
				continue
			}
			out.Succeeded = append(out.Succeeded, key)
		}
	}
	if firstErr != nil && errored == len(items) {
		return domain.BatchResult{}, firstErr
	}
	return out, nil
}

func (s *Store) GetService(ctx context.Context, table, serviceID string) (domain.ServiceRecord, error) {
	item, err := s.api.GetItem(ctx, table, awsclient.Item{attrID: awsclient.String(serviceID)})
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	if len(item) == 0 {
		return domain.ServiceRecord{}, fmt.Errorf("service %s: %w", serviceID, domain.ErrNotFound)
	}
	return unmarshalService(item)
}

func (s *Store) ListServices(ctx context.Context, table string) ([]domain.ServiceRecord, error) {
	items, err := s.api.ScanAll(ctx, table)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ServiceRecord, 0, len(items))
	for _, item := range items {
		rec, err := unmarshalService(item)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceName < out[j].ServiceName })
	return out, nil
}

func (s *Store) ListVersions(ctx context.Context, table, serviceID string) ([]domain.VersionRecord, error) {
	var (
		out   []domain.VersionRecord
		start awsclient.Item
	)
	for {
		page, err := s.api.Query(ctx, awsclient.QueryInput{
			TableName:                 table,
			KeyConditionExpression:    "#id = :id",
			ExpressionAttributeNames:  map[string]string{"#id": attrID},
			ExpressionAttributeValues: awsclient.Item{":id": awsclient.String(serviceID)},
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			rec, err := unmarshalVersion(item)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = page.LastEvaluatedKey
	}
}
