package registrymem

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"apiregistry/internal/domain"
)

// Store keeps registry tables in memory. It backs dry runs and tests.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[domain.ItemKey]domain.Item
	reject func(table string, key domain.ItemKey) error
}

func New() *Store {
	return &Store{tables: make(map[string]map[domain.ItemKey]domain.Item)}
}

// WithRejector makes BatchWrite fail every item for which fn returns an error.
func (s *Store) WithRejector(fn func(table string, key domain.ItemKey) error) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = fn
	return s
}

func (s *Store) BatchWrite(ctx context.Context, table string, items []domain.Item) (domain.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.BatchResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[domain.ItemKey]domain.Item)
		s.tables[table] = rows
	}
	out := domain.BatchResult{Table: table}
	for _, item := range items {
		key := item.ItemKey()
		if s.reject != nil {
			if err := s.reject(table, key); err != nil {
				out.Failed = append(out.Failed, domain.ItemFailure{Table: table, Key: key, Reason: err.Error()})
				continue
			}
		}
		rows[key] = item
		out.Succeeded = append(out.Succeeded, key)
	}
	return out, nil
}

func (s *Store) GetService(ctx context.Context, table, serviceID string) (domain.ServiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.tables[table][domain.ItemKey{ServiceID: serviceID}].(domain.ServiceRecord); ok {
		return rec, nil
	}
	return domain.ServiceRecord{}, fmt.Errorf("service %s: %w", serviceID, domain.ErrNotFound)
}

func (s *Store) ListServices(ctx context.Context, table string) ([]domain.ServiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ServiceRecord, 0, len(s.tables[table]))
	for _, item := range s.tables[table] {
		if rec, ok := item.(domain.ServiceRecord); ok {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceName < out[j].ServiceName })
	return out, nil
}

func (s *Store) ListVersions(ctx context.Context, table, serviceID string) ([]domain.VersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.VersionRecord
	for _, item := range s.tables[table] {
		if rec, ok := item.(domain.VersionRecord); ok && rec.ServiceID == serviceID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Len reports the number of rows in table.
func (s *Store) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}
