package registryredis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"apiregistry/internal/config"
	"apiregistry/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Store keeps each row in a hash and indexes rows with sets:
//
//	{prefix}:{table}:{id}                service or version row
//	{prefix}:{table}:{id}:{version}      version row
//	{prefix}:{table}:index               service ids
//	{prefix}:{table}:{id}:versions       versions of one service
type Store struct {
	client redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "registry"
	}
	return &Store{client: client, prefix: prefix}
}

func NewFromConfig(cfg config.Config) (*Store, error) {
	if cfg.Store.RedisAddr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddr,
		Password: cfg.Store.RedisPassword,
		DB:       cfg.Store.RedisDB,
	})
	return New(client, cfg.Store.RedisKeyPrefix), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) rowKey(table string, key domain.ItemKey) string {
	if key.Version == "" {
		return strings.Join([]string{s.prefix, table, key.ServiceID}, ":")
	}
	return strings.Join([]string{s.prefix, table, key.ServiceID, key.Version}, ":")
}

func (s *Store) serviceIndexKey(table string) string {
	return strings.Join([]string{s.prefix, table, "index"}, ":")
}

func (s *Store) versionIndexKey(table, serviceID string) string {
	return strings.Join([]string{s.prefix, table, serviceID, "versions"}, ":")
}

// BatchWrite sends one pipeline for the whole batch. Each item is judged by
// its own commands, so a single rejected row does not fail the others.
func (s *Store) BatchWrite(ctx context.Context, table string, items []domain.Item) (domain.BatchResult, error) {
	out := domain.BatchResult{Table: table}
	if len(items) == 0 {
		return out, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([][]redis.Cmder, len(items))
	for i, item := range items {
		key := item.ItemKey()
		fields, err := hashFields(item)
		if err != nil {
			out.Failed = append(out.Failed, domain.ItemFailure{Table: table, Key: key, Reason: err.Error()})
			continue
		}
		hset := pipe.HSet(ctx, s.rowKey(table, key), fields)
		var index *redis.IntCmd
		if key.Version == "" {
			index = pipe.SAdd(ctx, s.serviceIndexKey(table), key.ServiceID)
		} else {
			index = pipe.SAdd(ctx, s.versionIndexKey(table, key.ServiceID), key.Version)
		}
		cmds[i] = []redis.Cmder{hset, index}
	}
	_, execErr := pipe.Exec(ctx)

	failedByExec := 0
	for i, item := range items {
		if cmds[i] == nil {
			continue
		}
		key := item.ItemKey()
		if err := firstErr(cmds[i]); err != nil {
			failedByExec++
			out.Failed = append(out.Failed, domain.ItemFailure{
				Table:     table,
				Key:       key,
				Reason:    err.Error(),
				Cancelled: ctx.Err() != nil,
			})
			continue
		}
		out.Succeeded = append(out.Succeeded, key)
	}
	if execErr != nil && failedByExec == len(items) {
		return domain.BatchResult{}, execErr
	}
	return out, nil
}

func firstErr(cmds []redis.Cmder) error {
	for _, cmd := range cmds {
		if err := cmd.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetService(ctx context.Context, table, serviceID string) (domain.ServiceRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.rowKey(table, domain.ItemKey{ServiceID: serviceID})).Result()
	if err != nil {
		return domain.ServiceRecord{}, err
	}
	if len(fields) == 0 {
		return domain.ServiceRecord{}, fmt.Errorf("service %s: %w", serviceID, domain.ErrNotFound)
	}
	return parseService(fields)
}

func (s *Store) ListServices(ctx context.Context, table string) ([]domain.ServiceRecord, error) {
	ids, err := s.client.SMembers(ctx, s.serviceIndexKey(table)).Result()
	if err != nil {
		return nil, err
	}
	rows, err := s.fetchRows(ctx, table, ids, "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.ServiceRecord, 0, len(rows))
	for _, fields := range rows {
		rec, err := parseService(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceName < out[j].ServiceName })
	return out, nil
}

func (s *Store) ListVersions(ctx context.Context, table, serviceID string) ([]domain.VersionRecord, error) {
	versions, err := s.client.SMembers(ctx, s.versionIndexKey(table, serviceID)).Result()
	if err != nil {
		return nil, err
	}
	rows, err := s.fetchRows(ctx, table, versions, serviceID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.VersionRecord, 0, len(rows))
	for _, fields := range rows {
		rec, err := parseVersion(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// fetchRows loads service rows (serviceID empty, members are ids) or the
// version rows of serviceID (members are versions). Missing hashes are skipped.
func (s *Store) fetchRows(ctx context.Context, table string, members []string, serviceID string) ([]map[string]string, error) {
	if len(members) == 0 {
		return nil, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, member := range members {
		key := domain.ItemKey{ServiceID: member}
		if serviceID != "" {
			key = domain.ItemKey{ServiceID: serviceID, Version: member}
		}
		cmds[i] = pipe.HGetAll(ctx, s.rowKey(table, key))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	out := make([]map[string]string, 0, len(cmds))
	for _, cmd := range cmds {
		if fields := cmd.Val(); len(fields) > 0 {
			out = append(out, fields)
		}
	}
	return out, nil
}

func hashFields(item domain.Item) (map[string]any, error) {
	switch rec := item.(type) {
	case domain.ServiceRecord:
		return map[string]any{
			"id":            rec.ID,
			"servicename":   rec.ServiceName,
			"latestversion": rec.LatestVersion,
			"lastupdated":   strconv.FormatInt(rec.LastUpdated, 10),
		}, nil
	case domain.VersionRecord:
		return map[string]any{
			"id":          rec.ServiceID,
			"version":     rec.Version,
			"path":        rec.DocumentPath,
			"lastupdated": strconv.FormatInt(rec.LastUpdated, 10),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported item type %T", item)
	}
}

func parseService(fields map[string]string) (domain.ServiceRecord, error) {
	updated, err := strconv.ParseInt(fields["lastupdated"], 10, 64)
	if err != nil {
		return domain.ServiceRecord{}, fmt.Errorf("service %s: bad lastupdated: %w", fields["id"], err)
	}
	return domain.ServiceRecord{
		ID:            fields["id"],
		ServiceName:   fields["servicename"],
		LatestVersion: fields["latestversion"],
		LastUpdated:   updated,
	}, nil
}

func parseVersion(fields map[string]string) (domain.VersionRecord, error) {
	updated, err := strconv.ParseInt(fields["lastupdated"], 10, 64)
	if err != nil {
		return domain.VersionRecord{}, fmt.Errorf("version %s@%s: bad lastupdated: %w", fields["id"], fields["version"], err)
	}
	return domain.VersionRecord{
		ServiceID:    fields["id"],
		Version:      fields["version"],
		DocumentPath: fields["path"],
		LastUpdated:  updated,
	}, nil
}
