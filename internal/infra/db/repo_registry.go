package db

import (
	"context"
	"errors"
	"fmt"

	"apiregistry/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RegistryRepository struct {
	db *gorm.DB
}

func NewRegistryRepository(db *gorm.DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

// BatchWrite upserts each item on its own. Once the connection itself fails
// the remaining items are failed with the same reason without being sent.
func (r *RegistryRepository) BatchWrite(ctx context.Context, table string, items []domain.Item) (domain.BatchResult, error) {
	if r.db == nil {
		return domain.BatchResult{}, errDBUnavailable
	}
	out := domain.BatchResult{Table: table}
	var fatal error
	for _, item := range items {
		key := item.ItemKey()
		if fatal != nil {
			out.Failed = append(out.Failed, domain.ItemFailure{Table: table, Key: key, Reason: describeError(fatal), Cancelled: ctx.Err() != nil})
			continue
		}
		if err := r.upsert(ctx, table, item); err != nil {
			if isUnavailable(err) {
				fatal = err
			}
			out.Failed = append(out.Failed, domain.ItemFailure{Table: table, Key: key, Reason: describeError(err), Cancelled: ctx.Err() != nil})
			continue
		}
		out.Succeeded = append(out.Succeeded, key)
	}
	if fatal != nil && len(out.Succeeded) == 0 {
		return domain.BatchResult{}, fatal
	}
	return out, nil
}

func (r *RegistryRepository) upsert(ctx context.Context, table string, item domain.Item) error {
	tx := r.db.WithContext(ctx).Table(table)
	switch rec := item.(type) {
	case domain.ServiceRecord:
		row := serviceModelFromRecord(rec)
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"servicename":   row.ServiceName,
				"latestversion": row.LatestVersion,
				"lastupdated":   row.LastUpdated,
			}),
		}).Create(&row).Error
	case domain.VersionRecord:
		row := versionModelFromRecord(rec)
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}, {Name: "version"}},
			DoUpdates: clause.Assignments(map[string]any{
				"path":        row.Path,
				"lastupdated": row.LastUpdated,
			}),
		}).Create(&row).Error
	default:
		return fmt.Errorf("unsupported item type %T", item)
	}
}

func (r *RegistryRepository) GetService(ctx context.Context, table, serviceID string) (domain.ServiceRecord, error) {
	if r.db == nil {
		return domain.ServiceRecord{}, errDBUnavailable
	}
	var model ServiceInfoModel
	err := r.db.WithContext(ctx).Table(table).First(&model, "id = ?", serviceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ServiceRecord{}, fmt.Errorf("service %s: %w", serviceID, domain.ErrNotFound)
		}
		return domain.ServiceRecord{}, err
	}
	return model.record(), nil
}

func (r *RegistryRepository) ListServices(ctx context.Context, table string) ([]domain.ServiceRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []ServiceInfoModel
	if err := r.db.WithContext(ctx).Table(table).Order("servicename").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ServiceRecord, 0, len(models))
	for _, m := range models {
		out = append(out, m.record())
	}
	return out, nil
}

func (r *RegistryRepository) ListVersions(ctx context.Context, table, serviceID string) ([]domain.VersionRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []VersionInfoModel
	err := r.db.WithContext(ctx).Table(table).Where("id = ?", serviceID).Order("version").Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.VersionRecord, 0, len(models))
	for _, m := range models {
		out = append(out, m.record())
	}
	return out, nil
}

func serviceModelFromRecord(rec domain.ServiceRecord) ServiceInfoModel {
	return ServiceInfoModel{
		ID:            rec.ID,
		ServiceName:   rec.ServiceName,
		LatestVersion: rec.LatestVersion,
		LastUpdated:   rec.LastUpdated,
	}
}

func (m ServiceInfoModel) record() domain.ServiceRecord {
	return domain.ServiceRecord{
		ID:            m.ID,
		ServiceName:   m.ServiceName,
		LatestVersion: m.LatestVersion,
		LastUpdated:   m.LastUpdated,
	}
}

func versionModelFromRecord(rec domain.VersionRecord) VersionInfoModel {
	return VersionInfoModel{
		ID:          rec.ServiceID,
		Version:     rec.Version,
		Path:        rec.DocumentPath,
		LastUpdated: rec.LastUpdated,
	}
}

func (m VersionInfoModel) record() domain.VersionRecord {
	return domain.VersionRecord{
		ServiceID:    m.ID,
		Version:      m.Version,
		DocumentPath: m.Path,
		LastUpdated:  m.LastUpdated,
	}
}
