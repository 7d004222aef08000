// Package postgres is the gorm-backed ordering store.
package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/repository"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

const orderClause = "priority DESC, position ASC, created_at ASC, id ASC"

type entryRepository struct {
	db  *gorm.DB
	l   logger.Logger
	now func() time.Time
}

func NewEntryRepository(db *gorm.DB, l logger.Logger) repository.EntryRepository {
	return &entryRepository{
		db:  db,
		l:   l,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *entryRepository) ListByPartition(ctx context.Context, key models.PartitionKey, f repository.ListFilter) ([]models.Entry, error) {
	q := r.db.WithContext(ctx).
		Where("tenant_id = ? AND riding_type_id = ?", key.TenantID, key.RidingTypeID)
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(f.Statuses))
	}
	if f.RequestedDay != nil {
		q = q.Where("(requested_day = ? OR requested_day IS NULL)", *f.RequestedDay)
	}

	var recs []entryRecord
	if err := q.Order(orderClause).Find(&recs).Error; err != nil {
		r.l.Errorf(ctx, "postgres.entryRepository.ListByPartition: %v", err)
		return nil, err
	}
	return toModels(recs), nil
}

func (r *entryRepository) ListByParent(ctx context.Context, tenantID, parentID string, statuses []models.EntryStatus) ([]models.Entry, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ? AND parent_id = ?", tenantID, parentID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(statuses))
	}

	var recs []entryRecord
	if err := q.Order("created_at ASC, id ASC").Find(&recs).Error; err != nil {
		r.l.Errorf(ctx, "postgres.entryRepository.ListByParent: %v", err)
		return nil, err
	}
	return toModels(recs), nil
}

func (r *entryRepository) Get(ctx context.Context, tenantID, id string) (*models.Entry, error) {
	var rec entryRecord
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		r.l.Errorf(ctx, "postgres.entryRepository.Get: %v", err)
		return nil, err
	}
	e := rec.toModel()
	return &e, nil
}

func (r *entryRepository) Version(ctx context.Context, key models.PartitionKey) (int64, error) {
	var versions []int64
	err := r.db.WithContext(ctx).
		Model(&partitionRecord{}).
		Where("tenant_id = ? AND riding_type_id = ?", key.TenantID, key.RidingTypeID).
		Pluck("version", &versions).Error
	if err != nil {
		r.l.Errorf(ctx, "postgres.entryRepository.Version: %v", err)
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[0], nil
}

// Mutate reads the partition, lets fn stage changes without holding any
// database lock, then commits in one transaction that first bumps the
// partition version with a compare-and-set. A concurrent committer makes the
// CAS match zero rows and the whole commit rolls back.
func (r *entryRepository) Mutate(ctx context.Context, key models.PartitionKey, fn repository.MutateFunc) (int64, error) {
	p, err := r.snapshot(ctx, key)
	if err != nil {
		r.l.Errorf(ctx, "postgres.entryRepository.Mutate: %v", err)
		return 0, err
	}

	if err := fn(p); err != nil {
		return p.Version, err
	}
	if !p.Dirty() {
		return p.Version, nil
	}
	if err := p.Validate(); err != nil {
		return p.Version, err
	}

	inserts, updates := p.Changes()
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&partitionRecord{}).
			Where("tenant_id = ? AND riding_type_id = ? AND version = ?", key.TenantID, key.RidingTypeID, p.Version).
			Update("version", gorm.Expr("version + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrConflict
		}

		for _, e := range inserts {
			rec := toEntryRecord(e)
			if err := tx.Create(&rec).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return repository.ErrConflict
				}
				return err
			}
		}

		for _, u := range updates {
			res := tx.Model(&entryRecord{}).
				Where("id = ? AND tenant_id = ? AND status = ?", u.Entry.ID, key.TenantID, string(u.ExpectedStatus)).
				Updates(patchColumns(u.Patch, u.Entry.UpdatedAt))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return repository.ErrConflict
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			r.l.Errorf(ctx, "postgres.entryRepository.Mutate: %v", err)
		}
		return p.Version, err
	}

	return p.Version + 1, nil
}

func (r *entryRepository) snapshot(ctx context.Context, key models.PartitionKey) (*repository.Partition, error) {
	db := r.db.WithContext(ctx)

	marker := partitionRecord{TenantID: key.TenantID, RidingTypeID: key.RidingTypeID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker).Error; err != nil {
		return nil, err
	}

	var (
		p   *repository.Partition
		now = r.now()
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		var cur partitionRecord
		if err := tx.Where("tenant_id = ? AND riding_type_id = ?", key.TenantID, key.RidingTypeID).
			Take(&cur).Error; err != nil {
			return err
		}

		var recs []entryRecord
		if err := tx.Where("tenant_id = ? AND riding_type_id = ? AND status IN ?",
			key.TenantID, key.RidingTypeID, statusStrings(models.OpenStatuses)).
			Order("position ASC, created_at ASC, id ASC").
			Find(&recs).Error; err != nil {
			return err
		}

		var agg struct {
			RowCount    int64
			MaxPosition int64
		}
		if err := tx.Model(&entryRecord{}).
			Select("COUNT(*) AS row_count, COALESCE(MAX(position), 0) AS max_position").
			Where("tenant_id = ? AND riding_type_id = ?", key.TenantID, key.RidingTypeID).
			Scan(&agg).Error; err != nil {
			return err
		}

		p = repository.NewPartition(key, cur.Version, toModels(recs), agg.MaxPosition, agg.RowCount > 0, now)
		return nil
	})
	return p, err
}

func (r *entryRepository) UpdateFields(ctx context.Context, tenantID, id string, expected models.EntryStatus, patch models.EntryPatch) (*models.Entry, error) {
	var out models.Entry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec entryRecord
		err := tx.Where("id = ? AND tenant_id = ?", id, tenantID).Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		if models.EntryStatus(rec.Status) != expected {
			return repository.ErrConflict
		}

		out = rec.toModel()
		patch.Apply(&out, r.now())

		res := tx.Model(&entryRecord{}).
			Where("id = ? AND tenant_id = ? AND status = ?", id, tenantID, string(expected)).
			Updates(patchColumns(patch, out.UpdatedAt))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repository.ErrConflict
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrConflict) {
			r.l.Errorf(ctx, "postgres.entryRepository.UpdateFields: %v", err)
		}
		return nil, err
	}
	return &out, nil
}

func (r *entryRepository) ListLapsedOffers(ctx context.Context, now time.Time, limit int) ([]models.Entry, error) {
	q := r.db.WithContext(ctx).
		Where("status = ? AND offer_expires_at IS NOT NULL AND offer_expires_at < ?", string(models.EntryStatusOffered), now).
		Order("offer_expires_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []entryRecord
	if err := q.Find(&recs).Error; err != nil {
		r.l.Errorf(ctx, "postgres.entryRepository.ListLapsedOffers: %v", err)
		return nil, err
	}
	return toModels(recs), nil
}

func toModels(recs []entryRecord) []models.Entry {
	out := make([]models.Entry, len(recs))
	for i, rec := range recs {
		out[i] = rec.toModel()
	}
	return out
}

func statusStrings(ss []models.EntryStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
