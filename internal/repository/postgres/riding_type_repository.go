package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/internal/repository"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

type ridingTypeRepository struct {
	db *gorm.DB
	l  logger.Logger
}

func NewRidingTypeRepository(db *gorm.DB, l logger.Logger) repository.RidingTypeRepository {
	return &ridingTypeRepository{
		db: db,
		l:  l,
	}
}

func (r *ridingTypeRepository) List(ctx context.Context, tenantID string) ([]models.RidingType, error) {
	var recs []ridingTypeRecord
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC, id ASC").
		Find(&recs).Error; err != nil {
		r.l.Errorf(ctx, "postgres.ridingTypeRepository.List: %v", err)
		return nil, err
	}

	out := make([]models.RidingType, len(recs))
	for i, rec := range recs {
		out[i] = rec.toModel()
	}
	return out, nil
}

func (r *ridingTypeRepository) Get(ctx context.Context, tenantID, id string) (*models.RidingType, error) {
	var rec ridingTypeRecord
	err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		r.l.Errorf(ctx, "postgres.ridingTypeRepository.Get: %v", err)
		return nil, err
	}
	rt := rec.toModel()
	return &rt, nil
}

// Save upserts by id. A row owned by another tenant is never overwritten.
func (r *ridingTypeRepository) Save(ctx context.Context, rt *models.RidingType) error {
	rec := toRidingTypeRecord(*rt)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"code", "name", "description", "min_participants", "max_participants", "active", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "riding_types", Name: "tenant_id"}, Value: rt.TenantID},
		}},
	}).Create(&rec)
	if res.Error != nil {
		r.l.Errorf(ctx, "postgres.ridingTypeRepository.Save: %v", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrConflict
	}
	return nil
}
