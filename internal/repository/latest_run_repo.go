package repository

import (
	"context"
	"errors"

	"golang-quant/internal/model"
	"golang-quant/pkg/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LatestRunRepository interface {
	Upsert(ctx context.Context, latest *model.LatestRun, opts ...utils.DBOption) error
	Get(ctx context.Context, kind, scope string, opts ...utils.DBOption) (*model.LatestRun, error)
}

type latestRunRepository struct {
	db *gorm.DB
}

func NewLatestRunRepository(db *gorm.DB) LatestRunRepository {
	return &latestRunRepository{db: db}
}

// Upsert moves the pointer forward only; an older run id never replaces a newer one.
func (r *latestRunRepository) Upsert(ctx context.Context, latest *model.LatestRun, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "kind"}, {Name: "scope"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "run_id"}, Value: gorm.Expr("GREATEST(latest_runs.run_id, EXCLUDED.run_id)")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("EXCLUDED.updated_at")},
			},
		}).
		Create(latest).Error
}

func (r *latestRunRepository) Get(ctx context.Context, kind, scope string, opts ...utils.DBOption) (*model.LatestRun, error) {
	var latest model.LatestRun
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("kind = ? AND scope = ?", kind, scope).
		First(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &latest, nil
}
