package repository

import (
	"context"
	"errors"

	"golang-quant/internal/model"
	"golang-quant/pkg/utils"

	"gorm.io/gorm"
)

type WeightingRepository interface {
	Create(ctx context.Context, run *model.WeightingRun, opts ...utils.DBOption) error
	FindByID(ctx context.Context, id int64, opts ...utils.DBOption) (*model.WeightingRun, error)
}

type weightingRepository struct {
	db *gorm.DB
}

func NewWeightingRepository(db *gorm.DB) WeightingRepository {
	return &weightingRepository{db: db}
}

// Create inserts the run and its entries.
func (r *weightingRepository) Create(ctx context.Context, run *model.WeightingRun, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(run).Error
}

func (r *weightingRepository) FindByID(ctx context.Context, id int64, opts ...utils.DBOption) (*model.WeightingRun, error) {
	var run model.WeightingRun
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Preload("Entries", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&run, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}
