package repository

import (
	"context"
	"errors"

	"golang-quant/internal/model"
	"golang-quant/pkg/utils"

	"gorm.io/gorm"
)

type OptimizationRepository interface {
	Create(ctx context.Context, run *model.OptimizationRun, opts ...utils.DBOption) error
	FindByID(ctx context.Context, id int64, opts ...utils.DBOption) (*model.OptimizationRun, error)
	List(ctx context.Context, strategyID string, limit int, opts ...utils.DBOption) ([]model.OptimizationRun, error)
}

type optimizationRepository struct {
	db *gorm.DB
}

func NewOptimizationRepository(db *gorm.DB) OptimizationRepository {
	return &optimizationRepository{db: db}
}

func (r *optimizationRepository) Create(ctx context.Context, run *model.OptimizationRun, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(run).Error
}

func (r *optimizationRepository) FindByID(ctx context.Context, id int64, opts ...utils.DBOption) (*model.OptimizationRun, error) {
	var run model.OptimizationRun
	err := utils.ApplyOptions(r.db.WithContext(ctx), opts...).First(&run, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// List returns the newest runs first. An empty strategyID lists every strategy.
func (r *optimizationRepository) List(ctx context.Context, strategyID string, limit int, opts ...utils.DBOption) ([]model.OptimizationRun, error) {
	var runs []model.OptimizationRun
	q := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if strategyID != "" {
		q = q.Where("strategy_id = ?", strategyID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("id DESC").Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
