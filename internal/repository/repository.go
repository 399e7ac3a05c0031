package repository

import (
	"golang-quant/config"
	"golang-quant/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	PriceRepo        PriceRepository
	OptimizationRepo OptimizationRepository
	WeightingRepo    WeightingRepository
	LatestRunRepo    LatestRunRepository
	UnitOfWork       UnitOfWork
}

func NewRepository(cfg *config.Config, db *gorm.DB, log *logger.Logger) *Repository {
	return &Repository{
		PriceRepo:        NewPriceRepository(cfg, log),
		OptimizationRepo: NewOptimizationRepository(db),
		WeightingRepo:    NewWeightingRepository(db),
		LatestRunRepo:    NewLatestRunRepository(db),
		UnitOfWork:       NewUnitOfWork(db),
	}
}
