package service

import (
	"golang-quant/config"
	"golang-quant/internal/repository"
	"golang-quant/internal/strategy"
	"golang-quant/pkg/cache"
	"golang-quant/pkg/logger"
	"golang-quant/pkg/metrics"
	"golang-quant/pkg/telegram"
)

type Service struct {
	BacktestService     BacktestService
	OptimizationService OptimizationService
	WeightingService    WeightingService
	SchedulerService    SchedulerService
	TaskRunner          TaskRunner
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	registry *strategy.Registry,
	inmemoryCache cache.Cache,
	notifier telegram.Notifier,
	m *metrics.Registry,
) *Service {
	taskRunner := NewTaskRunner(log, cfg.Cache.DefaultExpiration)
	backtestService := NewBacktestService(cfg, log, registry, repo.PriceRepo, m)
	optimizationService := NewOptimizationService(cfg, log, registry, repo, taskRunner, notifier, m)
	weightingService := NewWeightingService(cfg, log, registry, repo, optimizationService, inmemoryCache, taskRunner, notifier, m)
	schedulerService := NewSchedulerService(cfg, log, weightingService)

	return &Service{
		BacktestService:     backtestService,
		OptimizationService: optimizationService,
		WeightingService:    weightingService,
		SchedulerService:    schedulerService,
		TaskRunner:          taskRunner,
	}
}
