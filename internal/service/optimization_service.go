package service

import (
	"context"
	"fmt"

	"golang-quant/config"
	"golang-quant/internal/backtest"
	"golang-quant/internal/dto"
	"golang-quant/internal/model"
	"golang-quant/internal/optimizer"
	"golang-quant/internal/repository"
	"golang-quant/internal/strategy"
	"golang-quant/pkg/apperror"
	"golang-quant/pkg/logger"
	"golang-quant/pkg/metrics"
	"golang-quant/pkg/telegram"
	"golang-quant/pkg/utils"
)

const kindOptimization = "optimization"

type OptimizationService interface {
	// Submit validates req, claims the strategy's scope and runs the search in the background.
	Submit(ctx context.Context, req dto.OptimizeRequest) (*dto.SubmitResponse, error)
	// Optimize is Submit without the background task.
	Optimize(ctx context.Context, req dto.OptimizeRequest) (*dto.OptimizationResult, error)
	Status(strategyID string) dto.RunStatus
	Result(ctx context.Context, strategyID string) (*dto.OptimizationResult, error)
	OptimizedParams(ctx context.Context, strategyID string) (dto.Params, bool)
}

type optimizationService struct {
	cfg        *config.Config
	log        *logger.Logger
	registry   *strategy.Registry
	optimizer  *optimizer.Optimizer
	prices     repository.PriceRepository
	runRepo    repository.OptimizationRepository
	latestRepo repository.LatestRunRepository
	uow        repository.UnitOfWork
	tasks      TaskRunner
	notifier   telegram.Notifier
	metrics    *metrics.Registry
	board      *runBoard
}

func NewOptimizationService(
	cfg *config.Config,
	log *logger.Logger,
	registry *strategy.Registry,
	repo *repository.Repository,
	tasks TaskRunner,
	notifier telegram.Notifier,
	m *metrics.Registry,
) OptimizationService {
	return &optimizationService{
		cfg:      cfg,
		log:      log,
		registry: registry,
		optimizer: optimizer.New(registry, log, optimizer.Config{
			MaxCombinations: cfg.Optimizer.MaxCombinations,
			Workers:         cfg.Optimizer.Workers,
			TopN:            cfg.Optimizer.TopN,
			Metric:          cfg.Optimizer.Metric,
		}),
		prices:     repo.PriceRepo,
		runRepo:    repo.OptimizationRepo,
		latestRepo: repo.LatestRunRepo,
		uow:        repo.UnitOfWork,
		tasks:      tasks,
		notifier:   notifier,
		metrics:    m,
		board:      newRunBoard(),
	}
}

func (s *optimizationService) Submit(ctx context.Context, req dto.OptimizeRequest) (*dto.SubmitResponse, error) {
	optReq, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	scope := optReq.StrategyID
	tracker := optimizer.NewTracker()
	if err := s.board.begin(scope, tracker); err != nil {
		return nil, fmt.Errorf("optimization of %s: %w", scope, err)
	}

	taskID := s.tasks.Submit(kindOptimization, func(ctx context.Context) (interface{}, error) {
		return s.execute(ctx, optReq, tracker)
	})
	s.board.attachTask(scope, taskID)

	s.log.InfoContext(ctx, "Optimization submitted",
		logger.StringField("strategy", scope),
		logger.StringField("task_id", taskID),
	)
	return &dto.SubmitResponse{TaskID: taskID, Scope: scope}, nil
}

func (s *optimizationService) Optimize(ctx context.Context, req dto.OptimizeRequest) (*dto.OptimizationResult, error) {
	optReq, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	tracker := optimizer.NewTracker()
	if err := s.board.begin(optReq.StrategyID, tracker); err != nil {
		return nil, fmt.Errorf("optimization of %s: %w", optReq.StrategyID, err)
	}
	return s.execute(ctx, optReq, tracker)
}

// prepare rejects bad input before a scope is claimed.
func (s *optimizationService) prepare(ctx context.Context, req dto.OptimizeRequest) (optimizer.Request, error) {
	if _, err := s.registry.Get(req.Strategy); err != nil {
		return optimizer.Request{}, err
	}

	metric := req.Metric
	if metric == "" {
		metric = s.cfg.Optimizer.Metric
	}
	if !backtest.IsKnownMetric(metric) {
		return optimizer.Request{}, apperror.Data("unknown metric %q", metric)
	}

	names := make(dto.Params, len(req.Grid))
	for name := range req.Grid {
		names[name] = 0
	}
	if err := s.registry.CheckParamNames(req.Strategy, names); err != nil {
		return optimizer.Request{}, err
	}
	if _, err := optimizer.CountCombinations(req.Grid, s.cfg.Optimizer.MaxCombinations); err != nil {
		return optimizer.Request{}, err
	}

	start, end, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		return optimizer.Request{}, err
	}
	series, err := loadSeries(ctx, s.prices, req.Symbol, req.Bars, s.cfg.MarketData.Range)
	if err != nil {
		return optimizer.Request{}, err
	}

	return optimizer.Request{
		Series:     series,
		StrategyID: req.Strategy,
		Grid:       req.Grid,
		Metric:     metric,
		Workers:    req.Workers,
		Start:      start,
		End:        end,
		Simulation: backtest.Options{
			InitialCapital: s.cfg.Simulation.InitialCapital,
			Commission:     s.cfg.Simulation.Commission,
		},
	}, nil
}

// execute runs a claimed scope to completion and always releases it.
func (s *optimizationService) execute(ctx context.Context, req optimizer.Request, tracker *optimizer.Tracker) (*dto.OptimizationResult, error) {
	scope := req.StrategyID
	started := utils.TimeNow()

	s.metrics.RunsInProgress.WithLabelValues(kindOptimization).Inc()
	defer s.metrics.RunsInProgress.WithLabelValues(kindOptimization).Dec()

	req.Tracker = tracker
	req.OnResult = func(r dto.RankedResult) {
		outcome := "ok"
		if r.Failed() {
			outcome = "failed"
		}
		s.metrics.Evaluations.WithLabelValues(scope, outcome).Inc()
	}

	var result *dto.OptimizationResult
	err := utils.SafeCall(func() error {
		var runErr error
		result, runErr = s.optimizer.Run(ctx, req)
		return runErr
	})
	if err != nil {
		s.board.finish(scope, dto.RunStateFailed, nil, err)
		s.metrics.ObserveRun(kindOptimization, string(dto.RunStateFailed), elapsedSince(started))
		s.log.ErrorContext(ctx, "Optimization failed",
			logger.StringField("strategy", scope),
			logger.ErrorField(err),
		)
		notify(s.log, s.notifier, telegram.NewMessage("Optimization failed").
			KV("strategy", scope).
			KV("error", err.Error()))
		return nil, err
	}

	s.persist(ctx, result)

	state := dto.RunStateCompleted
	if result.Status == dto.OptimizationNoValidParameters {
		state = dto.RunStateNoValidParameters
	}
	s.board.finish(scope, state, result, nil)
	s.metrics.ObserveRun(kindOptimization, string(state), elapsedSince(started))

	msg := telegram.NewMessage("Optimization finished").
		KV("strategy", scope).
		KV("symbol", result.Symbol).
		KV("status", result.Status).
		KV("combinations", result.TotalCombinations).
		KV("failed", result.FailedCombinations)
	if state == dto.RunStateCompleted {
		msg.KV("best_params", result.BestParams.Key()).
			KV(result.Metric, fmt.Sprintf("%.4f", result.BestValue))
		if result.OptimizedPerformance != nil {
			msg.KV("total_return", utils.FormatPercentage(result.OptimizedPerformance.TotalReturn))
		}
	}
	notify(s.log, s.notifier, msg)

	return result, nil
}

// persist stores the run and moves the latest pointer in one transaction.
// Failures are logged and counted; the result stays readable from memory.
func (s *optimizationService) persist(ctx context.Context, result *dto.OptimizationResult) {
	run, err := model.NewOptimizationRun(result)
	if err == nil {
		err = s.uow.Run(ctx, func(opts ...utils.DBOption) error {
			if err := s.runRepo.Create(ctx, run, opts...); err != nil {
				return err
			}
			return s.latestRepo.Upsert(ctx, &model.LatestRun{
				Kind:  model.RunKindOptimization,
				Scope: result.StrategyID,
				RunID: run.ID,
			}, opts...)
		})
	}
	if err != nil {
		s.metrics.PersistenceFailures.WithLabelValues(kindOptimization).Inc()
		s.log.ErrorContextWithAlert(ctx, "Failed to persist optimization run",
			logger.StringField("strategy", result.StrategyID),
			logger.ErrorField(apperror.Persistence("%v", err)),
		)
		return
	}
	result.RunID = run.ID
}

func (s *optimizationService) Status(strategyID string) dto.RunStatus {
	return s.board.snapshot(strategyID)
}

// Result returns the latest finished run of strategyID. It fails with
// ErrInProgress while a run is active and ErrNotFound when none exists.
func (s *optimizationService) Result(ctx context.Context, strategyID string) (*dto.OptimizationResult, error) {
	if s.board.inProgress(strategyID) {
		return nil, fmt.Errorf("optimization of %s: %w", strategyID, apperror.ErrInProgress)
	}
	return s.resolve(ctx, strategyID)
}

// resolve prefers the in-memory result when it is newer than the stored one.
func (s *optimizationService) resolve(ctx context.Context, strategyID string) (*dto.OptimizationResult, error) {
	stored, err := s.latest(ctx, strategyID)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to read latest optimization run",
			logger.StringField("strategy", strategyID),
			logger.ErrorField(err),
		)
	}

	cached, _ := s.board.lastResult(strategyID).(*dto.OptimizationResult)
	if cached != nil && (stored == nil || cached.CompletedAt.After(stored.CompletedAt)) {
		return cached, nil
	}
	if stored != nil {
		return stored, nil
	}
	if err != nil {
		return nil, apperror.Persistence("optimization result of %s: %v", strategyID, err)
	}
	return nil, fmt.Errorf("optimization result of %s: %w", strategyID, apperror.ErrNotFound)
}

func (s *optimizationService) latest(ctx context.Context, strategyID string) (*dto.OptimizationResult, error) {
	pointer, err := s.latestRepo.Get(ctx, model.RunKindOptimization, strategyID)
	if err != nil || pointer == nil {
		return nil, err
	}
	run, err := s.runRepo.FindByID(ctx, pointer.RunID)
	if err != nil || run == nil {
		return nil, err
	}
	return run.ToDTO()
}

// OptimizedParams serves the weighting engine: best params of the latest
// finished run, or false when there is none or it found no valid parameters.
// A run in progress does not hide the previous one.
func (s *optimizationService) OptimizedParams(ctx context.Context, strategyID string) (dto.Params, bool) {
	result, err := s.resolve(ctx, strategyID)
	if err != nil || result.Status != dto.OptimizationCompleted || len(result.BestParams) == 0 {
		return nil, false
	}
	return result.BestParams.Clone(), true
}
