package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang-quant/config"
	"golang-quant/internal/backtest"
	"golang-quant/internal/dto"
	"golang-quant/internal/model"
	"golang-quant/internal/repository"
	"golang-quant/internal/strategy"
	"golang-quant/internal/weighting"
	"golang-quant/pkg/apperror"
	"golang-quant/pkg/cache"
	"golang-quant/pkg/logger"
	"golang-quant/pkg/metrics"
	"golang-quant/pkg/telegram"
	"golang-quant/pkg/utils"

	"golang.org/x/sync/errgroup"
)

const (
	kindWeighting = "weighting"
	// weightingScope is the single scope of weighting runs.
	weightingScope = "global"

	priceFetchConcurrency = 4
	signalRange           = "2y"
)

type WeightingService interface {
	Submit(ctx context.Context, req dto.WeightsRequest) (*dto.SubmitResponse, error)
	ComputeWeights(ctx context.Context, req dto.WeightsRequest) (*dto.WeightingResult, error)
	Status() dto.RunStatus
	Latest(ctx context.Context) (*dto.WeightingResult, error)
	AggregateSignal(ctx context.Context, asset string) (*dto.AssetSignal, error)
}

type weightingService struct {
	cfg        *config.Config
	log        *logger.Logger
	registry   *strategy.Registry
	engine     *weighting.Engine
	prices     repository.PriceRepository
	runRepo    repository.WeightingRepository
	latestRepo repository.LatestRunRepository
	uow        repository.UnitOfWork
	tasks      TaskRunner
	notifier   telegram.Notifier
	metrics    *metrics.Registry
	board      *runBoard
}

type weightingPlan struct {
	assets   []string
	variants []dto.StrategyVariant
	goal     string
	lookback int
	workers  int
}

func NewWeightingService(
	cfg *config.Config,
	log *logger.Logger,
	registry *strategy.Registry,
	repo *repository.Repository,
	resolver weighting.ParamsResolver,
	artifacts cache.Cache,
	tasks TaskRunner,
	notifier telegram.Notifier,
	m *metrics.Registry,
) WeightingService {
	engine := weighting.NewEngine(registry, resolver, artifacts, m, log, weighting.Config{
		BatchSize:    cfg.Weighting.BatchSize,
		BatchTimeout: cfg.Weighting.BatchTimeout,
		Workers:      cfg.Weighting.Workers,
		Epsilon:      cfg.Weighting.Epsilon,
		ArtifactTTL:  cfg.Weighting.ArtifactTTL,
	})

	return &weightingService{
		cfg:        cfg,
		log:        log,
		registry:   registry,
		engine:     engine,
		prices:     repo.PriceRepo,
		runRepo:    repo.WeightingRepo,
		latestRepo: repo.LatestRunRepo,
		uow:        repo.UnitOfWork,
		tasks:      tasks,
		notifier:   notifier,
		metrics:    m,
		board:      newRunBoard(),
	}
}

func (s *weightingService) Submit(ctx context.Context, req dto.WeightsRequest) (*dto.SubmitResponse, error) {
	plan, err := s.plan(req)
	if err != nil {
		return nil, err
	}
	if err := s.board.begin(weightingScope, nil); err != nil {
		return nil, fmt.Errorf("weighting: %w", err)
	}

	taskID := s.tasks.Submit(kindWeighting, func(ctx context.Context) (interface{}, error) {
		return s.execute(ctx, plan)
	})
	s.board.attachTask(weightingScope, taskID)

	s.log.InfoContext(ctx, "Weighting submitted",
		logger.StringField("task_id", taskID),
		logger.IntField("assets", len(plan.assets)),
		logger.IntField("variants", len(plan.variants)),
	)
	return &dto.SubmitResponse{TaskID: taskID, Scope: weightingScope}, nil
}

func (s *weightingService) ComputeWeights(ctx context.Context, req dto.WeightsRequest) (*dto.WeightingResult, error) {
	plan, err := s.plan(req)
	if err != nil {
		return nil, err
	}
	if err := s.board.begin(weightingScope, nil); err != nil {
		return nil, fmt.Errorf("weighting: %w", err)
	}
	return s.execute(ctx, plan)
}

// plan fills req from config and rejects unknown strategies and goals.
func (s *weightingService) plan(req dto.WeightsRequest) (weightingPlan, error) {
	p := weightingPlan{
		goal:     req.GoalMetric,
		lookback: req.LookbackYears,
		workers:  req.Workers,
	}
	if p.goal == "" {
		p.goal = s.cfg.Weighting.GoalMetric
	}
	if p.goal != dto.GoalCustom && !backtest.IsKnownMetric(p.goal) {
		return p, apperror.Data("unknown goal metric %q", p.goal)
	}
	if p.lookback == 0 {
		p.lookback = s.cfg.Weighting.LookbackYears
	}

	assets := req.Assets
	if len(assets) == 0 {
		assets = s.cfg.Weighting.Assets
	}
	seen := make(map[string]bool)
	for _, a := range assets {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		p.assets = append(p.assets, a)
	}
	if len(p.assets) == 0 {
		return p, apperror.Data("no assets to weight")
	}

	strategies := req.Strategies
	if len(strategies) == 0 {
		strategies = s.cfg.Weighting.Strategies
	}
	if len(strategies) == 0 {
		for _, info := range s.registry.List() {
			strategies = append(strategies, info.ID)
		}
	}
	for _, raw := range strategies {
		v, err := dto.ParseStrategyVariant(raw)
		if err != nil {
			return p, apperror.Data("%v", err)
		}
		if _, err := s.registry.Get(v.StrategyID); err != nil {
			return p, err
		}
		p.variants = append(p.variants, v)
	}
	return p, nil
}

func (s *weightingService) execute(ctx context.Context, plan weightingPlan) (*dto.WeightingResult, error) {
	started := utils.TimeNow()

	s.metrics.RunsInProgress.WithLabelValues(kindWeighting).Inc()
	defer s.metrics.RunsInProgress.WithLabelValues(kindWeighting).Dec()

	var result *dto.WeightingResult
	err := utils.SafeCall(func() error {
		assets, skipped := s.loadAssets(ctx, plan)
		if len(assets) == 0 {
			return apperror.Data("no price data for any of %d assets", len(plan.assets))
		}

		var runErr error
		result, runErr = s.engine.ComputeWeights(ctx, weighting.Request{
			Assets:        assets,
			Variants:      plan.variants,
			GoalMetric:    plan.goal,
			LookbackYears: plan.lookback,
			Workers:       plan.workers,
			Simulation: backtest.Options{
				InitialCapital: s.cfg.Simulation.InitialCapital,
				Commission:     s.cfg.Simulation.Commission,
			},
		})
		if runErr != nil {
			return runErr
		}
		for asset, reason := range skipped {
			if result.Skipped == nil {
				result.Skipped = make(map[string]string)
			}
			result.Skipped[asset] = reason
		}
		return nil
	})
	if err != nil {
		s.board.finish(weightingScope, dto.RunStateFailed, nil, err)
		s.metrics.ObserveRun(kindWeighting, string(dto.RunStateFailed), elapsedSince(started))
		s.log.ErrorContext(ctx, "Weighting failed", logger.ErrorField(err))
		notify(s.log, s.notifier, telegram.NewMessage("Weighting failed").KV("error", err.Error()))
		return nil, err
	}

	s.persist(ctx, result)
	s.board.finish(weightingScope, dto.RunStateCompleted, result, nil)
	s.metrics.ObserveRun(kindWeighting, string(dto.RunStateCompleted), elapsedSince(started))

	notify(s.log, s.notifier, telegram.NewMessage("Weighting finished").
		KV("goal", result.GoalMetric).
		KV("assets", len(result.Weights)).
		KV("skipped", len(result.Skipped)).
		KV("fallback_batches", result.FallbackBatches))

	return result, nil
}

// loadAssets fetches every asset; failures are returned as skip reasons.
func (s *weightingService) loadAssets(ctx context.Context, plan weightingPlan) (map[string]dto.PriceSeries, map[string]string) {
	rangeStr := s.cfg.MarketData.Range
	if plan.lookback > 0 {
		rangeStr = fmt.Sprintf("%dy", plan.lookback+1)
	}

	var (
		mu      sync.Mutex
		assets  = make(map[string]dto.PriceSeries, len(plan.assets))
		skipped = make(map[string]string)
	)

	g := new(errgroup.Group)
	g.SetLimit(priceFetchConcurrency)
	for _, asset := range plan.assets {
		asset := asset
		g.Go(func() error {
			series, err := loadSeries(ctx, s.prices, asset, nil, rangeStr)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.WarnContext(ctx, "Failed to load asset prices",
					logger.StringField("asset", asset),
					logger.ErrorField(err),
				)
				skipped[asset] = err.Error()
				return nil
			}
			assets[asset] = series
			return nil
		})
	}
	_ = g.Wait()

	return assets, skipped
}

func (s *weightingService) persist(ctx context.Context, result *dto.WeightingResult) {
	run, err := model.NewWeightingRun(result)
	if err == nil {
		err = s.uow.Run(ctx, func(opts ...utils.DBOption) error {
			if err := s.runRepo.Create(ctx, run, opts...); err != nil {
				return err
			}
			return s.latestRepo.Upsert(ctx, &model.LatestRun{
				Kind:  model.RunKindWeighting,
				Scope: weightingScope,
				RunID: run.ID,
			}, opts...)
		})
	}
	if err != nil {
		s.metrics.PersistenceFailures.WithLabelValues(kindWeighting).Inc()
		s.log.ErrorContextWithAlert(ctx, "Failed to persist weighting run",
			logger.ErrorField(apperror.Persistence("%v", err)),
		)
		return
	}
	result.RunID = run.ID
}

func (s *weightingService) Status() dto.RunStatus {
	return s.board.snapshot(weightingScope)
}

// Latest returns the most recent finished weighting run, even while a new one is running.
func (s *weightingService) Latest(ctx context.Context) (*dto.WeightingResult, error) {
	stored, err := s.stored(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to read latest weighting run", logger.ErrorField(err))
	}

	cached, _ := s.board.lastResult(weightingScope).(*dto.WeightingResult)
	if cached != nil && (stored == nil || cached.CompletedAt.After(stored.CompletedAt)) {
		return cached, nil
	}
	if stored != nil {
		return stored, nil
	}
	if err != nil {
		return nil, apperror.Persistence("latest weighting run: %v", err)
	}
	return nil, fmt.Errorf("weighting run: %w", apperror.ErrNotFound)
}

func (s *weightingService) stored(ctx context.Context) (*dto.WeightingResult, error) {
	pointer, err := s.latestRepo.Get(ctx, model.RunKindWeighting, weightingScope)
	if err != nil || pointer == nil {
		return nil, err
	}
	run, err := s.runRepo.FindByID(ctx, pointer.RunID)
	if err != nil || run == nil {
		return nil, err
	}
	return run.ToDTO()
}

// AggregateSignal combines the current stance of every weighted strategy of asset.
func (s *weightingService) AggregateSignal(ctx context.Context, asset string) (*dto.AssetSignal, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))

	latest, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	entries, ok := latest.Weights[asset]
	if !ok || len(entries) == 0 {
		return nil, fmt.Errorf("weights for %s: %w", asset, apperror.ErrNotFound)
	}

	series, err := loadSeries(ctx, s.prices, asset, nil, signalRange)
	if err != nil {
		return nil, err
	}

	out := &dto.AssetSignal{
		Asset: asset,
		RunID: latest.RunID,
		AsOf:  series.LastDate().Format(utils.DateLayout),
	}
	stances := make(map[dto.StrategyVariant]dto.Signal, len(entries))
	for _, e := range entries {
		component := dto.SignalComponent{Strategy: e.Strategy, Variant: e.Variant, Weight: e.Weight}
		stance, err := s.stance(e, series)
		if err != nil {
			component.Error = err.Error()
		} else {
			component.Signal = stance
			stances[dto.StrategyVariant{StrategyID: e.Strategy, Variant: e.Variant}] = stance
		}
		out.Components = append(out.Components, component)
	}
	sort.SliceStable(out.Components, func(i, j int) bool {
		return out.Components[i].Weight > out.Components[j].Weight
	})

	out.Score = weighting.CombineSignals(entries, stances)
	switch {
	case out.Score > 0:
		out.Action = dto.SignalBuy
	case out.Score < 0:
		out.Action = dto.SignalSell
	default:
		out.Action = dto.SignalHold
	}
	return out, nil
}

// stance is the last non-hold signal of the strategy, hold when it never traded.
func (s *weightingService) stance(e dto.WeightEntry, series dto.PriceSeries) (dto.Signal, error) {
	strat, err := s.registry.Build(e.Strategy, e.Params)
	if err != nil {
		return dto.SignalHold, err
	}
	var signals []dto.Signal
	err = utils.SafeCall(func() error {
		var genErr error
		signals, genErr = strat.GenerateSignals(series)
		return genErr
	})
	if err != nil {
		return dto.SignalHold, err
	}
	for i := len(signals) - 1; i >= 0; i-- {
		if signals[i] != dto.SignalHold {
			return signals[i], nil
		}
	}
	return dto.SignalHold, nil
}
