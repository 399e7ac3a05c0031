package weighting

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang-quant/internal/backtest"
	"golang-quant/internal/dto"
	"golang-quant/internal/strategy"
	"golang-quant/pkg/apperror"
	"golang-quant/pkg/cache"
	"golang-quant/pkg/logger"
	"golang-quant/pkg/metrics"
	"golang-quant/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// ParamsResolver looks up the best parameters of the most recent completed
// optimization of a strategy.
type ParamsResolver interface {
	OptimizedParams(ctx context.Context, strategyID string) (dto.Params, bool)
}

type Config struct {
	BatchSize    int
	BatchTimeout time.Duration
	Workers      int
	Epsilon      float64
	ArtifactTTL  time.Duration
}

type Request struct {
	Assets        map[string]dto.PriceSeries
	Variants      []dto.StrategyVariant
	GoalMetric    string
	LookbackYears int
	Workers       int
	Simulation    backtest.Options
}

type Engine struct {
	registry *strategy.Registry
	resolver ParamsResolver
	cache    cache.Cache
	metrics  *metrics.Registry
	log      *logger.Logger
	cfg      Config

	// evaluateAsset is swapped in tests to inject slow or crashing workers.
	evaluateAsset func(job assetJob) assetOutcome
}

// NewEngine builds the weighting engine. resolver, artifacts and m may be nil.
func NewEngine(
	registry *strategy.Registry,
	resolver ParamsResolver,
	artifacts cache.Cache,
	m *metrics.Registry,
	log *logger.Logger,
	cfg Config,
) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = 1e-6
	}
	e := &Engine{
		registry: registry,
		resolver: resolver,
		cache:    artifacts,
		metrics:  m,
		log:      log,
		cfg:      cfg,
	}
	e.evaluateAsset = e.evaluate
	return e
}

type candidate struct {
	variant dto.StrategyVariant
	params  dto.Params
}

type assetJob struct {
	asset      string
	series     dto.PriceSeries
	candidates []candidate
	lookback   int
	opts       backtest.Options
}

type pairResult struct {
	metrics *dto.PerformanceMetrics
	err     error
}

type assetOutcome struct {
	pairs   []pairResult
	skipErr error
}

// ComputeWeights runs every strategy variant over every asset and turns the
// scores into per-asset weights.
func (e *Engine) ComputeWeights(ctx context.Context, req Request) (*dto.WeightingResult, error) {
	startedAt := utils.TimeNow()

	goal := req.GoalMetric
	if goal == "" {
		goal = dto.MetricSharpeRatio
	}
	if goal != dto.GoalCustom && !backtest.IsKnownMetric(goal) {
		return nil, apperror.Data("unknown goal metric %q", goal)
	}
	if len(req.Assets) == 0 {
		return nil, apperror.Data("no assets to weight")
	}
	if len(req.Variants) == 0 {
		return nil, apperror.Data("no strategy variants to weight")
	}

	candidates, err := e.resolveCandidates(ctx, req.Variants)
	if err != nil {
		return nil, err
	}

	assets := make([]string, 0, len(req.Assets))
	for asset := range req.Assets {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	workers := req.Workers
	if workers <= 0 {
		workers = e.cfg.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	result := &dto.WeightingResult{
		GoalMetric:    goal,
		LookbackYears: req.LookbackYears,
		Weights:       make(map[string][]dto.WeightEntry, len(assets)),
		Skipped:       make(map[string]string),
		StartedAt:     startedAt,
	}

	for start := 0; start < len(assets); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(assets))

		jobs := make([]assetJob, 0, end-start)
		for _, asset := range assets[start:end] {
			jobs = append(jobs, assetJob{
				asset:      asset,
				series:     req.Assets[asset],
				candidates: candidates,
				lookback:   req.LookbackYears,
				opts:       req.Simulation,
			})
		}

		outcomes, fellBack := e.runBatch(ctx, jobs, workers)
		if fellBack {
			result.FallbackBatches++
		}

		for _, job := range jobs {
			out := outcomes[job.asset]
			if out.skipErr != nil {
				result.Skipped[job.asset] = out.skipErr.Error()
				continue
			}
			result.Weights[job.asset] = e.weigh(job, out, goal)
		}
	}

	result.CompletedAt = utils.TimeNow()
	e.log.InfoContext(ctx, "Weighting run completed",
		logger.IntField("assets", len(result.Weights)),
		logger.IntField("skipped", len(result.Skipped)),
		logger.IntField("fallback_batches", result.FallbackBatches),
		logger.DurationField("elapsed", result.CompletedAt.Sub(startedAt)),
	)
	return result, nil
}

func (e *Engine) resolveCandidates(ctx context.Context, variants []dto.StrategyVariant) ([]candidate, error) {
	out := make([]candidate, 0, len(variants))
	for _, v := range variants {
		params, err := e.registry.Defaults(v.StrategyID)
		if err != nil {
			return nil, err
		}
		if v.Variant == dto.VariantOptimized && e.resolver != nil {
			if best, ok := e.resolver.OptimizedParams(ctx, v.StrategyID); ok {
				params = params.Merge(best)
			} else {
				e.log.DebugContext(ctx, "No optimization result, using default parameters",
					logger.StringField("strategy", v.StrategyID))
			}
		}
		out = append(out, candidate{variant: v, params: params})
	}
	return out, nil
}

// runBatch evaluates jobs in parallel under the batch timeout. Assets that
// did not finish, because a worker crashed or time ran out, are evaluated
// again sequentially. Results of workers that finish after the batch gave up
// on them are dropped.
func (e *Engine) runBatch(ctx context.Context, jobs []assetJob, workers int) (map[string]assetOutcome, bool) {
	var (
		mu       sync.Mutex
		closed   bool
		outcomes = make(map[string]assetOutcome, len(jobs))
	)

	batchCtx := ctx
	cancel := func() {}
	if e.cfg.BatchTimeout > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, e.cfg.BatchTimeout)
	}
	defer cancel()

	g, gctx := errgroup.WithContext(batchCtx)
	g.SetLimit(workers)

	done := make(chan error, 1)
	go func() {
		for _, job := range jobs {
			job := job
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				var out assetOutcome
				if err := utils.SafeCall(func() error {
					out = e.evaluateAsset(job)
					return nil
				}); err != nil {
					return apperror.Concurrency("asset %s: %v", job.asset, err)
				}

				mu.Lock()
				defer mu.Unlock()
				if !closed {
					outcomes[job.asset] = out
				}
				return nil
			})
		}
		done <- g.Wait()
	}()

	var batchErr error
	select {
	case batchErr = <-done:
	case <-batchCtx.Done():
		batchErr = apperror.Concurrency("batch timed out: %v", batchCtx.Err())
	}

	mu.Lock()
	closed = true
	mu.Unlock()

	if batchErr == nil && len(outcomes) == len(jobs) {
		return outcomes, false
	}

	reason := "error"
	if errors.Is(batchErr, context.DeadlineExceeded) || errors.Is(batchCtx.Err(), context.DeadlineExceeded) {
		reason = "timeout"
	}
	if e.metrics != nil {
		e.metrics.BatchFallbacks.WithLabelValues(reason).Inc()
	}
	e.log.WarnContext(ctx, "Weighting batch failed, retrying sequentially",
		logger.StringField("reason", reason),
		logger.ErrorField(batchErr),
		logger.IntField("completed", len(outcomes)),
		logger.IntField("batch_size", len(jobs)),
	)

	for _, job := range jobs {
		if _, ok := outcomes[job.asset]; ok {
			continue
		}
		var out assetOutcome
		if err := utils.SafeCall(func() error {
			out = e.evaluateAsset(job)
			return nil
		}); err != nil {
			out = assetOutcome{skipErr: apperror.Concurrency("asset %s: %v", job.asset, err)}
		}
		outcomes[job.asset] = out
	}
	return outcomes, true
}

func (e *Engine) evaluate(job assetJob) assetOutcome {
	series := backtest.Lookback(job.series, job.lookback)
	if err := backtest.ValidateSeries(series); err != nil {
		return assetOutcome{skipErr: err}
	}

	pairs := make([]pairResult, len(job.candidates))
	for i, c := range job.candidates {
		key := artifactKey(job.asset, c, job.lookback, series, job.opts)
		if m, ok := e.cachedMetrics(key); ok {
			pairs[i] = pairResult{metrics: &m}
			continue
		}

		m, err := e.simulate(series, c, job.opts)
		if err != nil {
			pairs[i] = pairResult{err: err}
			continue
		}
		if e.cache != nil {
			e.cache.Set(key, *m, e.cfg.ArtifactTTL)
		}
		pairs[i] = pairResult{metrics: m}
	}
	return assetOutcome{pairs: pairs}
}

func (e *Engine) simulate(series dto.PriceSeries, c candidate, opts backtest.Options) (*dto.PerformanceMetrics, error) {
	var out *dto.SimulationOutcome
	err := utils.SafeCall(func() error {
		s, err := e.registry.Build(c.variant.StrategyID, c.params)
		if err != nil {
			return err
		}
		signals, err := s.GenerateSignals(series)
		if err != nil {
			return err
		}
		out, err = backtest.Simulate(series, signals, opts)
		return err
	})
	if err != nil {
		if apperror.Kind(err) == nil {
			err = apperror.Strategy("%v", err)
		}
		return nil, err
	}
	return &out.Metrics, nil
}

func (e *Engine) cachedMetrics(key string) (dto.PerformanceMetrics, bool) {
	if e.cache == nil {
		return dto.PerformanceMetrics{}, false
	}
	m, ok := cache.GetFromCache[dto.PerformanceMetrics](e.cache, key)
	if e.metrics != nil {
		result := "miss"
		if ok {
			result = "hit"
		}
		e.metrics.ArtifactCacheLookups.WithLabelValues(result).Inc()
	}
	return m, ok
}

// artifactKey identifies one backtest: the asset, the strategy variant and
// its parameters, and the exact window it ran over.
func artifactKey(asset string, c candidate, lookback int, series dto.PriceSeries, opts backtest.Options) string {
	return fmt.Sprintf("weighting:%s|%s|%s|%d|%s|%s|%d|%g|%g|%s",
		asset,
		c.variant.String(),
		c.params.Key(),
		lookback,
		series.FirstDate().Format(time.DateOnly),
		series.LastDate().Format(time.DateOnly),
		series.Len(),
		opts.InitialCapital,
		opts.Commission,
		opts.Mode,
	)
}

func (e *Engine) weigh(job assetJob, out assetOutcome, goal string) []dto.WeightEntry {
	all := make([]*dto.PerformanceMetrics, len(out.pairs))
	for i, p := range out.pairs {
		all[i] = p.metrics
	}
	scores := rawScores(all, goal)
	weights := Normalize(scores, e.cfg.Epsilon)

	entries := make([]dto.WeightEntry, len(job.candidates))
	for i, c := range job.candidates {
		entries[i] = dto.WeightEntry{
			Asset:    job.asset,
			Strategy: c.variant.StrategyID,
			Variant:  c.variant.Variant,
			Params:   c.params.Clone(),
			Weight:   weights[i],
			Score:    scores[i],
			Metrics:  out.pairs[i].metrics,
		}
		if err := out.pairs[i].err; err != nil {
			entries[i].Error = err.Error()
		}
	}
	return entries
}
