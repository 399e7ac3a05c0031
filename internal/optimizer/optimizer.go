package optimizer

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"golang-quant/internal/backtest"
	"golang-quant/internal/dto"
	"golang-quant/internal/strategy"
	"golang-quant/pkg/apperror"
	"golang-quant/pkg/logger"
	"golang-quant/pkg/utils"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	MaxCombinations int
	Workers         int
	TopN            int
	Metric          string
}

type Request struct {
	Series     dto.PriceSeries
	StrategyID string
	Grid       dto.ParameterGrid
	Metric     string
	Workers    int
	Start      time.Time
	End        time.Time
	Simulation backtest.Options

	// Tracker, when set, is fed as combinations finish.
	Tracker *Tracker
	// OnResult is called from worker goroutines for every evaluation.
	OnResult func(dto.RankedResult)
}

type Optimizer struct {
	registry *strategy.Registry
	log      *logger.Logger
	cfg      Config
}

func New(registry *strategy.Registry, log *logger.Logger, cfg Config) *Optimizer {
	if cfg.Metric == "" {
		cfg.Metric = dto.MetricSharpeRatio
	}
	return &Optimizer{registry: registry, log: log, cfg: cfg}
}

// Run evaluates every combination of req.Grid and ranks them by req.Metric.
// Per-combination failures are kept with a sentinel score; if all of them
// fail the result carries OptimizationNoValidParameters and a nil error.
// Errors are returned only for bad top-level input.
func (o *Optimizer) Run(ctx context.Context, req Request) (*dto.OptimizationResult, error) {
	startedAt := utils.TimeNow()

	metric := req.Metric
	if metric == "" {
		metric = o.cfg.Metric
	}
	if !backtest.IsKnownMetric(metric) {
		return nil, apperror.Data("unknown metric %q", metric)
	}
	lower := backtest.LowerIsBetter(metric)

	defaults, err := o.registry.Defaults(req.StrategyID)
	if err != nil {
		return nil, err
	}
	for name := range req.Grid {
		if _, ok := defaults[name]; !ok {
			return nil, apperror.Strategy("strategy %q has no parameter %q", req.StrategyID, name)
		}
	}

	series := backtest.FilterRange(req.Series, req.Start, req.End)
	if err := backtest.ValidateSeries(series); err != nil {
		return nil, fmt.Errorf("insufficient data for %s: %w", req.StrategyID, err)
	}

	total, err := CountCombinations(req.Grid, o.cfg.MaxCombinations)
	if err != nil {
		return nil, err
	}
	combos := Enumerate(req.Grid)

	workers := req.Workers
	if workers <= 0 {
		workers = o.cfg.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	tracker := req.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}
	tracker.start(total, lower)
	defer tracker.finish()

	o.log.InfoContext(ctx, "Starting parameter search",
		logger.StringField("strategy", req.StrategyID),
		logger.StringField("metric", metric),
		logger.IntField("combinations", total),
		logger.IntField("workers", workers),
		logger.IntField("bars", series.Len()),
	)

	results := make([]dto.RankedResult, len(combos))
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, combo := range combos {
		i, combo := i, combo
		g.Go(func() error {
			r := o.evaluate(series, req.StrategyID, defaults.Merge(combo), metric, req.Simulation)
			r.Index = i
			results[i] = r
			tracker.Record(r.Score, r.Failed())
			if req.OnResult != nil {
				req.OnResult(r)
			}
			return nil
		})
	}
	_ = g.Wait()

	rank(results, lower)

	result := &dto.OptimizationResult{
		StrategyID:        req.StrategyID,
		Symbol:            series.Symbol,
		Metric:            metric,
		DefaultParams:     defaults,
		TotalCombinations: total,
		StartDate:         series.FirstDate(),
		EndDate:           series.LastDate(),
		StartedAt:         startedAt,
	}
	for _, r := range results {
		if r.Failed() {
			result.FailedCombinations++
		}
	}

	if result.FailedCombinations == total {
		result.Status = dto.OptimizationNoValidParameters
		result.RankedResults = o.topN(results)
		result.CompletedAt = utils.TimeNow()
		o.log.WarnContext(ctx, "No valid parameters found",
			logger.StringField("strategy", req.StrategyID),
			logger.StringField("first_error", results[0].Error),
		)
		return result, nil
	}

	best := results[0]
	result.Status = dto.OptimizationCompleted
	result.BestParams = best.Params
	result.BestValue = best.Score
	result.OptimizedPerformance = best.Metrics
	result.RankedResults = o.topN(results)

	baseline := o.evaluate(series, req.StrategyID, defaults, metric, req.Simulation)
	if baseline.Failed() {
		o.log.WarnContext(ctx, "Default parameters failed, skipping improvement",
			logger.StringField("strategy", req.StrategyID),
			logger.StringField("error", baseline.Error),
		)
	} else {
		result.DefaultPerformance = baseline.Metrics
		result.ImprovementByMetric = Improvement(*best.Metrics, *baseline.Metrics)
	}

	result.CompletedAt = utils.TimeNow()
	o.log.InfoContext(ctx, "Parameter search completed",
		logger.StringField("strategy", req.StrategyID),
		logger.StringField("best_params", best.Params.Key()),
		logger.Float64Field("best_value", best.Score),
		logger.IntField("failed", result.FailedCombinations),
		logger.DurationField("elapsed", result.CompletedAt.Sub(startedAt)),
	)
	return result, nil
}

func (o *Optimizer) evaluate(series dto.PriceSeries, strategyID string, params dto.Params, metric string, opts backtest.Options) dto.RankedResult {
	started := time.Now()
	r := dto.RankedResult{Params: params}

	var outcome *dto.SimulationOutcome
	err := utils.SafeCall(func() error {
		s, err := o.registry.Build(strategyID, params)
		if err != nil {
			return err
		}
		signals, err := s.GenerateSignals(series)
		if err != nil {
			return err
		}
		outcome, err = backtest.Simulate(series, signals, opts)
		return err
	})
	r.Duration = time.Since(started)

	if err != nil {
		if apperror.Kind(err) == nil {
			err = apperror.Strategy("%v", err)
		}
		r.Error = err.Error()
		r.Score = Sentinel(metric)
		return r
	}

	metrics := outcome.Metrics
	r.Metrics = &metrics
	score, _ := metrics.Value(metric)
	if math.IsNaN(score) {
		score = Sentinel(metric)
	}
	r.Score = score
	return r
}

func (o *Optimizer) topN(results []dto.RankedResult) []dto.RankedResult {
	if o.cfg.TopN > 0 && len(results) > o.cfg.TopN {
		return results[:o.cfg.TopN]
	}
	return results
}

// Sentinel is the score given to a combination that could not be evaluated:
// it always ranks last.
func Sentinel(metric string) float64 {
	if backtest.LowerIsBetter(metric) {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// rank sorts best first and breaks ties by combination index, so the order
// does not depend on which worker finished first.
func rank(results []dto.RankedResult, lowerIsBetter bool) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			if lowerIsBetter {
				return a.Score < b.Score
			}
			return a.Score > b.Score
		}
		return a.Index < b.Index
	})
	for i := range results {
		results[i].Rank = i + 1
	}
}

// Improvement is the percentage change of optimized over baseline for every
// metric, with the sign flipped where lower is better.
func Improvement(optimized, baseline dto.PerformanceMetrics) map[string]float64 {
	out := make(map[string]float64, len(dto.MetricNames))
	for _, name := range dto.MetricNames {
		opt, _ := optimized.Value(name)
		def, _ := baseline.Value(name)

		var pct float64
		switch {
		case def != 0:
			pct = (opt - def) / math.Abs(def) * 100
		case opt > 0:
			pct = 100
		case opt < 0:
			pct = -100
		}
		if backtest.LowerIsBetter(name) && pct != 0 {
			pct = -pct
		}
		out[name] = pct
	}
	return out
}
