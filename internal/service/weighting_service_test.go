package service

import (
	"context"
	"testing"

	"golang-quant/internal/dto"
	"golang-quant/internal/strategy"
	"golang-quant/pkg/apperror"
	"golang-quant/pkg/cache"
	"golang-quant/pkg/logger"
	"golang-quant/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weightingFixture struct {
	svc          WeightingService
	optimization OptimizationService
	repos        *testRepos
	tasks        *manualTasks
}

func newWeightingFixture() *weightingFixture {
	repos, repo := newTestRepos(wave("AAA", 400, 0.1), wave("BBB", 400, -0.1))
	cfg := testConfig()
	m := metrics.NewRegistry()
	registry := strategy.NewDefaultRegistry()
	tasks := &manualTasks{}

	optimization := NewOptimizationService(cfg, logger.NewNop(), registry, repo, tasks, &fakeNotifier{}, m)
	svc := NewWeightingService(cfg, logger.NewNop(), registry, repo, optimization, cache.NewCache(0, 0), tasks, &fakeNotifier{}, m)
	return &weightingFixture{svc: svc, optimization: optimization, repos: repos, tasks: tasks}
}

func TestWeightingService_ComputeWeights(t *testing.T) {
	f := newWeightingFixture()
	ctx := context.Background()

	result, err := f.svc.ComputeWeights(ctx, dto.WeightsRequest{
		Assets:     []string{"aaa", "BBB", "ZZZ", "AAA"},
		Strategies: []string{"sma_crossover", "rsi", "buy_and_hold"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RunID)
	assert.Len(t, result.Weights, 2)
	assert.Contains(t, result.Skipped, "ZZZ")

	for asset, entries := range result.Weights {
		require.Len(t, entries, 3, asset)
		var sum float64
		for _, e := range entries {
			assert.GreaterOrEqual(t, e.Weight, 0.0)
			sum += e.Weight
		}
		assert.InDelta(t, 1.0, sum, 1e-9, asset)
	}

	latest, err := f.svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest.RunID)
	assert.Equal(t, result.Skipped, latest.Skipped)
	assert.Equal(t, dto.RunStateCompleted, f.svc.Status().State)
}

func TestWeightingService_UsesOptimizedParams(t *testing.T) {
	f := newWeightingFixture()
	ctx := context.Background()

	opt, err := f.optimization.Optimize(ctx, dto.OptimizeRequest{
		Symbol:   "AAA",
		Strategy: "sma_crossover",
		Grid:     dto.ParameterGrid{"short_window": {5, 10}, "long_window": {30}},
	})
	require.NoError(t, err)

	result, err := f.svc.ComputeWeights(ctx, dto.WeightsRequest{
		Assets:     []string{"AAA"},
		Strategies: []string{"sma_crossover:optimized", "rsi:optimized"},
	})
	require.NoError(t, err)

	entries := result.Weights["AAA"]
	require.Len(t, entries, 2)
	byStrategy := map[string]dto.WeightEntry{}
	for _, e := range entries {
		byStrategy[e.Strategy] = e
	}
	assert.Equal(t, opt.BestParams, byStrategy["sma_crossover"].Params)
	assert.Equal(t, dto.Params{"period": 14, "oversold": 30, "overbought": 70}, byStrategy["rsi"].Params, "falls back to defaults")
}

func TestWeightingService_AggregateSignal(t *testing.T) {
	f := newWeightingFixture()
	ctx := context.Background()

	_, err := f.svc.AggregateSignal(ctx, "AAA")
	assert.ErrorIs(t, err, apperror.ErrNotFound, "no run yet")

	_, err = f.svc.ComputeWeights(ctx, dto.WeightsRequest{
		Assets:     []string{"AAA"},
		Strategies: []string{"sma_crossover", "momentum", "buy_and_hold"},
	})
	require.NoError(t, err)

	signal, err := f.svc.AggregateSignal(ctx, "aaa")
	require.NoError(t, err)
	assert.Equal(t, "AAA", signal.Asset)
	assert.Equal(t, int64(1), signal.RunID)
	require.Len(t, signal.Components, 3)
	assert.GreaterOrEqual(t, signal.Score, -1.0)
	assert.LessOrEqual(t, signal.Score, 1.0)
	for i := 1; i < len(signal.Components); i++ {
		assert.GreaterOrEqual(t, signal.Components[i-1].Weight, signal.Components[i].Weight)
	}
	for _, c := range signal.Components {
		if c.Strategy == "buy_and_hold" {
			assert.Equal(t, dto.SignalBuy, c.Signal)
		}
	}
	switch {
	case signal.Score > 0:
		assert.Equal(t, dto.SignalBuy, signal.Action)
	case signal.Score < 0:
		assert.Equal(t, dto.SignalSell, signal.Action)
	default:
		assert.Equal(t, dto.SignalHold, signal.Action)
	}

	_, err = f.svc.AggregateSignal(ctx, "BBB")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestWeightingService_SubmitGuard(t *testing.T) {
	f := newWeightingFixture()
	ctx := context.Background()
	req := dto.WeightsRequest{Assets: []string{"AAA"}, Strategies: []string{"rsi"}}

	resp, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, weightingScope, resp.Scope)
	assert.True(t, f.svc.Status().InProgress)

	_, err = f.svc.Submit(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrAlreadyRunning)

	scheduler := NewSchedulerService(testConfig(), logger.NewNop(), f.svc)
	assert.NoError(t, scheduler.RefreshWeights(ctx), "a busy scope skips the refresh")

	for _, err := range f.tasks.release() {
		require.NoError(t, err)
	}
	assert.False(t, f.svc.Status().InProgress)

	latest, err := f.svc.Latest(ctx)
	require.NoError(t, err)
	assert.Contains(t, latest.Weights, "AAA")
}

func TestWeightingService_Failures(t *testing.T) {
	f := newWeightingFixture()
	ctx := context.Background()

	tests := []struct {
		name    string
		req     dto.WeightsRequest
		wantErr error
	}{
		{name: "unknown goal", req: dto.WeightsRequest{Assets: []string{"AAA"}, GoalMetric: "alpha"}, wantErr: apperror.ErrData},
		{name: "unknown strategy", req: dto.WeightsRequest{Assets: []string{"AAA"}, Strategies: []string{"nope"}}, wantErr: apperror.ErrNotFound},
		{name: "unknown variant", req: dto.WeightsRequest{Assets: []string{"AAA"}, Strategies: []string{"rsi:tuned"}}, wantErr: apperror.ErrData},
		{name: "no assets", req: dto.WeightsRequest{Strategies: []string{"rsi"}}, wantErr: apperror.ErrData},
		{name: "no data at all", req: dto.WeightsRequest{Assets: []string{"ZZZ"}, Strategies: []string{"rsi"}}, wantErr: apperror.ErrData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ComputeWeights(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, f.svc.Status().InProgress)
		})
	}

	_, err := f.svc.Latest(ctx)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSchedulerService_Start(t *testing.T) {
	f := newWeightingFixture()

	cfg := testConfig()
	cfg.Weighting.Cron = "not a cron"
	assert.NoError(t, NewSchedulerService(cfg, logger.NewNop(), f.svc).Start(), "no assets disables the refresh")

	cfg.Weighting.Assets = []string{"AAA"}
	cfg.Weighting.Cron = ""
	assert.NoError(t, NewSchedulerService(cfg, logger.NewNop(), f.svc).Start(), "empty cron disables the refresh")

	cfg.Weighting.Cron = "not a cron"
	assert.Error(t, NewSchedulerService(cfg, logger.NewNop(), f.svc).Start())

	cfg.Weighting.Cron = "0 22 * * 1-5"
	scheduler := NewSchedulerService(cfg, logger.NewNop(), f.svc)
	require.NoError(t, scheduler.Start())
	scheduler.Stop(context.Background())
}
