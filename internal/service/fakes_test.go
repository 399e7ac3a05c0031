package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang-quant/config"
	"golang-quant/internal/dto"
	"golang-quant/internal/model"
	"golang-quant/internal/repository"
	"golang-quant/pkg/apperror"
	"golang-quant/pkg/utils"
)

func wave(symbol string, n int, drift float64) dto.PriceSeries {
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	bars := make([]dto.PriceBar, n)
	for i := range bars {
		c := 100 + 8*math.Sin(float64(i)/5) + drift*float64(i)
		bars[i] = dto.PriceBar{Date: start.AddDate(0, 0, i), Close: c}
	}
	return dto.PriceSeries{Symbol: symbol, Bars: bars}
}

type fakePriceRepo struct {
	mu     sync.Mutex
	series map[string]dto.PriceSeries
	calls  []dto.GetPriceSeriesParam
}

func (f *fakePriceRepo) Get(_ context.Context, param dto.GetPriceSeriesParam) (*dto.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, param)
	s, ok := f.series[param.Symbol]
	if !ok {
		return nil, apperror.Data("unknown symbol %s", param.Symbol)
	}
	return &s, nil
}

type fakeOptimizationRepo struct {
	mu     sync.Mutex
	nextID int64
	runs   map[int64]model.OptimizationRun
}

func (f *fakeOptimizationRepo) Create(_ context.Context, run *model.OptimizationRun, _ ...utils.DBOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	run.ID = f.nextID
	if f.runs == nil {
		f.runs = make(map[int64]model.OptimizationRun)
	}
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeOptimizationRepo) FindByID(_ context.Context, id int64, _ ...utils.DBOption) (*model.OptimizationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (f *fakeOptimizationRepo) List(_ context.Context, _ string, _ int, _ ...utils.DBOption) ([]model.OptimizationRun, error) {
	return nil, nil
}

type fakeWeightingRepo struct {
	mu     sync.Mutex
	nextID int64
	runs   map[int64]model.WeightingRun
}

func (f *fakeWeightingRepo) Create(_ context.Context, run *model.WeightingRun, _ ...utils.DBOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	run.ID = f.nextID
	if f.runs == nil {
		f.runs = make(map[int64]model.WeightingRun)
	}
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeWeightingRepo) FindByID(_ context.Context, id int64, _ ...utils.DBOption) (*model.WeightingRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

type latestKey struct{ kind, scope string }

type fakeLatestRepo struct {
	mu     sync.Mutex
	latest map[latestKey]model.LatestRun
}

func (f *fakeLatestRepo) Upsert(_ context.Context, latest *model.LatestRun, _ ...utils.DBOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		f.latest = make(map[latestKey]model.LatestRun)
	}
	key := latestKey{latest.Kind, latest.Scope}
	if cur, ok := f.latest[key]; ok && cur.RunID > latest.RunID {
		return nil
	}
	f.latest[key] = *latest
	return nil
}

func (f *fakeLatestRepo) Get(_ context.Context, kind, scope string, _ ...utils.DBOption) (*model.LatestRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.latest[latestKey{kind, scope}]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// fakeUnitOfWork runs fn without a transaction, or fails when err is set.
type fakeUnitOfWork struct {
	err error
}

func (f *fakeUnitOfWork) Run(_ context.Context, fn func(opts ...utils.DBOption) error) error {
	if f.err != nil {
		return f.err
	}
	return fn()
}

var errDBDown = errors.New("connection refused")

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeNotifier) Alert(string) {}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// manualTasks holds submitted tasks until release is called.
type manualTasks struct {
	mu      sync.Mutex
	pending []TaskFunc
	ids     int
}

func (m *manualTasks) Submit(_ string, fn TaskFunc) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, fn)
	m.ids++
	return fmt.Sprintf("task-%d", m.ids)
}

func (m *manualTasks) Poll(string) (dto.TaskStatus, bool) {
	return dto.TaskStatus{}, false
}

func (m *manualTasks) release() []error {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	var errs []error
	for _, fn := range pending {
		_, err := fn(context.Background())
		errs = append(errs, err)
	}
	return errs
}

type testRepos struct {
	prices       *fakePriceRepo
	optimization *fakeOptimizationRepo
	weighting    *fakeWeightingRepo
	latest       *fakeLatestRepo
	uow          *fakeUnitOfWork
}

func newTestRepos(series ...dto.PriceSeries) (*testRepos, *repository.Repository) {
	r := &testRepos{
		prices:       &fakePriceRepo{series: make(map[string]dto.PriceSeries)},
		optimization: &fakeOptimizationRepo{},
		weighting:    &fakeWeightingRepo{},
		latest:       &fakeLatestRepo{},
		uow:          &fakeUnitOfWork{},
	}
	for _, s := range series {
		r.prices.series[s.Symbol] = s
	}
	return r, &repository.Repository{
		PriceRepo:        r.prices,
		OptimizationRepo: r.optimization,
		WeightingRepo:    r.weighting,
		LatestRunRepo:    r.latest,
		UnitOfWork:       r.uow,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Simulation: config.Simulation{InitialCapital: 10000, Commission: 0.001},
		Optimizer: config.Optimizer{
			MaxCombinations: 1000,
			Workers:         4,
			TopN:            5,
			Metric:          dto.MetricSharpeRatio,
		},
		Weighting: config.Weighting{
			BatchSize:     2,
			BatchTimeout:  time.Minute,
			Workers:       2,
			LookbackYears: 0,
			Epsilon:       1e-6,
			GoalMetric:    dto.MetricSharpeRatio,
			ArtifactTTL:   time.Minute,
		},
		MarketData: config.MarketData{Range: "5y"},
	}
}
