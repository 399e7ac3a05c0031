package service

import (
	"context"

	"golang-quant/config"
	"golang-quant/internal/backtest"
	"golang-quant/internal/dto"
	"golang-quant/internal/repository"
	"golang-quant/internal/strategy"
	"golang-quant/pkg/logger"
	"golang-quant/pkg/metrics"
)

type BacktestService interface {
	RunBacktest(ctx context.Context, req dto.BacktestRequest) (*dto.BacktestResponse, error)
}

type backtestService struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *strategy.Registry
	prices   repository.PriceRepository
	metrics  *metrics.Registry
}

func NewBacktestService(
	cfg *config.Config,
	log *logger.Logger,
	registry *strategy.Registry,
	prices repository.PriceRepository,
	m *metrics.Registry,
) BacktestService {
	return &backtestService{
		cfg:      cfg,
		log:      log,
		registry: registry,
		prices:   prices,
		metrics:  m,
	}
}

// RunBacktest simulates one strategy over one series and returns the full outcome.
func (s *backtestService) RunBacktest(ctx context.Context, req dto.BacktestRequest) (*dto.BacktestResponse, error) {
	strat, err := s.registry.Build(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}

	start, end, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	series, err := loadSeries(ctx, s.prices, req.Symbol, req.Bars, s.cfg.MarketData.Range)
	if err != nil {
		return nil, err
	}
	series = backtest.FilterRange(series, start, end)
	if err := backtest.ValidateSeries(series); err != nil {
		return nil, err
	}

	signals, err := strat.GenerateSignals(series)
	if err != nil {
		s.countSimulation("strategy_error")
		return nil, err
	}

	opts := backtest.Options{
		InitialCapital: s.cfg.Simulation.InitialCapital,
		Commission:     s.cfg.Simulation.Commission,
		Mode:           req.Mode,
	}
	if req.InitialCapital > 0 {
		opts.InitialCapital = req.InitialCapital
	}
	if req.Commission != nil {
		opts.Commission = *req.Commission
	}

	outcome, err := backtest.Simulate(series, signals, opts)
	if err != nil {
		s.countSimulation("data_error")
		return nil, err
	}
	s.countSimulation("ok")

	s.log.DebugContext(ctx, "Backtest completed",
		logger.StringField("symbol", series.Symbol),
		logger.StringField("strategy", strat.ID()),
		logger.IntField("trades", len(outcome.Trades)),
		logger.Float64Field("total_return", outcome.Metrics.TotalReturn),
	)

	return &dto.BacktestResponse{
		Symbol:   series.Symbol,
		Strategy: strat.ID(),
		Params:   strat.Params(),
		Outcome:  *outcome,
	}, nil
}

func (s *backtestService) countSimulation(outcome string) {
	s.metrics.Simulations.WithLabelValues(outcome).Inc()
}
