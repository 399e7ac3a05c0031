package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang-quant/config"
	"golang-quant/internal/dto"
	"golang-quant/pkg/apperror"
	"golang-quant/pkg/httpclient"
	"golang-quant/pkg/logger"
	"golang-quant/pkg/utils"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var ErrMarketDataUnavailable = errors.New("market data provider unavailable")

type PriceRepository interface {
	Get(ctx context.Context, param dto.GetPriceSeriesParam) (*dto.PriceSeries, error)
}

// priceRepository loads daily bars from the Yahoo Finance chart API.
type priceRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            *config.Config
	logger         *logger.Logger
	requestLimiter *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	mu             sync.Mutex
}

func NewPriceRepository(cfg *config.Config, log *logger.Logger) PriceRepository {
	return newPriceRepository(httpclient.New(cfg.MarketData.BaseURL, cfg.MarketData.Timeout), cfg, log)
}

func newPriceRepository(client httpclient.HTTPClient, cfg *config.Config, log *logger.Logger) *priceRepository {
	perMinute := cfg.MarketData.MaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	requestLimiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)

	breakerCfg := cfg.MarketData.Breaker
	settings := gobreaker.Settings{
		Name:        "market_data",
		MaxRequests: breakerCfg.MaxRequests,
		Interval:    breakerCfg.Interval,
		Timeout:     breakerCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return breakerCfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= breakerCfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				logger.StringField("breaker", name),
				logger.StringField("from", from.String()),
				logger.StringField("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// a symbol with no data is the caller's problem, not the provider's
			return err == nil || errors.Is(err, apperror.ErrData)
		},
	}

	return &priceRepository{
		httpClient:     client,
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
		breaker:        gobreaker.NewCircuitBreaker(settings),
	}
}

func (r *priceRepository) Get(ctx context.Context, param dto.GetPriceSeriesParam) (*dto.PriceSeries, error) {
	if strings.TrimSpace(param.Symbol) == "" {
		return nil, apperror.Data("symbol is required")
	}
	if param.Range == "" {
		param.Range = r.cfg.MarketData.Range
	}
	if param.Interval == "" {
		param.Interval = "1d"
	}

	if err := r.wait(ctx); err != nil {
		return nil, err
	}

	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.fetch(ctx, param)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrMarketDataUnavailable, param.Symbol, err)
		}
		return nil, err
	}
	return out.(*dto.PriceSeries), nil
}

func (r *priceRepository) wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.requestLimiter.Allow() {
		r.logger.DebugContext(ctx, "Market data request throttled",
			logger.IntField("max_request_per_minute", r.cfg.MarketData.MaxRequestPerMinute),
		)
		return r.requestLimiter.Wait(ctx)
	}
	return nil
}

func (r *priceRepository) fetch(ctx context.Context, param dto.GetPriceSeriesParam) (*dto.PriceSeries, error) {
	period1, period2, err := periodToUnix(param.Range, utils.TimeNow())
	if err != nil {
		return nil, err
	}

	queryParams := map[string]string{
		"period1":        fmt.Sprintf("%d", period1),
		"period2":        fmt.Sprintf("%d", period2),
		"interval":       param.Interval,
		"includePrePost": "false",
		"events":         "div,split",
	}
	headers := map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
		"Referer":    "https://finance.yahoo.com/",
	}

	var chart dto.YahooChartResponse
	resp, err := r.httpClient.Get(ctx, "/v8/finance/chart/"+param.Symbol, queryParams, headers, &chart)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from market data provider: %w", param.Symbol, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, apperror.Data("unknown symbol %s", param.Symbol)
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.ErrorContext(ctx, "Market data provider returned non-OK status",
			logger.StringField("symbol", param.Symbol),
			logger.IntField("status_code", resp.StatusCode),
		)
		return nil, fmt.Errorf("market data provider returned status %d", resp.StatusCode)
	}

	return chartToSeries(param.Symbol, &chart)
}

func chartToSeries(symbol string, chart *dto.YahooChartResponse) (*dto.PriceSeries, error) {
	if chart.Chart.Error != nil {
		return nil, apperror.Data("%s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, apperror.Data("no data returned for symbol %s", symbol)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	series := &dto.PriceSeries{Symbol: symbol}
	var last time.Time
	for i, ts := range result.Timestamp {
		closePrice := valueAt(quote.Close, i)
		if closePrice == nil {
			continue
		}
		date := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		if !last.IsZero() && !date.After(last) {
			continue
		}
		last = date

		bar := dto.PriceBar{Date: date, Close: *closePrice}
		if v := valueAt(quote.Open, i); v != nil {
			bar.Open = *v
		}
		if v := valueAt(quote.High, i); v != nil {
			bar.High = *v
		}
		if v := valueAt(quote.Low, i); v != nil {
			bar.Low = *v
		}
		if v := valueAt(quote.Volume, i); v != nil {
			bar.Volume = *v
		}
		series.Bars = append(series.Bars, bar)
	}

	if len(series.Bars) == 0 {
		return nil, apperror.Data("no valid bars for symbol %s", symbol)
	}
	return series, nil
}

func valueAt(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

// periodToUnix maps a range like "6m", "3y" or "max" to a unix window ending at now.
func periodToUnix(period string, now time.Time) (int64, int64, error) {
	if period == "max" {
		return 0, now.Unix(), nil
	}
	if len(period) < 2 {
		return 0, 0, apperror.Data("invalid range %q", period)
	}

	var n int
	if _, err := fmt.Sscanf(period[:len(period)-1], "%d", &n); err != nil || n <= 0 {
		return 0, 0, apperror.Data("invalid range %q", period)
	}

	var from time.Time
	switch period[len(period)-1] {
	case 'd':
		from = now.AddDate(0, 0, -n)
	case 'w':
		from = now.AddDate(0, 0, -7*n)
	case 'm':
		from = now.AddDate(0, -n, 0)
	case 'y':
		from = now.AddDate(-n, 0, 0)
	default:
		return 0, 0, apperror.Data("invalid range %q", period)
	}
	return from.Unix(), now.Unix(), nil
}
