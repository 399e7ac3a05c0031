package backtest

import (
	"math"
	"sync"
	"testing"
	"time"

	"golang-quant/internal/dto"
	"golang-quant/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seriesOf(closes ...float64) dto.PriceSeries {
	bars := make([]dto.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = dto.PriceBar{Date: day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return dto.PriceSeries{Symbol: "TEST", Bars: bars}
}

func holds(n int) []dto.Signal {
	return make([]dto.Signal, n)
}

func TestSimulate_AllHold(t *testing.T) {
	series := seriesOf(100, 101, 99, 103, 104, 98)

	out, err := Simulate(series, holds(6), Options{InitialCapital: 1000, Commission: 0.001})
	require.NoError(t, err)

	assert.Empty(t, out.Trades)
	assert.Equal(t, 1000.0, out.FinalEquity())
	assert.Equal(t, 0.0, out.Metrics.MaxDrawdown)
	assert.Equal(t, 0.0, out.Metrics.TotalReturn)
	assert.Equal(t, 0, out.Metrics.TradeCount)
	assert.Equal(t, 0.0, out.Metrics.SharpeRatio)
	assert.False(t, out.OpenPosition)
}

func TestSimulate_SingleLosingTrade(t *testing.T) {
	series := seriesOf(100, 102, 104, 101, 99)
	signals := []dto.Signal{dto.SignalHold, dto.SignalBuy, dto.SignalHold, dto.SignalSell, dto.SignalHold}

	out, err := Simulate(series, signals, Options{InitialCapital: 100, Commission: 0.001})
	require.NoError(t, err)

	require.Len(t, out.Trades, 1)
	trade := out.Trades[0]
	assert.InDelta(t, 102.102, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 100.899, trade.ExitPrice, 1e-9)
	assert.InDelta(t, -1.203, trade.Profit, 1e-9)
	assert.Equal(t, dto.TradeLoss, trade.Result)
	assert.Equal(t, day0.AddDate(0, 0, 1), trade.EntryDate)
	assert.Equal(t, day0.AddDate(0, 0, 3), trade.ExitDate)

	assert.InDelta(t, 98.797, out.FinalEquity(), 1e-9)
	// equity is flat while the position is open
	assert.Equal(t, 100.0, out.Equity[2].Equity)
	assert.True(t, out.Equity[2].Long)
	assert.InDelta(t, 0.01203, out.Metrics.MaxDrawdown, 1e-9)
	assert.Equal(t, 0.0, out.Metrics.WinRate)
	assert.Equal(t, 0.0, out.Metrics.ProfitFactor)
	assert.InDelta(t, 1.203, out.Metrics.AvgLoss, 1e-9)
	assert.Equal(t, 1, out.Metrics.MaxConsecutiveLosses)
}

func TestSimulate_ProfitFactorSentinel(t *testing.T) {
	series := seriesOf(100, 110, 105, 120)
	signals := []dto.Signal{dto.SignalBuy, dto.SignalSell, dto.SignalBuy, dto.SignalSell}

	out, err := Simulate(series, signals, Options{InitialCapital: 1000})
	require.NoError(t, err)

	require.Len(t, out.Trades, 2)
	assert.Equal(t, ProfitFactorSentinel, out.Metrics.ProfitFactor)
	assert.Equal(t, 1.0, out.Metrics.WinRate)
	assert.Equal(t, 2, out.Metrics.MaxConsecutiveWins)
	assert.InDelta(t, 12.5, out.Metrics.AvgWin, 1e-9)
	assert.Equal(t, RatioSentinel, out.Metrics.CalmarRatio)
	assert.Equal(t, RatioSentinel, out.Metrics.SortinoRatio)
}

func TestSimulate_MixedTradesStreaks(t *testing.T) {
	series := seriesOf(100, 110, 100, 90, 100, 95, 100, 120)
	signals := []dto.Signal{
		dto.SignalBuy, dto.SignalSell, // +10
		dto.SignalBuy, dto.SignalSell, // -10
		dto.SignalBuy, dto.SignalSell, // -5
		dto.SignalBuy, dto.SignalSell, // +20
	}

	out, err := Simulate(series, signals, Options{InitialCapital: 1000})
	require.NoError(t, err)

	m := out.Metrics
	assert.Equal(t, 4, m.TradeCount)
	assert.Equal(t, 0.5, m.WinRate)
	assert.InDelta(t, 30.0/15.0, m.ProfitFactor, 1e-9)
	assert.Equal(t, 1, m.MaxConsecutiveWins)
	assert.Equal(t, 2, m.MaxConsecutiveLosses)
	assert.InDelta(t, 15, m.AvgWin, 1e-9)
	assert.InDelta(t, 7.5, m.AvgLoss, 1e-9)
	assert.InDelta(t, 0.015, m.TotalReturn, 1e-9)
}

func TestSimulate_IgnoresRedundantSignals(t *testing.T) {
	series := seriesOf(10, 11, 12, 13, 14)
	signals := []dto.Signal{dto.SignalSell, dto.SignalBuy, dto.SignalBuy, dto.SignalSell, dto.SignalSell}

	out, err := Simulate(series, signals, Options{InitialCapital: 100})
	require.NoError(t, err)

	require.Len(t, out.Trades, 1)
	assert.Equal(t, 11.0, out.Trades[0].EntryPrice)
	assert.Equal(t, 13.0, out.Trades[0].ExitPrice)
}

func TestSimulate_OpenPositionAtEnd(t *testing.T) {
	series := seriesOf(10, 12, 15)
	signals := []dto.Signal{dto.SignalHold, dto.SignalBuy, dto.SignalHold}

	out, err := Simulate(series, signals, Options{InitialCapital: 100})
	require.NoError(t, err)

	assert.True(t, out.OpenPosition)
	assert.Empty(t, out.Trades)
	assert.Equal(t, 100.0, out.FinalEquity())
}

func TestSimulate_MarkToMarket(t *testing.T) {
	series := seriesOf(100, 110, 121, 121)
	signals := []dto.Signal{dto.SignalBuy, dto.SignalHold, dto.SignalSell, dto.SignalHold}

	out, err := Simulate(series, signals, Options{InitialCapital: 100, Mode: dto.AccountingMarkToMarket})
	require.NoError(t, err)

	assert.Equal(t, dto.AccountingMarkToMarket, out.Mode)
	assert.InDelta(t, 110, out.Equity[1].Equity, 1e-9)
	assert.InDelta(t, 121, out.Equity[2].Equity, 1e-9)
	assert.InDelta(t, 121, out.FinalEquity(), 1e-9)
	require.Len(t, out.Trades, 1)
	assert.InDelta(t, 21, out.Trades[0].Profit, 1e-9)
}

func TestSimulate_MarkToMarketCommission(t *testing.T) {
	series := seriesOf(100, 100)
	signals := []dto.Signal{dto.SignalBuy, dto.SignalSell}

	out, err := Simulate(series, signals, Options{InitialCapital: 100, Commission: 0.01, Mode: dto.AccountingMarkToMarket})
	require.NoError(t, err)

	assert.InDelta(t, 100/1.01*0.99, out.FinalEquity(), 1e-9)
	assert.Greater(t, out.Metrics.MaxDrawdown, 0.0)
}

func TestSimulate_MarketReturn(t *testing.T) {
	series := seriesOf(100, 110, 99)

	out, err := Simulate(series, holds(3), Options{InitialCapital: 1})
	require.NoError(t, err)

	assert.Equal(t, 0.0, out.Equity[0].MarketReturn)
	assert.InDelta(t, 0.1, out.Equity[1].MarketReturn, 1e-12)
	assert.InDelta(t, -0.1, out.Equity[2].MarketReturn, 1e-12)
	assert.InDelta(t, -0.01, out.Equity[2].CumulativeMarketReturn, 1e-12)
}

func TestSimulate_AnnualReturn(t *testing.T) {
	t.Run("single bar falls back to total return", func(t *testing.T) {
		out, err := Simulate(seriesOf(100), holds(1), Options{InitialCapital: 10})
		require.NoError(t, err)
		assert.Equal(t, out.Metrics.TotalReturn, out.Metrics.AnnualReturn)
	})

	t.Run("one year compounding", func(t *testing.T) {
		series := dto.PriceSeries{Bars: []dto.PriceBar{
			{Date: day0, Close: 100},
			{Date: day0.Add(time.Duration(365.25 * 24 * float64(time.Hour))), Close: 110},
		}}
		out, err := Simulate(series, []dto.Signal{dto.SignalBuy, dto.SignalSell}, Options{InitialCapital: 100})
		require.NoError(t, err)
		assert.InDelta(t, 0.1, out.Metrics.TotalReturn, 1e-12)
		assert.InDelta(t, 0.1, out.Metrics.AnnualReturn, 1e-9)
	})
}

func TestSimulate_DataErrors(t *testing.T) {
	good := seriesOf(1, 2, 3)
	zeroDate := seriesOf(1, 2, 3)
	zeroDate.Bars[1].Date = time.Time{}
	nanClose := seriesOf(1, 2, 3)
	nanClose.Bars[2].Close = math.NaN()
	zeroClose := seriesOf(1, 0, 3)
	unordered := seriesOf(1, 2, 3)
	unordered.Bars[2].Date = unordered.Bars[1].Date

	tests := []struct {
		name    string
		series  dto.PriceSeries
		signals []dto.Signal
		opts    Options
	}{
		{name: "empty", series: dto.PriceSeries{}, signals: nil, opts: Options{InitialCapital: 1}},
		{name: "length mismatch", series: good, signals: holds(2), opts: Options{InitialCapital: 1}},
		{name: "missing date", series: zeroDate, signals: holds(3), opts: Options{InitialCapital: 1}},
		{name: "missing close", series: nanClose, signals: holds(3), opts: Options{InitialCapital: 1}},
		{name: "zero close", series: zeroClose, signals: holds(3), opts: Options{InitialCapital: 1}},
		{name: "duplicate dates", series: unordered, signals: holds(3), opts: Options{InitialCapital: 1}},
		{name: "zero capital", series: good, signals: holds(3), opts: Options{}},
		{name: "commission of one", series: good, signals: holds(3), opts: Options{InitialCapital: 1, Commission: 1}},
		{name: "negative commission", series: good, signals: holds(3), opts: Options{InitialCapital: 1, Commission: -0.1}},
		{name: "unknown mode", series: good, signals: holds(3), opts: Options{InitialCapital: 1, Mode: "compound"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Simulate(tt.series, tt.signals, tt.opts)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, apperror.ErrData)
		})
	}
}

func TestSimulate_ConcurrentCallsShareInput(t *testing.T) {
	series := seriesOf(100, 102, 101, 105, 103, 108, 107, 111)
	signals := []dto.Signal{
		dto.SignalBuy, dto.SignalHold, dto.SignalSell, dto.SignalBuy,
		dto.SignalSell, dto.SignalBuy, dto.SignalHold, dto.SignalSell,
	}
	want, err := Simulate(series, signals, Options{InitialCapital: 1000, Commission: 0.002})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*dto.SimulationOutcome, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Simulate(series, signals, Options{InitialCapital: 1000, Commission: 0.002})
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestLowerIsBetter(t *testing.T) {
	assert.True(t, LowerIsBetter(dto.MetricMaxDrawdown))
	assert.True(t, LowerIsBetter(dto.MetricAvgLoss))
	assert.False(t, LowerIsBetter(dto.MetricSharpeRatio))
	assert.True(t, IsKnownMetric(dto.MetricCalmarRatio))
	assert.False(t, IsKnownMetric("beta"))
}
