package backtest

import (
	"math"

	"golang-quant/internal/dto"
	"golang-quant/pkg/apperror"
)

type Options struct {
	InitialCapital float64
	Commission     float64
	Mode           dto.AccountingMode
}

type position int

const (
	flat position = iota
	long
)

type state struct {
	position   position
	entryPrice float64
	entryDate  int
	equity     float64
}

// Simulate replays signals over series and returns the equity curve, closed
// trades and performance metrics. It keeps no state between calls and only
// reads its inputs, so it is safe to call from many goroutines at once.
func Simulate(series dto.PriceSeries, signals []dto.Signal, opts Options) (*dto.SimulationOutcome, error) {
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}
	if len(signals) != len(series.Bars) {
		return nil, apperror.Data("series %q has %d bars but %d signals", series.Symbol, len(series.Bars), len(signals))
	}
	if opts.InitialCapital <= 0 || math.IsNaN(opts.InitialCapital) {
		return nil, apperror.Data("initial capital must be positive, got %v", opts.InitialCapital)
	}
	if opts.Commission < 0 || opts.Commission >= 1 || math.IsNaN(opts.Commission) {
		return nil, apperror.Data("commission must be in [0,1), got %v", opts.Commission)
	}

	mode := opts.Mode
	if mode == "" {
		mode = dto.AccountingRealized
	}
	if mode != dto.AccountingRealized && mode != dto.AccountingMarkToMarket {
		return nil, apperror.Data("unknown accounting mode %q", mode)
	}

	bars := series.Bars
	c := opts.Commission
	st := state{equity: opts.InitialCapital}
	points := make([]dto.EquityPoint, len(bars))
	var trades []dto.TradeRecord

	for i, bar := range bars {
		if mode == dto.AccountingMarkToMarket && st.position == long && i > 0 && bars[i-1].Close != 0 {
			st.equity *= bar.Close / bars[i-1].Close
		}

		switch {
		case signals[i] == dto.SignalBuy && st.position == flat:
			st.position = long
			st.entryPrice = bar.Close * (1 + c)
			st.entryDate = i
			if mode == dto.AccountingMarkToMarket {
				st.equity /= 1 + c
			}

		case signals[i] == dto.SignalSell && st.position == long:
			exitPrice := bar.Close * (1 - c)
			profit := exitPrice - st.entryPrice
			st.position = flat
			if mode == dto.AccountingMarkToMarket {
				st.equity *= 1 - c
			} else {
				st.equity += profit
			}
			trades = append(trades, newTrade(bars[st.entryDate], bar, st.entryPrice, exitPrice))
		}

		points[i] = dto.EquityPoint{
			Date:   bar.Date,
			Equity: st.equity,
			Long:   st.position == long,
		}
	}

	fillDrawdown(points)
	fillMarketReturn(points, bars)

	return &dto.SimulationOutcome{
		Mode:         mode,
		Equity:       points,
		Trades:       trades,
		Metrics:      computeMetrics(points, trades, opts.InitialCapital),
		OpenPosition: st.position == long,
	}, nil
}

func newTrade(entry, exit dto.PriceBar, entryPrice, exitPrice float64) dto.TradeRecord {
	profit := exitPrice - entryPrice
	result := dto.TradeLoss
	if profit > 0 {
		result = dto.TradeWin
	}
	var pct float64
	if entryPrice != 0 {
		pct = profit / entryPrice * 100
	}
	return dto.TradeRecord{
		EntryDate:  entry.Date,
		ExitDate:   exit.Date,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Profit:     profit,
		ProfitPct:  pct,
		Result:     result,
	}
}

func fillDrawdown(points []dto.EquityPoint) {
	var peak float64
	for i := range points {
		if points[i].Equity > peak {
			peak = points[i].Equity
		}
		if peak > 0 {
			points[i].Drawdown = (peak - points[i].Equity) / peak
		}
	}
}

func fillMarketReturn(points []dto.EquityPoint, bars []dto.PriceBar) {
	cumulative := 1.0
	for i := range points {
		if i > 0 && bars[i-1].Close != 0 {
			points[i].MarketReturn = bars[i].Close/bars[i-1].Close - 1
		}
		cumulative *= 1 + points[i].MarketReturn
		points[i].CumulativeMarketReturn = cumulative - 1
	}
}
