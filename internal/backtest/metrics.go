package backtest

import (
	"math"

	"golang-quant/internal/dto"
)

const (
	tradingDaysPerYear = 252
	daysPerYear        = 365.25

	// RatioSentinel stands in for an unbounded sortino or calmar ratio.
	RatioSentinel = 10.0
	// ProfitFactorSentinel stands in for an unbounded profit factor.
	ProfitFactorSentinel = 999.0
)

var lowerIsBetter = map[string]bool{
	dto.MetricMaxDrawdown:          true,
	dto.MetricAvgLoss:              true,
	dto.MetricMaxConsecutiveLosses: true,
}

// LowerIsBetter reports whether smaller values of metric rank higher.
func LowerIsBetter(metric string) bool {
	return lowerIsBetter[metric]
}

// IsKnownMetric reports whether metric names a PerformanceMetrics field.
func IsKnownMetric(metric string) bool {
	_, ok := dto.PerformanceMetrics{}.Value(metric)
	return ok
}

func computeMetrics(equity []dto.EquityPoint, trades []dto.TradeRecord, initialCapital float64) dto.PerformanceMetrics {
	var m dto.PerformanceMetrics
	if len(equity) == 0 {
		return m
	}

	final := equity[len(equity)-1].Equity
	m.TotalReturn = finite(final/initialCapital - 1)

	elapsedDays := equity[len(equity)-1].Date.Sub(equity[0].Date).Hours() / 24
	if elapsedDays <= 0 {
		m.AnnualReturn = m.TotalReturn
	} else if 1+m.TotalReturn <= 0 {
		m.AnnualReturn = -1
	} else {
		m.AnnualReturn = finite(math.Pow(1+m.TotalReturn, daysPerYear/elapsedDays) - 1)
	}

	for _, p := range equity {
		if p.Drawdown > m.MaxDrawdown {
			m.MaxDrawdown = p.Drawdown
		}
	}
	m.MaxDrawdown = finite(m.MaxDrawdown)

	returns := dailyReturns(equity)
	m.SharpeRatio = sharpe(returns)
	m.SortinoRatio = sortino(returns)

	switch {
	case m.MaxDrawdown > 0:
		m.CalmarRatio = finite(m.AnnualReturn / m.MaxDrawdown)
	case m.AnnualReturn > 0:
		m.CalmarRatio = RatioSentinel
	}

	fillTradeStats(&m, trades)
	return m
}

func fillTradeStats(m *dto.PerformanceMetrics, trades []dto.TradeRecord) {
	m.TradeCount = len(trades)
	if len(trades) == 0 {
		return
	}

	var wins, losses int
	var grossProfit, grossLoss float64
	var winStreak, lossStreak int
	for _, t := range trades {
		if t.Result == dto.TradeWin {
			wins++
			grossProfit += t.Profit
			winStreak++
			lossStreak = 0
		} else {
			losses++
			grossLoss += -t.Profit
			lossStreak++
			winStreak = 0
		}
		m.MaxConsecutiveWins = max(m.MaxConsecutiveWins, winStreak)
		m.MaxConsecutiveLosses = max(m.MaxConsecutiveLosses, lossStreak)
	}

	m.WinRate = float64(wins) / float64(len(trades))
	if wins > 0 {
		m.AvgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		m.AvgLoss = grossLoss / float64(losses)
	}

	switch {
	case wins == 0 || grossProfit <= 0:
		m.ProfitFactor = 0
	case grossLoss <= 0:
		m.ProfitFactor = ProfitFactorSentinel
	default:
		m.ProfitFactor = finite(grossProfit / grossLoss)
	}
}

func dailyReturns(equity []dto.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, equity[i].Equity/prev-1)
	}
	return returns
}

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	avg := mean(returns)
	var ss float64
	for _, r := range returns {
		ss += (r - avg) * (r - avg)
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return finite(avg / std * math.Sqrt(tradingDaysPerYear))
}

// sortino divides by the downside deviation sqrt(mean(r^2 for r < 0)).
func sortino(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	avg := mean(returns)

	var ss float64
	var negatives int
	for _, r := range returns {
		if r < 0 {
			ss += r * r
			negatives++
		}
	}
	if negatives == 0 {
		if avg > 0 {
			return RatioSentinel
		}
		return 0
	}
	downside := math.Sqrt(ss / float64(negatives))
	if downside == 0 {
		return 0
	}
	return finite(avg / downside * math.Sqrt(tradingDaysPerYear))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
