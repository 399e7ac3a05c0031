package dto

import "time"

type AccountingMode string

const (
	// AccountingRealized updates equity only when a trade closes.
	AccountingRealized AccountingMode = "realized"
	// AccountingMarkToMarket compounds close-to-close returns while long.
	AccountingMarkToMarket AccountingMode = "mark_to_market"
)

type TradeResult string

const (
	TradeWin  TradeResult = "win"
	TradeLoss TradeResult = "loss"
)

type TradeRecord struct {
	EntryDate  time.Time   `json:"entry_date"`
	ExitDate   time.Time   `json:"exit_date"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  float64     `json:"exit_price"`
	Profit     float64     `json:"profit"`
	ProfitPct  float64     `json:"profit_pct"`
	Result     TradeResult `json:"result"`
}

// Metric names accepted by the optimizer and the weighting engine.
const (
	MetricTotalReturn          = "total_return"
	MetricAnnualReturn         = "annual_return"
	MetricMaxDrawdown          = "max_drawdown"
	MetricSharpeRatio          = "sharpe_ratio"
	MetricSortinoRatio         = "sortino_ratio"
	MetricCalmarRatio          = "calmar_ratio"
	MetricWinRate              = "win_rate"
	MetricProfitFactor         = "profit_factor"
	MetricAvgWin               = "avg_win"
	MetricAvgLoss              = "avg_loss"
	MetricTradeCount           = "trade_count"
	MetricMaxConsecutiveWins   = "max_consecutive_wins"
	MetricMaxConsecutiveLosses = "max_consecutive_losses"
)

var MetricNames = []string{
	MetricTotalReturn,
	MetricAnnualReturn,
	MetricMaxDrawdown,
	MetricSharpeRatio,
	MetricSortinoRatio,
	MetricCalmarRatio,
	MetricWinRate,
	MetricProfitFactor,
	MetricAvgWin,
	MetricAvgLoss,
	MetricTradeCount,
	MetricMaxConsecutiveWins,
	MetricMaxConsecutiveLosses,
}

type PerformanceMetrics struct {
	TotalReturn          float64 `json:"total_return"`
	AnnualReturn         float64 `json:"annual_return"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	CalmarRatio          float64 `json:"calmar_ratio"`
	WinRate              float64 `json:"win_rate"`
	ProfitFactor         float64 `json:"profit_factor"`
	AvgWin               float64 `json:"avg_win"`
	AvgLoss              float64 `json:"avg_loss"`
	TradeCount           int     `json:"trade_count"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// Value returns the metric with the given name.
func (m PerformanceMetrics) Value(name string) (float64, bool) {
	switch name {
	case MetricTotalReturn:
		return m.TotalReturn, true
	case MetricAnnualReturn:
		return m.AnnualReturn, true
	case MetricMaxDrawdown:
		return m.MaxDrawdown, true
	case MetricSharpeRatio:
		return m.SharpeRatio, true
	case MetricSortinoRatio:
		return m.SortinoRatio, true
	case MetricCalmarRatio:
		return m.CalmarRatio, true
	case MetricWinRate:
		return m.WinRate, true
	case MetricProfitFactor:
		return m.ProfitFactor, true
	case MetricAvgWin:
		return m.AvgWin, true
	case MetricAvgLoss:
		return m.AvgLoss, true
	case MetricTradeCount:
		return float64(m.TradeCount), true
	case MetricMaxConsecutiveWins:
		return float64(m.MaxConsecutiveWins), true
	case MetricMaxConsecutiveLosses:
		return float64(m.MaxConsecutiveLosses), true
	default:
		return 0, false
	}
}

type EquityPoint struct {
	Date                   time.Time `json:"date"`
	Equity                 float64   `json:"equity"`
	Drawdown               float64   `json:"drawdown"`
	MarketReturn           float64   `json:"market_return"`
	CumulativeMarketReturn float64   `json:"cumulative_market_return"`
	Long                   bool      `json:"long"`
}

type SimulationOutcome struct {
	Mode         AccountingMode     `json:"mode"`
	Equity       []EquityPoint      `json:"equity"`
	Trades       []TradeRecord      `json:"trades"`
	Metrics      PerformanceMetrics `json:"metrics"`
	OpenPosition bool               `json:"open_position"`
}

func (o *SimulationOutcome) FinalEquity() float64 {
	if len(o.Equity) == 0 {
		return 0
	}
	return o.Equity[len(o.Equity)-1].Equity
}
