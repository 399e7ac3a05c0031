package weighting

import (
	"math"

	"golang-quant/internal/backtest"
	"golang-quant/internal/dto"
)

// Weights of the custom blend.
const (
	blendSharpe      = 0.3
	blendTotalReturn = 0.3
	blendDrawdown    = 0.2
	blendWinRate     = 0.2
)

// rawScores maps each candidate to a scalar. Failed candidates (nil metrics)
// score 0.
func rawScores(metrics []*dto.PerformanceMetrics, goal string) []float64 {
	if goal == dto.GoalCustom {
		return blendScores(metrics)
	}

	scores := make([]float64, len(metrics))
	for i, m := range metrics {
		if m == nil {
			continue
		}
		v, _ := m.Value(goal)
		if backtest.LowerIsBetter(goal) {
			v = 1 / (1 + math.Max(v, 0))
		}
		scores[i] = finiteOr(v, 0)
	}
	return scores
}

// blendScores min-max normalizes each component across the candidates that
// succeeded, then mixes them.
func blendScores(metrics []*dto.PerformanceMetrics) []float64 {
	sharpe := normalize(metrics, func(m *dto.PerformanceMetrics) float64 { return m.SharpeRatio })
	total := normalize(metrics, func(m *dto.PerformanceMetrics) float64 { return m.TotalReturn })
	drawdown := normalize(metrics, func(m *dto.PerformanceMetrics) float64 { return m.MaxDrawdown })

	scores := make([]float64, len(metrics))
	for i, m := range metrics {
		if m == nil {
			continue
		}
		scores[i] = blendSharpe*sharpe[i] +
			blendTotalReturn*total[i] +
			blendDrawdown*(1-drawdown[i]) +
			blendWinRate*m.WinRate
	}
	return scores
}

func normalize(metrics []*dto.PerformanceMetrics, field func(*dto.PerformanceMetrics) float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, m := range metrics {
		if m == nil {
			continue
		}
		v := field(m)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(metrics))
	for i, m := range metrics {
		if m == nil {
			continue
		}
		if hi == lo {
			out[i] = 0.5
			continue
		}
		out[i] = (field(m) - lo) / (hi - lo)
	}
	return out
}

// Normalize turns raw scores into weights that sum to 1. Scores below
// epsilon are lifted to epsilon; if no score is positive every candidate
// gets the same weight.
func Normalize(scores []float64, epsilon float64) []float64 {
	weights := make([]float64, len(scores))
	if len(scores) == 0 {
		return weights
	}

	anyPositive := false
	for _, s := range scores {
		if s > 0 {
			anyPositive = true
			break
		}
	}
	if !anyPositive {
		for i := range weights {
			weights[i] = 1 / float64(len(scores))
		}
		return weights
	}

	var sum float64
	for i, s := range scores {
		weights[i] = math.Max(s, epsilon)
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}
