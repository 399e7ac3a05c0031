package strategy

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
)

// The indicator library drops the warm-up bars, so every result is padded
// back to len(prices) with NaN at the front.

func sma(prices []float64, period int) []float64 {
	if period > len(prices) {
		return nanSlice(len(prices))
	}
	ind := trend.NewSmaWithPeriod[float64](period)
	return alignRight(prices, helper.ChanToSlice(ind.Compute(helper.SliceToChan(prices))))
}

func ema(prices []float64, period int) []float64 {
	if period > len(prices) {
		return nanSlice(len(prices))
	}
	ind := trend.NewEmaWithPeriod[float64](period)
	return alignRight(prices, helper.ChanToSlice(ind.Compute(helper.SliceToChan(prices))))
}

func rsi(prices []float64, period int) []float64 {
	if period >= len(prices) {
		return nanSlice(len(prices))
	}
	ind := momentum.NewRsiWithPeriod[float64](period)
	return alignRight(prices, helper.ChanToSlice(ind.Compute(helper.SliceToChan(prices))))
}

// rollingStd is the population standard deviation over a trailing window.
func rollingStd(prices []float64, period int) []float64 {
	out := nanSlice(len(prices))
	for i := period - 1; i < len(prices); i++ {
		window := prices[i-period+1 : i+1]
		var sum float64
		for _, p := range window {
			sum += p
		}
		avg := sum / float64(period)
		var ss float64
		for _, p := range window {
			ss += (p - avg) * (p - avg)
		}
		out[i] = math.Sqrt(ss / float64(period))
	}
	return out
}

func alignRight(prices, values []float64) []float64 {
	out := nanSlice(len(prices))
	offset := len(prices) - len(values)
	if offset < 0 {
		values = values[-offset:]
		offset = 0
	}
	copy(out[offset:], values)
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func defined(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
