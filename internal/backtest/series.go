package backtest

import (
	"math"
	"time"

	"golang-quant/internal/dto"
	"golang-quant/pkg/apperror"
)

// ValidateSeries checks the fields the simulator depends on.
func ValidateSeries(series dto.PriceSeries) error {
	if len(series.Bars) == 0 {
		return apperror.Data("price series %q is empty", series.Symbol)
	}
	for i, bar := range series.Bars {
		if bar.Date.IsZero() {
			return apperror.Data("bar %d of %q has no date", i, series.Symbol)
		}
		if math.IsNaN(bar.Close) || math.IsInf(bar.Close, 0) {
			return apperror.Data("bar %d of %q has no close", i, series.Symbol)
		}
		if bar.Close <= 0 {
			return apperror.Data("bar %d of %q has non-positive close %g", i, series.Symbol, bar.Close)
		}
		if i > 0 && !bar.Date.After(series.Bars[i-1].Date) {
			return apperror.Data("dates of %q are not strictly increasing at bar %d (%s after %s)",
				series.Symbol, i, bar.Date.Format(time.DateOnly), series.Bars[i-1].Date.Format(time.DateOnly))
		}
	}
	return nil
}

// FilterRange keeps bars with start <= date <= end. A zero bound is open.
func FilterRange(series dto.PriceSeries, start, end time.Time) dto.PriceSeries {
	if start.IsZero() && end.IsZero() {
		return series
	}
	bars := make([]dto.PriceBar, 0, len(series.Bars))
	for _, bar := range series.Bars {
		if !start.IsZero() && bar.Date.Before(start) {
			continue
		}
		if !end.IsZero() && bar.Date.After(end) {
			continue
		}
		bars = append(bars, bar)
	}
	return dto.PriceSeries{Symbol: series.Symbol, Bars: bars}
}

// Lookback keeps the trailing window of the given number of years measured
// from the series' own last date. years <= 0 keeps everything.
func Lookback(series dto.PriceSeries, years int) dto.PriceSeries {
	if years <= 0 || len(series.Bars) == 0 {
		return series
	}
	start := series.LastDate().AddDate(-years, 0, 0)
	return FilterRange(series, start, time.Time{})
}
