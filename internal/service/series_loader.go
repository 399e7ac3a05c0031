package service

import (
	"context"
	"strings"
	"time"

	"golang-quant/internal/backtest"
	"golang-quant/internal/dto"
	"golang-quant/internal/repository"
	"golang-quant/pkg/apperror"
	"golang-quant/pkg/utils"
)

// loadSeries returns inline bars when given, otherwise fetches symbol from the
// price repository. Inline bars are validated as sent, before any date window
// is applied.
func loadSeries(ctx context.Context, prices repository.PriceRepository, symbol string, bars []dto.PriceBar, rangeStr string) (dto.PriceSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if len(bars) > 0 {
		if symbol == "" {
			symbol = "INLINE"
		}
		series := dto.PriceSeries{Symbol: symbol, Bars: bars}
		if err := backtest.ValidateSeries(series); err != nil {
			return dto.PriceSeries{}, err
		}
		return series, nil
	}

	if symbol == "" {
		return dto.PriceSeries{}, apperror.Data("symbol or bars is required")
	}
	if prices == nil {
		return dto.PriceSeries{}, apperror.Data("no price source configured for %s", symbol)
	}
	series, err := prices.Get(ctx, dto.GetPriceSeriesParam{Symbol: symbol, Range: rangeStr})
	if err != nil {
		return dto.PriceSeries{}, err
	}
	return *series, nil
}

func parseWindow(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := utils.ParseDate(startDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperror.Data("invalid start_date %q", startDate)
	}
	end, err := utils.ParseDate(endDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperror.Data("invalid end_date %q", endDate)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, apperror.Data("end_date %s is before start_date %s", endDate, startDate)
	}
	return start, end, nil
}
