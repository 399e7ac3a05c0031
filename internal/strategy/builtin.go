package strategy

import (
	"golang-quant/internal/dto"
	"golang-quant/pkg/apperror"
)

const (
	SMACrossover       = "sma_crossover"
	EMACrossover       = "ema_crossover"
	RSI                = "rsi"
	BollingerReversion = "bollinger_reversion"
	Momentum           = "momentum"
	BuyAndHold         = "buy_and_hold"
)

func builtins() []Definition {
	return []Definition{
		{
			ID:          SMACrossover,
			Description: "Buy when the short SMA crosses above the long SMA, sell on the opposite cross",
			Defaults:    dto.Params{"short_window": 20, "long_window": 50},
			New:         newMovingAverageCrossover(SMACrossover, sma),
		},
		{
			ID:          EMACrossover,
			Description: "Buy when the short EMA crosses above the long EMA, sell on the opposite cross",
			Defaults:    dto.Params{"short_window": 12, "long_window": 26},
			New:         newMovingAverageCrossover(EMACrossover, ema),
		},
		{
			ID:          RSI,
			Description: "Buy when RSI drops below oversold, sell when it rises above overbought",
			Defaults:    dto.Params{"period": 14, "oversold": 30, "overbought": 70},
			New:         newRSI,
		},
		{
			ID:          BollingerReversion,
			Description: "Go long below the lower Bollinger band, exit once price recovers to the middle band",
			Defaults:    dto.Params{"period": 20, "num_std": 2},
			New:         newBollingerReversion,
		},
		{
			ID:          Momentum,
			Description: "Long while the lookback return exceeds threshold, flat otherwise",
			Defaults:    dto.Params{"lookback": 20, "threshold": 0},
			New:         newMomentum,
		},
		{
			ID:          BuyAndHold,
			Description: "Buy on the first bar and hold",
			Defaults:    dto.Params{},
			New:         newBuyAndHold,
		},
	}
}

func newMovingAverageCrossover(id string, average func([]float64, int) []float64) Constructor {
	return func(params dto.Params) (Strategy, error) {
		short, err := intParam(params, "short_window", 1)
		if err != nil {
			return nil, err
		}
		long, err := intParam(params, "long_window", 2)
		if err != nil {
			return nil, err
		}
		if short >= long {
			return nil, apperror.Strategy("short_window (%d) must be less than long_window (%d)", short, long)
		}

		return &signalStrategy{
			id:     id,
			params: params.Clone(),
			generate: func(series dto.PriceSeries) ([]dto.Signal, error) {
				closes := series.Closes()
				fast := average(closes, short)
				slow := average(closes, long)

				signals := make([]dto.Signal, len(closes))
				for i := 1; i < len(closes); i++ {
					if !defined(fast[i], slow[i], fast[i-1], slow[i-1]) {
						continue
					}
					switch {
					case fast[i-1] <= slow[i-1] && fast[i] > slow[i]:
						signals[i] = dto.SignalBuy
					case fast[i-1] >= slow[i-1] && fast[i] < slow[i]:
						signals[i] = dto.SignalSell
					}
				}
				return signals, nil
			},
		}, nil
	}
}

func newRSI(params dto.Params) (Strategy, error) {
	period, err := intParam(params, "period", 2)
	if err != nil {
		return nil, err
	}
	oversold, err := floatParam(params, "oversold")
	if err != nil {
		return nil, err
	}
	overbought, err := floatParam(params, "overbought")
	if err != nil {
		return nil, err
	}
	if oversold <= 0 || overbought >= 100 || oversold >= overbought {
		return nil, apperror.Strategy("need 0 < oversold (%v) < overbought (%v) < 100", oversold, overbought)
	}

	return &signalStrategy{
		id:     RSI,
		params: params.Clone(),
		generate: func(series dto.PriceSeries) ([]dto.Signal, error) {
			values := rsi(series.Closes(), period)
			signals := make([]dto.Signal, len(values))
			for i, v := range values {
				if !defined(v) {
					continue
				}
				switch {
				case v < oversold:
					signals[i] = dto.SignalBuy
				case v > overbought:
					signals[i] = dto.SignalSell
				}
			}
			return signals, nil
		},
	}, nil
}

func newBollingerReversion(params dto.Params) (Strategy, error) {
	period, err := intParam(params, "period", 2)
	if err != nil {
		return nil, err
	}
	numStd, err := floatParam(params, "num_std")
	if err != nil {
		return nil, err
	}
	if numStd <= 0 {
		return nil, apperror.Strategy("num_std must be positive, got %v", numStd)
	}

	return FromPositions(BollingerReversion, params.Clone(), func(series dto.PriceSeries) ([]float64, error) {
		closes := series.Closes()
		middle := sma(closes, period)
		std := rollingStd(closes, period)

		positions := make([]float64, len(closes))
		var held float64
		for i, c := range closes {
			if defined(middle[i], std[i]) {
				lower := middle[i] - numStd*std[i]
				switch {
				case c < lower:
					held = 1
				case c >= middle[i]:
					held = 0
				}
			}
			positions[i] = held
		}
		return positions, nil
	}), nil
}

func newMomentum(params dto.Params) (Strategy, error) {
	lookback, err := intParam(params, "lookback", 1)
	if err != nil {
		return nil, err
	}
	threshold, err := floatParam(params, "threshold")
	if err != nil {
		return nil, err
	}
	if threshold < 0 {
		return nil, apperror.Strategy("threshold must not be negative, got %v", threshold)
	}

	return FromPositions(Momentum, params.Clone(), func(series dto.PriceSeries) ([]float64, error) {
		closes := series.Closes()
		positions := make([]float64, len(closes))
		for i := lookback; i < len(closes); i++ {
			if closes[i-lookback] == 0 {
				continue
			}
			change := closes[i]/closes[i-lookback] - 1
			switch {
			case change > threshold:
				positions[i] = 1
			case change < -threshold:
				positions[i] = -1
			}
		}
		return positions, nil
	}), nil
}

func newBuyAndHold(params dto.Params) (Strategy, error) {
	return FromPositions(BuyAndHold, params.Clone(), func(series dto.PriceSeries) ([]float64, error) {
		positions := make([]float64, series.Len())
		for i := range positions {
			positions[i] = 1
		}
		return positions, nil
	}), nil
}
