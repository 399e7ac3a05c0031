package strategy

import (
	"golang-quant/internal/dto"
)

// Strategy turns a price series into one signal per bar.
type Strategy interface {
	ID() string
	Params() dto.Params
	GenerateSignals(series dto.PriceSeries) ([]dto.Signal, error)
}

// PositionFunc returns a target position per bar: 1 long, 0 flat, -1 short.
type PositionFunc func(series dto.PriceSeries) ([]float64, error)

type positionAdapter struct {
	id        string
	params    dto.Params
	positions PositionFunc
}

// FromPositions adapts a position-series strategy to Strategy. Short targets
// are treated as flat since the simulator is long/flat only.
func FromPositions(id string, params dto.Params, fn PositionFunc) Strategy {
	return &positionAdapter{id: id, params: params, positions: fn}
}

func (a *positionAdapter) ID() string {
	return a.id
}

func (a *positionAdapter) Params() dto.Params {
	return a.params.Clone()
}

func (a *positionAdapter) GenerateSignals(series dto.PriceSeries) ([]dto.Signal, error) {
	positions, err := a.positions(series)
	if err != nil {
		return nil, err
	}
	return SignalsFromPositions(positions), nil
}

// SignalsFromPositions emits Buy when the target turns long and Sell when it
// stops being long.
func SignalsFromPositions(positions []float64) []dto.Signal {
	signals := make([]dto.Signal, len(positions))
	held := false
	for i, p := range positions {
		want := p > 0
		switch {
		case want && !held:
			signals[i] = dto.SignalBuy
		case !want && held:
			signals[i] = dto.SignalSell
		}
		held = want
	}
	return signals
}

type signalStrategy struct {
	id       string
	params   dto.Params
	generate func(series dto.PriceSeries) ([]dto.Signal, error)
}

func (s *signalStrategy) ID() string {
	return s.id
}

func (s *signalStrategy) Params() dto.Params {
	return s.params.Clone()
}

func (s *signalStrategy) GenerateSignals(series dto.PriceSeries) ([]dto.Signal, error) {
	return s.generate(series)
}
