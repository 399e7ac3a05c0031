package weighting

import "golang-quant/internal/dto"

// CombineSignals sums each entry's weight times the direction of its latest
// signal (buy +1, sell -1, hold 0). Entries without a signal count as hold.
func CombineSignals(entries []dto.WeightEntry, latest map[dto.StrategyVariant]dto.Signal) float64 {
	var score float64
	for _, e := range entries {
		sig, ok := latest[dto.StrategyVariant{StrategyID: e.Strategy, Variant: e.Variant}]
		if !ok {
			continue
		}
		score += e.Weight * sig.Direction()
	}
	return score
}
