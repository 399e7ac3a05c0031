package dto

import (
	"fmt"
	"strings"
	"time"
)

type ParameterVariant string

const (
	VariantOriginal  ParameterVariant = "original"
	VariantOptimized ParameterVariant = "optimized"
)

// GoalCustom selects the blended score instead of a single metric.
const GoalCustom = "custom"

type StrategyVariant struct {
	StrategyID string           `json:"strategy_id"`
	Variant    ParameterVariant `json:"variant"`
}

func (v StrategyVariant) String() string {
	return v.StrategyID + ":" + string(v.Variant)
}

// ParseStrategyVariant parses "rsi" or "rsi:optimized".
func ParseStrategyVariant(s string) (StrategyVariant, error) {
	id, variant, found := strings.Cut(strings.TrimSpace(s), ":")
	if id == "" {
		return StrategyVariant{}, fmt.Errorf("empty strategy id in %q", s)
	}
	if !found || variant == "" {
		return StrategyVariant{StrategyID: id, Variant: VariantOriginal}, nil
	}
	switch ParameterVariant(variant) {
	case VariantOriginal, VariantOptimized:
		return StrategyVariant{StrategyID: id, Variant: ParameterVariant(variant)}, nil
	default:
		return StrategyVariant{}, fmt.Errorf("unknown parameter variant %q", variant)
	}
}

type WeightEntry struct {
	Asset    string              `json:"asset"`
	Strategy string              `json:"strategy"`
	Variant  ParameterVariant    `json:"parameter_variant"`
	Params   Params              `json:"params"`
	Weight   float64             `json:"weight"`
	Score    float64             `json:"score"`
	Metrics  *PerformanceMetrics `json:"metrics,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type WeightingResult struct {
	RunID           int64                    `json:"run_id"`
	GoalMetric      string                   `json:"goal_metric"`
	LookbackYears   int                      `json:"lookback_years"`
	Weights         map[string][]WeightEntry `json:"weights"`
	Skipped         map[string]string        `json:"skipped,omitempty"`
	FallbackBatches int                      `json:"fallback_batches"`
	StartedAt       time.Time                `json:"started_at"`
	CompletedAt     time.Time                `json:"completed_at"`
}

// SignalComponent is one strategy's current stance inside an AssetSignal.
type SignalComponent struct {
	Strategy string           `json:"strategy"`
	Variant  ParameterVariant `json:"parameter_variant"`
	Weight   float64          `json:"weight"`
	Signal   Signal           `json:"signal"`
	Error    string           `json:"error,omitempty"`
}

// AssetSignal is the weighted vote of every strategy held for an asset.
type AssetSignal struct {
	Asset      string            `json:"asset"`
	RunID      int64             `json:"run_id"`
	Score      float64           `json:"score"`
	Action     Signal            `json:"action"`
	AsOf       string            `json:"as_of"`
	Components []SignalComponent `json:"components"`
}
