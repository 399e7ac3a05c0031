package dto

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Params is one concrete assignment of strategy parameters.
type Params map[string]float64

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p overlaid with override.
func (p Params) Merge(override Params) Params {
	out := p.Clone()
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Key renders the params in name order, e.g. "long_window=50,short_window=20".
func (p Params) Key() string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, ",")
}

// ParameterGrid maps a parameter name to its candidate values.
type ParameterGrid map[string][]float64

type OptimizationStatus string

const (
	OptimizationCompleted         OptimizationStatus = "completed"
	OptimizationNoValidParameters OptimizationStatus = "no_valid_parameters"
)

type RankedResult struct {
	Rank     int                 `json:"rank"`
	Index    int                 `json:"index"`
	Params   Params              `json:"params"`
	Metrics  *PerformanceMetrics `json:"metrics,omitempty"`
	Score    float64             `json:"-"`
	Error    string              `json:"error,omitempty"`
	Duration time.Duration       `json:"duration_ns"`
}

// Failed reports whether the combination could not be evaluated.
func (r RankedResult) Failed() bool {
	return r.Metrics == nil
}

// MarshalJSON writes non-finite sentinel scores as null.
func (r RankedResult) MarshalJSON() ([]byte, error) {
	type alias RankedResult
	return json.Marshal(struct {
		alias
		Score *float64 `json:"score"`
	}{alias: alias(r), Score: finitePtr(r.Score)})
}

func (r *RankedResult) UnmarshalJSON(data []byte) error {
	type alias RankedResult
	aux := struct {
		*alias
		Score *float64 `json:"score"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Score == nil {
		r.Score = math.NaN()
	} else {
		r.Score = *aux.Score
	}
	return nil
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

type OptimizationResult struct {
	RunID                int64               `json:"run_id"`
	StrategyID           string              `json:"strategy_id"`
	Symbol               string              `json:"symbol"`
	Metric               string              `json:"metric"`
	Status               OptimizationStatus  `json:"status"`
	BestParams           Params              `json:"best_params"`
	BestValue            float64             `json:"best_value"`
	RankedResults        []RankedResult      `json:"ranked_results"`
	DefaultParams        Params              `json:"default_params"`
	DefaultPerformance   *PerformanceMetrics `json:"default_performance,omitempty"`
	OptimizedPerformance *PerformanceMetrics `json:"optimized_performance,omitempty"`
	ImprovementByMetric  map[string]float64  `json:"improvement_by_metric,omitempty"`
	TotalCombinations    int                 `json:"total_combinations"`
	FailedCombinations   int                 `json:"failed_combinations"`
	StartDate            time.Time           `json:"start_date"`
	EndDate              time.Time           `json:"end_date"`
	StartedAt            time.Time           `json:"started_at"`
	CompletedAt          time.Time           `json:"completed_at"`
}

// Progress is a point-in-time view of a running search.
type Progress struct {
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	BestScore *float64      `json:"best_score,omitempty"`
}

func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total) * 100
}

type RunState string

const (
	RunStateIdle              RunState = "idle"
	RunStateRunning           RunState = "running"
	RunStateCompleted         RunState = "completed"
	RunStateNoValidParameters RunState = "no_valid_parameters"
	RunStateFailed            RunState = "failed"
)

// RunStatus is the snapshot handed to pollers of a scope.
type RunStatus struct {
	Scope      string    `json:"scope"`
	State      RunState  `json:"state"`
	InProgress bool      `json:"in_progress"`
	Progress   Progress  `json:"progress"`
	Percent    float64   `json:"percent"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
	TaskID     string    `json:"task_id,omitempty"`
}
