package model

import (
	"encoding/json"
	"fmt"
	"time"

	"golang-quant/internal/dto"
	"golang-quant/internal/optimizer"

	"gorm.io/datatypes"
)

type OptimizationRun struct {
	ID                   int64          `gorm:"primaryKey;autoIncrement"`
	StrategyID           string         `gorm:"column:strategy_id;type:varchar(100);not null;index"`
	Symbol               string         `gorm:"column:symbol;type:varchar(50)"`
	Metric               string         `gorm:"column:metric;type:varchar(50);not null"`
	Status               string         `gorm:"column:status;type:varchar(30);not null"`
	BestParams           datatypes.JSON `gorm:"column:best_params;type:jsonb"`
	BestValue            *float64       `gorm:"column:best_value"`
	RankedResults        datatypes.JSON `gorm:"column:ranked_results;type:jsonb"`
	DefaultParams        datatypes.JSON `gorm:"column:default_params;type:jsonb"`
	DefaultPerformance   datatypes.JSON `gorm:"column:default_performance;type:jsonb"`
	OptimizedPerformance datatypes.JSON `gorm:"column:optimized_performance;type:jsonb"`
	ImprovementByMetric  datatypes.JSON `gorm:"column:improvement_by_metric;type:jsonb"`
	TotalCombinations    int            `gorm:"column:total_combinations"`
	FailedCombinations   int            `gorm:"column:failed_combinations"`
	StartDate            time.Time      `gorm:"column:start_date"`
	EndDate              time.Time      `gorm:"column:end_date"`
	StartedAt            time.Time      `gorm:"column:started_at"`
	CompletedAt          time.Time      `gorm:"column:completed_at;index"`
	CreatedAt            time.Time      `gorm:"autoCreateTime"`
}

func (OptimizationRun) TableName() string {
	return "optimization_runs"
}

func NewOptimizationRun(res *dto.OptimizationResult) (*OptimizationRun, error) {
	run := &OptimizationRun{
		StrategyID:         res.StrategyID,
		Symbol:             res.Symbol,
		Metric:             res.Metric,
		Status:             string(res.Status),
		TotalCombinations:  res.TotalCombinations,
		FailedCombinations: res.FailedCombinations,
		StartDate:          res.StartDate,
		EndDate:            res.EndDate,
		StartedAt:          res.StartedAt,
		CompletedAt:        res.CompletedAt,
	}
	if res.Status == dto.OptimizationCompleted {
		v := res.BestValue
		run.BestValue = &v
	}

	fields := []struct {
		dst *datatypes.JSON
		src interface{}
	}{
		{&run.BestParams, res.BestParams},
		{&run.RankedResults, res.RankedResults},
		{&run.DefaultParams, res.DefaultParams},
		{&run.DefaultPerformance, res.DefaultPerformance},
		{&run.OptimizedPerformance, res.OptimizedPerformance},
		{&run.ImprovementByMetric, res.ImprovementByMetric},
	}
	for _, f := range fields {
		raw, err := json.Marshal(f.src)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal optimization run: %w", err)
		}
		*f.dst = datatypes.JSON(raw)
	}
	return run, nil
}

func (r *OptimizationRun) ToDTO() (*dto.OptimizationResult, error) {
	res := &dto.OptimizationResult{
		RunID:              r.ID,
		StrategyID:         r.StrategyID,
		Symbol:             r.Symbol,
		Metric:             r.Metric,
		Status:             dto.OptimizationStatus(r.Status),
		TotalCombinations:  r.TotalCombinations,
		FailedCombinations: r.FailedCombinations,
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
		StartedAt:          r.StartedAt,
		CompletedAt:        r.CompletedAt,
	}
	if r.BestValue != nil {
		res.BestValue = *r.BestValue
	}

	fields := []struct {
		src datatypes.JSON
		dst interface{}
	}{
		{r.BestParams, &res.BestParams},
		{r.RankedResults, &res.RankedResults},
		{r.DefaultParams, &res.DefaultParams},
		{r.DefaultPerformance, &res.DefaultPerformance},
		{r.OptimizedPerformance, &res.OptimizedPerformance},
		{r.ImprovementByMetric, &res.ImprovementByMetric},
	}
	for _, f := range fields {
		if len(f.src) == 0 {
			continue
		}
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal optimization run %d: %w", r.ID, err)
		}
	}
	// failed combinations are stored with a null score
	for i := range res.RankedResults {
		if res.RankedResults[i].Error != "" {
			res.RankedResults[i].Score = optimizer.Sentinel(r.Metric)
		}
	}
	return res, nil
}
