package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang-quant/internal/dto"

	"gorm.io/datatypes"
)

type WeightingRun struct {
	ID              int64          `gorm:"primaryKey;autoIncrement"`
	GoalMetric      string         `gorm:"column:goal_metric;type:varchar(50);not null"`
	LookbackYears   int            `gorm:"column:lookback_years"`
	AssetCount      int            `gorm:"column:asset_count"`
	Skipped         datatypes.JSON `gorm:"column:skipped;type:jsonb"`
	FallbackBatches int            `gorm:"column:fallback_batches"`
	StartedAt       time.Time      `gorm:"column:started_at"`
	CompletedAt     time.Time      `gorm:"column:completed_at;index"`
	CreatedAt       time.Time      `gorm:"autoCreateTime"`
	Entries         []WeightEntry  `gorm:"foreignKey:RunID"`
}

func (WeightingRun) TableName() string {
	return "weighting_runs"
}

type WeightEntry struct {
	ID         int64          `gorm:"primaryKey;autoIncrement"`
	RunID      int64          `gorm:"column:run_id;not null;index"`
	Asset      string         `gorm:"column:asset;type:varchar(50);not null"`
	StrategyID string         `gorm:"column:strategy_id;type:varchar(100);not null"`
	Variant    string         `gorm:"column:variant;type:varchar(20);not null"`
	Params     datatypes.JSON `gorm:"column:params;type:jsonb"`
	Weight     float64        `gorm:"column:weight"`
	Score      float64        `gorm:"column:score"`
	Metrics    datatypes.JSON `gorm:"column:metrics;type:jsonb"`
	Error      string         `gorm:"column:error;type:text"`
}

func (WeightEntry) TableName() string {
	return "weight_entries"
}

func NewWeightingRun(res *dto.WeightingResult) (*WeightingRun, error) {
	skipped, err := json.Marshal(res.Skipped)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal skipped assets: %w", err)
	}

	run := &WeightingRun{
		GoalMetric:      res.GoalMetric,
		LookbackYears:   res.LookbackYears,
		AssetCount:      len(res.Weights),
		Skipped:         datatypes.JSON(skipped),
		FallbackBatches: res.FallbackBatches,
		StartedAt:       res.StartedAt,
		CompletedAt:     res.CompletedAt,
	}

	assets := make([]string, 0, len(res.Weights))
	for asset := range res.Weights {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	for _, asset := range assets {
		for _, e := range res.Weights[asset] {
			params, err := json.Marshal(e.Params)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal params of %s/%s: %w", asset, e.Strategy, err)
			}
			metrics, err := json.Marshal(e.Metrics)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal metrics of %s/%s: %w", asset, e.Strategy, err)
			}
			run.Entries = append(run.Entries, WeightEntry{
				Asset:      e.Asset,
				StrategyID: e.Strategy,
				Variant:    string(e.Variant),
				Params:     datatypes.JSON(params),
				Weight:     e.Weight,
				Score:      e.Score,
				Metrics:    datatypes.JSON(metrics),
				Error:      e.Error,
			})
		}
	}
	return run, nil
}

func (r *WeightingRun) ToDTO() (*dto.WeightingResult, error) {
	res := &dto.WeightingResult{
		RunID:           r.ID,
		GoalMetric:      r.GoalMetric,
		LookbackYears:   r.LookbackYears,
		Weights:         make(map[string][]dto.WeightEntry),
		FallbackBatches: r.FallbackBatches,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
	}
	if len(r.Skipped) > 0 {
		if err := json.Unmarshal(r.Skipped, &res.Skipped); err != nil {
			return nil, fmt.Errorf("failed to unmarshal skipped assets of run %d: %w", r.ID, err)
		}
	}

	for _, e := range r.Entries {
		entry := dto.WeightEntry{
			Asset:    e.Asset,
			Strategy: e.StrategyID,
			Variant:  dto.ParameterVariant(e.Variant),
			Weight:   e.Weight,
			Score:    e.Score,
			Error:    e.Error,
		}
		if len(e.Params) > 0 {
			if err := json.Unmarshal(e.Params, &entry.Params); err != nil {
				return nil, fmt.Errorf("failed to unmarshal params of entry %d: %w", e.ID, err)
			}
		}
		if len(e.Metrics) > 0 {
			if err := json.Unmarshal(e.Metrics, &entry.Metrics); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metrics of entry %d: %w", e.ID, err)
			}
		}
		res.Weights[e.Asset] = append(res.Weights[e.Asset], entry)
	}
	return res, nil
}
