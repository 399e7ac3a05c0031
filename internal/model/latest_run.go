package model

import "time"

const (
	RunKindOptimization = "optimization"
	RunKindWeighting    = "weighting"
)

// LatestRun points at the most recent completed run of a (kind, scope).
type LatestRun struct {
	Kind      string    `gorm:"column:kind;type:varchar(30);primaryKey"`
	Scope     string    `gorm:"column:scope;type:varchar(100);primaryKey"`
	RunID     int64     `gorm:"column:run_id;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (LatestRun) TableName() string {
	return "latest_runs"
}
