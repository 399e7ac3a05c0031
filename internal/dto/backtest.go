package dto

// BacktestRequest runs one strategy over one symbol. When Bars is set the
// series is taken as-is instead of being fetched.
type BacktestRequest struct {
	Symbol         string         `json:"symbol" validate:"required_without=Bars"`
	Strategy       string         `json:"strategy" validate:"required"`
	Params         Params         `json:"params"`
	StartDate      string         `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate        string         `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	InitialCapital float64        `json:"initial_capital" validate:"gte=0"`
	Commission     *float64       `json:"commission" validate:"omitempty,gte=0,lt=1"`
	Mode           AccountingMode `json:"mode" validate:"omitempty,oneof=realized mark_to_market"`
	Bars           []PriceBar     `json:"bars"`
}

type BacktestResponse struct {
	Symbol   string            `json:"symbol"`
	Strategy string            `json:"strategy"`
	Params   Params            `json:"params"`
	Outcome  SimulationOutcome `json:"outcome"`
}

type OptimizeRequest struct {
	Symbol    string        `json:"symbol" validate:"required_without=Bars"`
	Strategy  string        `json:"strategy" validate:"required"`
	Grid      ParameterGrid `json:"grid" validate:"required,min=1"`
	Metric    string        `json:"metric"`
	Workers   int           `json:"workers" validate:"gte=0"`
	StartDate string        `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string        `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Bars      []PriceBar    `json:"bars"`
}

type WeightsRequest struct {
	Assets        []string `json:"assets"`
	Strategies    []string `json:"strategies"`
	GoalMetric    string   `json:"goal_metric"`
	LookbackYears int      `json:"lookback_years" validate:"gte=0"`
	Workers       int      `json:"workers" validate:"gte=0"`
}

type SubmitResponse struct {
	TaskID string `json:"task_id"`
	Scope  string `json:"scope"`
}

type StrategyInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Defaults    Params `json:"defaults"`
}
