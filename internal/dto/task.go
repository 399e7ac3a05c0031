package dto

import "time"

type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

type TaskStatus struct {
	ID          string      `json:"id"`
	Kind        string      `json:"kind"`
	State       TaskState   `json:"state"`
	Error       string      `json:"error,omitempty"`
	Result      interface{} `json:"result,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at"`
	StartedAt   time.Time   `json:"started_at,omitempty"`
	FinishedAt  time.Time   `json:"finished_at,omitempty"`
}

func (t TaskStatus) Done() bool {
	return t.State == TaskSucceeded || t.State == TaskFailed
}
