package service

import (
	"context"
	"fmt"
	"time"

	"golang-quant/internal/dto"
	"golang-quant/pkg/cache"
	"golang-quant/pkg/logger"
	"golang-quant/pkg/utils"

	"github.com/google/uuid"
)

// noExpiration keeps unfinished tasks pollable until they end.
const noExpiration time.Duration = -1

type TaskFunc func(ctx context.Context) (interface{}, error)

// TaskRunner runs background work behind opaque handles.
type TaskRunner interface {
	Submit(kind string, fn TaskFunc) string
	Poll(id string) (dto.TaskStatus, bool)
}

type taskRunner struct {
	log       *logger.Logger
	tasks     cache.Cache
	retention time.Duration
}

// NewTaskRunner keeps finished task statuses for retention before they are evicted.
func NewTaskRunner(log *logger.Logger, retention time.Duration) TaskRunner {
	if retention <= 0 {
		retention = time.Hour
	}
	return &taskRunner{
		log:       log,
		tasks:     cache.NewCache(retention, retention),
		retention: retention,
	}
}

// Submit starts fn detached from any request context and returns its handle.
func (r *taskRunner) Submit(kind string, fn TaskFunc) string {
	id := uuid.NewString()
	status := dto.TaskStatus{
		ID:          id,
		Kind:        kind,
		State:       dto.TaskPending,
		SubmittedAt: utils.TimeNow(),
	}
	r.store(status)

	utils.GoSafe(r.log, func() {
		status.State = dto.TaskRunning
		status.StartedAt = utils.TimeNow()
		r.store(status)

		var result interface{}
		err := utils.SafeCall(func() error {
			var fnErr error
			result, fnErr = fn(context.Background())
			return fnErr
		})
		status.FinishedAt = utils.TimeNow()
		if err != nil {
			status.State = dto.TaskFailed
			status.Error = err.Error()
			r.log.Warn("Task failed",
				logger.StringField("task_id", id),
				logger.StringField("kind", kind),
				logger.ErrorField(err),
			)
		} else {
			status.State = dto.TaskSucceeded
			status.Result = result
		}
		r.store(status)
	})

	return id
}

func (r *taskRunner) Poll(id string) (dto.TaskStatus, bool) {
	return cache.GetFromCache[dto.TaskStatus](r.tasks, taskKey(id))
}

func (r *taskRunner) store(status dto.TaskStatus) {
	ttl := r.retention
	if !status.Done() {
		ttl = noExpiration
	}
	r.tasks.Set(taskKey(status.ID), status, ttl)
}

func taskKey(id string) string {
	return fmt.Sprintf("task:%s", id)
}
