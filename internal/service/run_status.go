package service

import (
	"sync"
	"time"

	"golang-quant/internal/dto"
	"golang-quant/internal/optimizer"
	"golang-quant/pkg/apperror"
	"golang-quant/pkg/utils"
)

// runBoard owns the status record of every scope. All reads return copies.
type runBoard struct {
	mu   sync.Mutex
	runs map[string]*runEntry
}

type runEntry struct {
	status  dto.RunStatus
	tracker *optimizer.Tracker
	// last holds the most recent finished result for when persistence failed.
	last interface{}
}

func newRunBoard() *runBoard {
	return &runBoard{runs: make(map[string]*runEntry)}
}

// begin marks scope as running or fails with ErrAlreadyRunning.
func (b *runBoard) begin(scope string, tracker *optimizer.Tracker) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.runs[scope]
	if ok && entry.status.InProgress {
		return apperror.ErrAlreadyRunning
	}
	if !ok {
		entry = &runEntry{}
		b.runs[scope] = entry
	}
	entry.tracker = tracker
	entry.status = dto.RunStatus{
		Scope:      scope,
		State:      dto.RunStateRunning,
		InProgress: true,
		StartedAt:  utils.TimeNow(),
	}
	return nil
}

func (b *runBoard) attachTask(scope, taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, ok := b.runs[scope]; ok && entry.status.InProgress {
		entry.status.TaskID = taskID
	}
}

// finish closes the running record of scope. result may be nil.
func (b *runBoard) finish(scope string, state dto.RunState, result interface{}, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.runs[scope]
	if !ok {
		return
	}
	if entry.tracker != nil {
		entry.status.Progress = entry.tracker.Snapshot()
		entry.status.Percent = entry.status.Progress.Percent()
		entry.tracker = nil
	}
	entry.status.State = state
	entry.status.InProgress = false
	entry.status.FinishedAt = utils.TimeNow()
	if err != nil {
		entry.status.Error = err.Error()
	}
	if result != nil {
		entry.last = result
	}
}

func (b *runBoard) snapshot(scope string) dto.RunStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.runs[scope]
	if !ok {
		return dto.RunStatus{Scope: scope, State: dto.RunStateIdle}
	}
	status := entry.status
	if entry.tracker != nil {
		status.Progress = entry.tracker.Snapshot()
		status.Percent = status.Progress.Percent()
	}
	return status
}

func (b *runBoard) inProgress(scope string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.runs[scope]
	return ok && entry.status.InProgress
}

func (b *runBoard) lastResult(scope string) interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, ok := b.runs[scope]; ok {
		return entry.last
	}
	return nil
}

func elapsedSince(t time.Time) time.Duration {
	return utils.TimeNow().Sub(t)
}
