package optimizer

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang-quant/internal/dto"
)

// Tracker accumulates progress of one run. Workers call Record, pollers call
// Snapshot; both are safe for concurrent use.
type Tracker struct {
	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	mu            sync.Mutex
	started       time.Time
	finished      time.Time
	lowerIsBetter bool
	best          float64
	hasBest       bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) start(total int, lowerIsBetter bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total.Store(int64(total))
	t.started = time.Now()
	t.lowerIsBetter = lowerIsBetter
}

func (t *Tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = time.Now()
}

// Record counts one finished evaluation.
func (t *Tracker) Record(score float64, failed bool) {
	if failed {
		t.failed.Add(1)
	} else if !math.IsInf(score, 0) && !math.IsNaN(score) {
		t.mu.Lock()
		if !t.hasBest || t.better(score, t.best) {
			t.best = score
			t.hasBest = true
		}
		t.mu.Unlock()
	}
	t.completed.Add(1)
}

func (t *Tracker) better(a, b float64) bool {
	if t.lowerIsBetter {
		return a < b
	}
	return a > b
}

func (t *Tracker) Snapshot() dto.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := dto.Progress{
		Completed: int(t.completed.Load()),
		Total:     int(t.total.Load()),
		Failed:    int(t.failed.Load()),
	}
	switch {
	case !t.finished.IsZero():
		p.Elapsed = t.finished.Sub(t.started)
	case !t.started.IsZero():
		p.Elapsed = time.Since(t.started)
	}
	if t.hasBest {
		best := t.best
		p.BestScore = &best
	}
	return p
}
