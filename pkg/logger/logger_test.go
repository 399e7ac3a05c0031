package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingSink) Alert(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func TestWithAlertSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := &recordingSink{}
	log := (&Logger{zap.New(core)}).WithAlertSink(sink)

	log.InfoContext(context.Background(), "Optimization started", StringField("strategy_id", "rsi"))
	log.ErrorContextWithAlert(context.Background(), "Optimization failed", StringField("strategy_id", "rsi"))

	assert.Equal(t, 2, logs.Len())
	for _, entry := range logs.All() {
		_, flagged := entry.ContextMap()[alertFieldKey]
		assert.False(t, flagged, "alert marker must not reach the underlying core")
	}

	assert.Len(t, sink.messages, 1)
	assert.Contains(t, sink.messages[0], "Optimization failed")
	assert.Contains(t, sink.messages[0], "strategy_id: rsi")
}

func TestFromContext(t *testing.T) {
	base := NewNop()
	child := base.With(StringField("run_id", "42"))

	ctx := NewContext(context.Background(), child)
	assert.Same(t, child, base.FromContext(ctx))
	assert.Same(t, base, base.FromContext(context.Background()))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", "json")
	assert.Error(t, err)
}
