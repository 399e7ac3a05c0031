package postgres

import (
	"testing"

	"golang-quant/pkg/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want gormlogger.LogLevel
	}{
		{in: "Silent", want: gormlogger.Silent},
		{in: "error", want: gormlogger.Error},
		{in: "Info", want: gormlogger.Info},
		{in: "Warn", want: gormlogger.Warn},
		{in: "", want: gormlogger.Warn},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, gormLogLevel(tt.in))
		})
	}
}

func TestGormWriter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := &gormWriter{log: &logger.Logger{Logger: zap.New(core)}}

	w.Printf("%s [%.3fms] %s\n", "slow query", 812.5, "SELECT 1")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, "slow query [812.500ms] SELECT 1", entries[0].Message)
	}
}
