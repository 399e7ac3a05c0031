package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "data", err: Data("missing close at %d", 3), want: ErrData},
		{name: "strategy wrapped twice", err: fmt.Errorf("combo 4: %w", Strategy("bad window")), want: ErrStrategy},
		{name: "persistence", err: Persistence("insert failed"), want: ErrPersistence},
		{name: "sentinel itself", err: ErrAlreadyRunning, want: ErrAlreadyRunning},
		{name: "unclassified", err: errors.New("boom"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestData_Message(t *testing.T) {
	err := Data("series has %d bars, signals has %d", 5, 4)
	assert.EqualError(t, err, "data error: series has 5 bars, signals has 4")
	assert.ErrorIs(t, err, ErrData)
}
