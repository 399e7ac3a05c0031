package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeCall(t *testing.T) {
	err := SafeCall(func() error { panic("window must be positive") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window must be positive")

	want := errors.New("plain")
	assert.Equal(t, want, SafeCall(func() error { return want }))
	assert.NoError(t, SafeCall(func() error { return nil }))
}

func TestElapsedDays(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.InDelta(t, 366.0, ElapsedDays(from, from.AddDate(1, 0, 0)), 1e-9)
	assert.InDelta(t, 0.5, ElapsedDays(from, from.Add(12*time.Hour)), 1e-9)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2023-06-30")
	require.NoError(t, err)
	assert.Equal(t, 2023, d.Year())

	zero, err := ParseDate("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = ParseDate("30/06/2023")
	assert.Error(t, err)
}

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "12.50%", FormatPercentage(0.125))
	assert.Equal(t, "-3.00%", FormatPercentage(-0.03))
}
