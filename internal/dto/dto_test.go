package dto

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Key(t *testing.T) {
	p := Params{"short_window": 20, "long_window": 50}
	assert.Equal(t, "long_window=50,short_window=20", p.Key())
}

func TestParams_Merge(t *testing.T) {
	defaults := Params{"period": 14, "oversold": 30}
	merged := defaults.Merge(Params{"period": 7})

	assert.Equal(t, Params{"period": 7, "oversold": 30}, merged)
	assert.Equal(t, 14.0, defaults["period"])
}

func TestParseStrategyVariant(t *testing.T) {
	tests := []struct {
		in      string
		want    StrategyVariant
		wantErr bool
	}{
		{in: "rsi", want: StrategyVariant{StrategyID: "rsi", Variant: VariantOriginal}},
		{in: "sma_crossover:optimized", want: StrategyVariant{StrategyID: "sma_crossover", Variant: VariantOptimized}},
		{in: "rsi:tuned", wantErr: true},
		{in: ":optimized", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategyVariant(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPriceBar_UnmarshalMissingClose(t *testing.T) {
	var bars []PriceBar
	require.NoError(t, json.Unmarshal([]byte(`[
		{"date": "2024-01-02T00:00:00Z", "close": 101.5},
		{"date": "2024-01-03T00:00:00Z", "close": null},
		{"date": "2024-01-04T00:00:00Z", "open": 99}
	]`), &bars))

	require.Len(t, bars, 3)
	assert.Equal(t, 101.5, bars[0].Close)
	assert.True(t, math.IsNaN(bars[1].Close))
	assert.True(t, math.IsNaN(bars[2].Close))
	assert.Equal(t, 99.0, bars[2].Open)
	assert.Equal(t, 2024, bars[2].Date.Year())
}

func TestRankedResult_JSONSentinel(t *testing.T) {
	r := RankedResult{Rank: 3, Params: Params{"period": 2}, Score: math.Inf(-1), Error: "strategy error: bad"}

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"score":null`)

	var back RankedResult
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, math.IsNaN(back.Score))
	assert.True(t, back.Failed())
	assert.Equal(t, 3, back.Rank)
}

func TestSignal_Text(t *testing.T) {
	raw, err := json.Marshal([]Signal{SignalBuy, SignalHold, SignalSell})
	require.NoError(t, err)
	assert.Equal(t, `["buy","hold","sell"]`, string(raw))

	var back []Signal
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, []Signal{SignalBuy, SignalHold, SignalSell}, back)
}

func TestPerformanceMetrics_Value(t *testing.T) {
	m := PerformanceMetrics{SharpeRatio: 1.5, TradeCount: 4}
	for _, name := range MetricNames {
		_, ok := m.Value(name)
		assert.True(t, ok, name)
	}
	v, _ := m.Value(MetricTradeCount)
	assert.Equal(t, 4.0, v)
	_, ok := m.Value("alpha")
	assert.False(t, ok)
}
