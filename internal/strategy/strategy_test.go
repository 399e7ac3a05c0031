package strategy

import (
	"testing"
	"time"

	"golang-quant/internal/dto"
	"golang-quant/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(closes ...float64) dto.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]dto.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = dto.PriceBar{Date: start.AddDate(0, 0, i), Close: c}
	}
	return dto.PriceSeries{Symbol: "TEST", Bars: bars}
}

func nonHold(signals []dto.Signal) map[int]dto.Signal {
	out := map[int]dto.Signal{}
	for i, s := range signals {
		if s != dto.SignalHold {
			out[i] = s
		}
	}
	return out
}

func TestRegistry_List(t *testing.T) {
	r := NewDefaultRegistry()
	infos := r.List()

	ids := make([]string, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}
	assert.Equal(t, []string{BollingerReversion, BuyAndHold, EMACrossover, Momentum, RSI, SMACrossover}, ids)

	defaults, err := r.Defaults(SMACrossover)
	require.NoError(t, err)
	assert.Equal(t, dto.Params{"short_window": 20, "long_window": 50}, defaults)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	def := Definition{ID: "x", New: newBuyAndHold}

	require.NoError(t, r.Register(def))
	assert.Error(t, r.Register(def))
	assert.Error(t, r.Register(Definition{ID: "y"}))
	assert.Panics(t, func() { r.MustRegister(def) })
}

func TestRegistry_Build(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		name     string
		id       string
		override dto.Params
		wantErr  error
	}{
		{name: "defaults", id: RSI},
		{name: "override", id: SMACrossover, override: dto.Params{"short_window": 5}},
		{name: "unknown strategy", id: "nope", wantErr: apperror.ErrNotFound},
		{name: "unknown param", id: RSI, override: dto.Params{"window": 3}, wantErr: apperror.ErrStrategy},
		{name: "fractional window", id: SMACrossover, override: dto.Params{"short_window": 2.5}, wantErr: apperror.ErrStrategy},
		{name: "inverted windows", id: EMACrossover, override: dto.Params{"short_window": 30}, wantErr: apperror.ErrStrategy},
		{name: "inverted rsi bounds", id: RSI, override: dto.Params{"oversold": 80}, wantErr: apperror.ErrStrategy},
		{name: "zero num_std", id: BollingerReversion, override: dto.Params{"num_std": 0}, wantErr: apperror.ErrStrategy},
		{name: "negative lookback", id: Momentum, override: dto.Params{"lookback": -1}, wantErr: apperror.ErrStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := r.Build(tt.id, tt.override)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, s.ID())
			for k, v := range tt.override {
				assert.Equal(t, v, s.Params()[k])
			}
		})
	}
}

func TestSMACrossover_Signals(t *testing.T) {
	s, err := NewDefaultRegistry().Build(SMACrossover, dto.Params{"short_window": 2, "long_window": 3})
	require.NoError(t, err)

	signals, err := s.GenerateSignals(seriesOf(10, 9, 8, 7, 6, 7, 8, 9, 10, 9, 8, 7, 6))
	require.NoError(t, err)

	assert.Equal(t, map[int]dto.Signal{6: dto.SignalBuy, 10: dto.SignalSell}, nonHold(signals))
}

func TestEMACrossover_Signals(t *testing.T) {
	s, err := NewDefaultRegistry().Build(EMACrossover, dto.Params{"short_window": 2, "long_window": 4})
	require.NoError(t, err)

	closes := []float64{20, 19, 18, 17, 16, 15, 14, 13, 14, 16, 18, 20, 22, 24, 22, 19, 16, 13, 10}
	signals, err := s.GenerateSignals(seriesOf(closes...))
	require.NoError(t, err)
	require.Len(t, signals, len(closes))

	assert.Contains(t, signals[8:14], dto.SignalBuy)
	assert.Contains(t, signals[14:], dto.SignalSell)
	assert.NotContains(t, signals[8:14], dto.SignalSell)
}

func TestRSI_Signals(t *testing.T) {
	s, err := NewDefaultRegistry().Build(RSI, dto.Params{"period": 3})
	require.NoError(t, err)

	closes := []float64{50, 48, 46, 44, 42, 40, 38, 36, 40, 45, 50, 55, 60, 65, 70}
	signals, err := s.GenerateSignals(seriesOf(closes...))
	require.NoError(t, err)
	require.Len(t, signals, len(closes))

	assert.Equal(t, dto.SignalHold, signals[0])
	assert.Contains(t, signals[:8], dto.SignalBuy)
	assert.NotContains(t, signals[:8], dto.SignalSell)
	assert.Equal(t, dto.SignalSell, signals[len(signals)-1])
}

func TestBollingerReversion_Signals(t *testing.T) {
	s, err := NewDefaultRegistry().Build(BollingerReversion, dto.Params{"period": 5, "num_std": 1.5})
	require.NoError(t, err)

	signals, err := s.GenerateSignals(seriesOf(100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 80, 100, 100))
	require.NoError(t, err)

	assert.Equal(t, map[int]dto.Signal{10: dto.SignalBuy, 11: dto.SignalSell}, nonHold(signals))
}

func TestMomentum_ShortTreatedAsFlat(t *testing.T) {
	s, err := NewDefaultRegistry().Build(Momentum, dto.Params{"lookback": 2})
	require.NoError(t, err)

	signals, err := s.GenerateSignals(seriesOf(10, 11, 12, 11, 10, 11, 12))
	require.NoError(t, err)

	assert.Equal(t, map[int]dto.Signal{2: dto.SignalBuy, 3: dto.SignalSell, 6: dto.SignalBuy}, nonHold(signals))
}

func TestBuyAndHold_Signals(t *testing.T) {
	s, err := NewDefaultRegistry().Build(BuyAndHold, nil)
	require.NoError(t, err)

	signals, err := s.GenerateSignals(seriesOf(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, []dto.Signal{dto.SignalBuy, dto.SignalHold, dto.SignalHold}, signals)
}

func TestSignalsFromPositions(t *testing.T) {
	got := SignalsFromPositions([]float64{0, 1, 1, -1, -1, 1, 0})
	assert.Equal(t, []dto.Signal{
		dto.SignalHold, dto.SignalBuy, dto.SignalHold, dto.SignalSell, dto.SignalHold, dto.SignalBuy, dto.SignalSell,
	}, got)
}

func TestShortSeries_NoSignals(t *testing.T) {
	r := NewDefaultRegistry()
	for _, info := range r.List() {
		if info.ID == BuyAndHold {
			continue
		}
		s, err := r.Build(info.ID, nil)
		require.NoError(t, err)

		signals, err := s.GenerateSignals(seriesOf(1, 2, 3))
		require.NoError(t, err, info.ID)
		assert.Len(t, signals, 3, info.ID)
		assert.Empty(t, nonHold(signals), info.ID)
	}
}
