package dto

import (
	"fmt"
	"strings"
)

// Signal is the per-bar directional label a strategy emits.
type Signal int

const (
	SignalHold Signal = 0
	SignalBuy  Signal = 1
	SignalSell Signal = -1
)

func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	default:
		return "hold"
	}
}

// Direction is the signed contribution of the signal: buy +1, sell -1, hold 0.
func (s Signal) Direction() float64 {
	return float64(s)
}

func (s Signal) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Signal) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "buy":
		*s = SignalBuy
	case "sell":
		*s = SignalSell
	case "hold", "":
		*s = SignalHold
	default:
		return fmt.Errorf("unknown signal %q", string(text))
	}
	return nil
}
