package strategy

import (
	"math"

	"golang-quant/internal/dto"
	"golang-quant/pkg/apperror"
)

func intParam(params dto.Params, name string, min int) (int, error) {
	v, ok := params[name]
	if !ok {
		return 0, apperror.Strategy("missing parameter %q", name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, apperror.Strategy("parameter %q must be a whole number, got %v", name, v)
	}
	if int(v) < min {
		return 0, apperror.Strategy("parameter %q must be >= %d, got %v", name, min, v)
	}
	return int(v), nil
}

func floatParam(params dto.Params, name string) (float64, error) {
	v, ok := params[name]
	if !ok {
		return 0, apperror.Strategy("missing parameter %q", name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperror.Strategy("parameter %q must be finite, got %v", name, v)
	}
	return v, nil
}
