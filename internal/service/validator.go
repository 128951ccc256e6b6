package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/domain"
)

// ParameterValidator turns raw caller input into a validated, clamped
// GenerationRequest. Out-of-range numeric values are silently clamped to the
// nearest bound; only a missing question or a non-numeric parameter is an
// error. Pure function of its input.
type ParameterValidator struct {
	defaults domain.Parameters
}

// NewParameterValidator creates a validator with the process-wide defaults
// applied when a parameter is absent.
func NewParameterValidator(defaults domain.Parameters) *ParameterValidator {
	return &ParameterValidator{defaults: defaults}
}

// Validate checks the question (accepted from either `question` or
// `user_input`) and validates the numeric parameters.
func (v *ParameterValidator) Validate(raw domain.RawGenerationRequest) (domain.GenerationRequest, error) {
	question := strings.TrimSpace(raw.Question)
	if question == "" {
		question = strings.TrimSpace(raw.UserInput)
	}
	if question == "" {
		return domain.GenerationRequest{}, &domain.ErrValidation{
			Code:    "missing_input",
			Message: "question or user_input is required",
		}
	}

	params, err := v.Params(raw)
	if err != nil {
		return domain.GenerationRequest{}, err
	}

	return domain.GenerationRequest{Question: question, Params: params}, nil
}

// Params validates and clamps just the numeric generation parameters,
// applying defaults for absent values.
func (v *ParameterValidator) Params(raw domain.RawGenerationRequest) (domain.Parameters, error) {
	maxLength, err := coerceFloat("max_length", raw.MaxLength, float64(v.defaults.MaxLength))
	if err != nil {
		return domain.Parameters{}, err
	}
	temperature, err := coerceFloat("temperature", raw.Temperature, v.defaults.Temperature)
	if err != nil {
		return domain.Parameters{}, err
	}
	topP, err := coerceFloat("top_p", raw.TopP, v.defaults.TopP)
	if err != nil {
		return domain.Parameters{}, err
	}

	// Clamp before the int conversion: a float beyond the int range would
	// overflow the conversion and land on the wrong bound.
	return domain.Parameters{
		MaxLength:   int(clampFloat(maxLength, 1, 2048)),
		Temperature: clampFloat(temperature, 0.0, 2.0),
		TopP:        clampFloat(topP, 0.0, 1.0),
	}, nil
}

// Delay coerces a raw delay-in-seconds value, falling back when absent.
// Range enforcement (floor, default) is the dispatcher's concern.
func (v *ParameterValidator) Delay(raw any, fallback time.Duration) (time.Duration, error) {
	seconds, err := coerceFloat("delay", raw, fallback.Seconds())
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// coerceFloat accepts the value shapes the HTTP layer produces: nil for
// absent, float64 from JSON bodies, strings from query parameters.
func coerceFloat(field string, value any, fallback float64) (float64, error) {
	var f float64
	switch t := value.(type) {
	case nil:
		return fallback, nil
	case float64:
		f = t
	case int:
		f = float64(t)
	case json.Number:
		v, err := t.Float64()
		if err != nil {
			return 0, badType(field, value)
		}
		f = v
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return fallback, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, badType(field, value)
		}
		f = v
	default:
		return 0, badType(field, value)
	}

	// "NaN" and "Inf" parse as valid floats but have no usable ordering
	// against the clamp bounds, and the backend payload cannot carry them.
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, badType(field, value)
	}
	return f, nil
}

func badType(field string, value any) error {
	return &domain.ErrValidation{
		Code:    "bad_type",
		Message: fmt.Sprintf("%s must be numeric, got %T", field, value),
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
