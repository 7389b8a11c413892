package models

import (
	"errors"

	"github.com/dustguard/dustguard/internal/risk"
)

// ComputeRequest is the body of POST /v1/risk:compute.
type ComputeRequest struct {
	Reading risk.EnvironmentalReading `json:"reading"`
	Factors risk.PersonalFactors      `json:"factors"`

	// Scale defaults to the point scale.
	Scale risk.ScaleName `json:"scale,omitempty"`
}

// ComputeResponse wraps a computed score.
type ComputeResponse struct {
	risk.RiskScore
	ComputedAt Timestamp `json:"computedAt"`
}

// ScalesResponse describes the active scoring table and the accepted enum
// values.
type ScalesResponse struct {
	DefaultScale  risk.ScaleName `json:"defaultScale"`
	Table         *risk.Table    `json:"table"`
	Conditions    []string       `json:"conditions"`
	Sensitivities []string       `json:"sensitivities"`
	Activities    []string       `json:"activities"`
	Symptoms      []string       `json:"symptoms"`
}

// NewScalesResponse builds the metadata for table.
func NewScalesResponse(table *risk.Table, defaultScale risk.ScaleName) ScalesResponse {
	resp := ScalesResponse{
		DefaultScale:  defaultScale,
		Table:         table,
		Sensitivities: []string{string(risk.SensitivityLow), string(risk.SensitivityModerate), string(risk.SensitivityHigh)},
		Activities:    []string{string(risk.ActivitySedentary), string(risk.ActivityActive)},
	}
	for _, c := range risk.AllConditions() {
		resp.Conditions = append(resp.Conditions, string(c))
	}
	for _, s := range risk.AllSymptoms() {
		resp.Symptoms = append(resp.Symptoms, string(s))
	}
	return resp
}

// FieldErrorFromRisk converts an engine input error into a field error. It
// returns false for other errors.
func FieldErrorFromRisk(err error) (FieldError, bool) {
	var verr *risk.ValidationError
	if errors.As(err, &verr) {
		return FieldError{Field: verr.Field, Message: verr.Error(), Code: "invalid_value"}, true
	}
	var eerr *risk.InvalidEnumError
	if errors.As(err, &eerr) {
		return FieldError{Field: eerr.Field, Message: eerr.Error(), Code: "invalid_enum"}, true
	}
	return FieldError{}, false
}
