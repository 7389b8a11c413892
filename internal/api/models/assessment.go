package models

import "github.com/dustguard/dustguard/internal/risk"

// Assessment is a stored daily risk index.
type Assessment struct {
	ID             string             `json:"id"`
	Date           string             `json:"date"`
	Scale          risk.ScaleName     `json:"scale"`
	Value          float64            `json:"value"`
	Raw            float64            `json:"raw"`
	Category       risk.Category      `json:"category"`
	Breakdown      risk.Breakdown     `json:"breakdown"`
	Detail         map[string]float64 `json:"detail,omitempty"`
	Clamped        []string           `json:"clamped,omitempty"`
	Reading        Reading            `json:"reading"`
	SymptomsLogged bool               `json:"symptomsLogged"`
	Alert          *AlertOutcome      `json:"alert,omitempty"`
	CreatedAt      Timestamp          `json:"createdAt"`
	UpdatedAt      Timestamp          `json:"updatedAt"`
}

// Reading is the air-quality reading an assessment was computed from.
type Reading struct {
	StationName string    `json:"stationName,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	PM25        float64   `json:"pm25"`
	AQI         float64   `json:"aqi"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	MeasuredAt  Timestamp `json:"measuredAt"`
}

// AlertOutcome reports whether the assessment triggered an alert.
type AlertOutcome struct {
	Kind   string `json:"kind"`
	Sent   bool   `json:"sent"`
	Reason string `json:"reason,omitempty"`
}

// AssessRequest is the optional body of POST /v1/me/risk/assessments.
type AssessRequest struct {
	// Date defaults to today in the service time zone.
	Date string `json:"date,omitempty"`
}

// AssessmentList is a date range of assessments.
type AssessmentList struct {
	Items []Assessment `json:"items"`
	Meta  ListMeta     `json:"meta"`
}
