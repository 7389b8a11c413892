// Package assessment computes and stores a user's daily risk index.
//
// An assessment combines the user's health profile, the air-quality reading
// at the profile location and that day's symptom checklist. There is at most
// one assessment per user and date; assessing again replaces it.
package assessment

import (
	"errors"
	"time"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/alert"
	"github.com/dustguard/dustguard/internal/risk"
)

// Errors.
var (
	ErrAssessmentNotFound = errors.New("assessment not found")
)

// ReadingSnapshot is the part of the air-quality reading kept with an
// assessment.
type ReadingSnapshot struct {
	StationName string    `json:"stationName,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	PM25        float64   `json:"pm25"`
	AQI         float64   `json:"aqi"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	MeasuredAt  time.Time `json:"measuredAt"`
}

func snapshot(r *airquality.Reading) ReadingSnapshot {
	return ReadingSnapshot{
		StationName: r.StationName,
		Provider:    r.Provider,
		PM25:        r.PM25,
		AQI:         r.AQI,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		MeasuredAt:  r.MeasuredAt,
	}
}

// AlertOutcome records what the alert evaluation decided.
type AlertOutcome struct {
	Kind alert.Kind `json:"kind"`

	// Sent is false when the alert was suppressed or delivery failed.
	Sent bool `json:"sent"`

	Reason string `json:"reason,omitempty"`
}

// Assessment is one stored daily risk computation.
type Assessment struct {
	ID             string
	UserID         string
	Date           string
	Scale          risk.ScaleName
	Value          float64
	Raw            float64
	Category       risk.Category
	Breakdown      risk.Breakdown
	Detail         map[string]float64
	Clamped        []string
	Reading        ReadingSnapshot
	SymptomsLogged bool
	Alert          *AlertOutcome
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PointValue is the value on the 0-10 scale alerts are evaluated on.
func (a *Assessment) PointValue() float64 {
	return alert.NormalizeToPoint(a.Value, a.Scale)
}

func copyAssessment(a *Assessment) *Assessment {
	if a == nil {
		return nil
	}
	cpy := *a
	cpy.Breakdown = append(risk.Breakdown(nil), a.Breakdown...)
	if a.Detail != nil {
		cpy.Detail = make(map[string]float64, len(a.Detail))
		for k, v := range a.Detail {
			cpy.Detail[k] = v
		}
	}
	cpy.Clamped = append([]string(nil), a.Clamped...)
	if a.Alert != nil {
		outcome := *a.Alert
		cpy.Alert = &outcome
	}
	return &cpy
}
