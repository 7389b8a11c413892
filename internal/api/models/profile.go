package models

import "github.com/dustguard/dustguard/internal/risk"

// Profile is the health profile returned by GET /v1/me/profile.
type Profile struct {
	Age            int              `json:"age"`
	Conditions     []risk.Condition `json:"conditions"`
	Sensitivity    risk.Sensitivity `json:"sensitivity"`
	Activity       risk.Activity    `json:"activity"`
	WearingMask    bool             `json:"wearingMask"`
	HasAirPurifier bool             `json:"hasAirPurifier"`
	OutdoorMinutes float64          `json:"outdoorMinutes"`
	Scale          risk.ScaleName   `json:"scale,omitempty"`
	Location       *Point           `json:"location,omitempty"`
	Locale         string           `json:"locale"`

	// Stored is false until the user saves a profile; the values are then
	// the defaults.
	Stored    bool       `json:"stored"`
	UpdatedAt *Timestamp `json:"updatedAt,omitempty"`
}

// ProfileInput is the body of PUT /v1/me/profile.
type ProfileInput struct {
	Age            int              `json:"age"`
	Conditions     []risk.Condition `json:"conditions"`
	Sensitivity    risk.Sensitivity `json:"sensitivity"`
	Activity       risk.Activity    `json:"activity"`
	WearingMask    bool             `json:"wearingMask"`
	HasAirPurifier bool             `json:"hasAirPurifier"`
	OutdoorMinutes float64          `json:"outdoorMinutes"`
	Scale          risk.ScaleName   `json:"scale,omitempty"`
	Location       *Point           `json:"location,omitempty"`
	Locale         string           `json:"locale,omitempty"`
}
