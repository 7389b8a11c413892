package models

import "github.com/dustguard/dustguard/internal/risk"

// SymptomEntry is one day's checklist.
type SymptomEntry struct {
	Date           string               `json:"date"`
	Symptoms       []risk.SymptomReport `json:"symptoms"`
	OutdoorMinutes *float64             `json:"outdoorMinutes,omitempty"`
	Notes          string               `json:"notes,omitempty"`
	CreatedAt      Timestamp            `json:"createdAt"`
	UpdatedAt      Timestamp            `json:"updatedAt"`
}

// SymptomEntryInput is the body of PUT /v1/me/symptoms/{date}.
type SymptomEntryInput struct {
	Symptoms       []risk.SymptomReport `json:"symptoms"`
	OutdoorMinutes *float64             `json:"outdoorMinutes,omitempty"`
	Notes          string               `json:"notes,omitempty"`
}

// SymptomEntryList is a date range of entries.
type SymptomEntryList struct {
	Items []SymptomEntry `json:"items"`
	Meta  ListMeta       `json:"meta"`
}
