// Package symptom stores the daily symptom checklist a user fills in.
//
// One entry exists per user and calendar date. Logging again for the same
// date replaces the earlier answers.
package symptom

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustguard/dustguard/internal/risk"
)

// DateLayout is the calendar date format used for entries.
const DateLayout = "2006-01-02"

// MaxRangeDays bounds List queries.
const MaxRangeDays = 366

// Errors.
var (
	ErrEntryNotFound = errors.New("symptom entry not found")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidRange  = errors.New("invalid date range")
	ErrInvalidEntry  = errors.New("invalid symptom entry")
)

// Entry is one day's checklist.
type Entry struct {
	ID       string
	UserID   string
	Date     string
	Symptoms []risk.SymptomReport

	// OutdoorMinutes overrides the profile's usual outdoor time for the day.
	OutdoorMinutes *float64

	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AnyPresent reports whether at least one symptom was ticked.
func (e *Entry) AnyPresent() bool {
	if e == nil {
		return false
	}
	for _, s := range e.Symptoms {
		if s.Present {
			return true
		}
	}
	return false
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func copyEntry(e *Entry) *Entry {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Symptoms = append([]risk.SymptomReport(nil), e.Symptoms...)
	if e.OutdoorMinutes != nil {
		v := *e.OutdoorMinutes
		cpy.OutdoorMinutes = &v
	}
	return &cpy
}
