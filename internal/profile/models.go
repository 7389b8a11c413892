// Package profile manages the health profile each user keeps.
//
// # Health data
//
// The profile holds self-reported health information (age, chronic
// conditions, dust sensitivity). It is used only to compute the user's risk
// index and is removed with the account.
package profile

import (
	"errors"
	"time"

	"github.com/dustguard/dustguard/internal/risk"
	"github.com/dustguard/dustguard/internal/symptom"
)

// Errors.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoLocation      = errors.New("profile has no location")
)

// Defaults for a user who has not filled in a profile.
const (
	DefaultAge            = 30
	DefaultOutdoorMinutes = 60
	DefaultLocale         = "en"
)

// Location is where the user's readings are taken.
type Location struct {
	Lat float64
	Lon float64
}

// Profile is a user's health profile.
type Profile struct {
	UserID         string
	Age            int
	Conditions     []risk.Condition
	Sensitivity    risk.Sensitivity
	Activity       risk.Activity
	WearingMask    bool
	HasAirPurifier bool

	// OutdoorMinutes is the usual daily time outdoors. A symptom entry can
	// override it for a day.
	OutdoorMinutes float64

	// Scale is the preferred risk scale. Empty means the service default.
	Scale risk.ScaleName

	Location *Location
	Locale   string

	// Stored is false for the default profile returned to users who have not
	// saved one.
	Stored bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultProfile returns the profile used until the user saves one.
func DefaultProfile(userID string) *Profile {
	return &Profile{
		UserID:         userID,
		Age:            DefaultAge,
		Conditions:     []risk.Condition{},
		Sensitivity:    risk.SensitivityModerate,
		Activity:       risk.ActivitySedentary,
		OutdoorMinutes: DefaultOutdoorMinutes,
		Locale:         DefaultLocale,
	}
}

// Factors builds the engine's personal factors from the profile and the
// day's symptom entry, which may be nil.
func Factors(p *Profile, day *symptom.Entry) risk.PersonalFactors {
	f := risk.PersonalFactors{
		Age:                p.Age,
		ChronicConditions:  append([]risk.Condition(nil), p.Conditions...),
		DustSensitivity:    p.Sensitivity,
		OutdoorTimeMinutes: p.OutdoorMinutes,
		PhysicalActivity:   p.Activity,
		WearingMask:        p.WearingMask,
		HasAirPurifier:     p.HasAirPurifier,
	}

	if day != nil {
		f.Symptoms = append([]risk.SymptomReport(nil), day.Symptoms...)
		f.HasSymptoms = day.AnyPresent()
		if day.OutdoorMinutes != nil {
			f.OutdoorTimeMinutes = *day.OutdoorMinutes
		}
	}
	return f
}

func copyProfile(p *Profile) *Profile {
	if p == nil {
		return nil
	}
	cpy := *p
	cpy.Conditions = append([]risk.Condition{}, p.Conditions...)
	if p.Location != nil {
		loc := *p.Location
		cpy.Location = &loc
	}
	return &cpy
}
