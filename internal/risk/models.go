// Package risk computes the Personal Health Risk Index (PHRI) from an
// air-quality reading and a user's personal factors.
//
// Scoring is driven by a scale table (see Table). Two scales ship built in:
//
//   - point: the 0-10 PHRI built from additive sub-scores
//     (environmental, personal, behavioral, symptoms) minus protective
//     measures.
//   - weighted: the 0-100 index combining an interpolated environmental
//     component (60%) with a symptom checklist score (40%).
//
// An Engine holds a private copy of its table and keeps no other state, so
// Compute may be called concurrently without synchronization. Identical
// inputs always produce identical results.
package risk

import "math"

// Condition is a chronic health condition that raises vulnerability.
type Condition string

const (
	ConditionAsthma            Condition = "asthma"
	ConditionCOPD              Condition = "copd"
	ConditionHeartDisease      Condition = "heart_disease"
	ConditionDiabetes          Condition = "diabetes"
	ConditionHypertension      Condition = "hypertension"
	ConditionAllergy           Condition = "allergy"
	ConditionSinusitis         Condition = "sinusitis"
	ConditionPregnant          Condition = "pregnant"
	ConditionImmunocompromised Condition = "immunocompromised"
)

// AllConditions returns every known condition in a stable order.
func AllConditions() []Condition {
	return []Condition{
		ConditionAsthma,
		ConditionCOPD,
		ConditionHeartDisease,
		ConditionDiabetes,
		ConditionHypertension,
		ConditionAllergy,
		ConditionSinusitis,
		ConditionPregnant,
		ConditionImmunocompromised,
	}
}

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	for _, known := range AllConditions() {
		if c == known {
			return true
		}
	}
	return false
}

// Sensitivity is the user's self-reported sensitivity to dust.
type Sensitivity string

const (
	SensitivityLow      Sensitivity = "low"
	SensitivityModerate Sensitivity = "moderate"
	SensitivityHigh     Sensitivity = "high"
)

// Valid reports whether s is a known sensitivity level.
func (s Sensitivity) Valid() bool {
	switch s {
	case SensitivityLow, SensitivityModerate, SensitivityHigh:
		return true
	}
	return false
}

// Activity is the user's physical activity level while outdoors.
type Activity string

const (
	ActivitySedentary Activity = "sedentary"
	ActivityActive    Activity = "active"
)

// Valid reports whether a is a known activity level.
func (a Activity) Valid() bool {
	return a == ActivitySedentary || a == ActivityActive
}

// EnvironmentalReading is the air-quality input to a computation.
// It comes from an external provider and is treated as untrusted.
type EnvironmentalReading struct {
	PM25        float64  `json:"pm25"`
	AQI         float64  `json:"aqi"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

// PersonalFactors describes the person being assessed.
type PersonalFactors struct {
	Age                int             `json:"age"`
	ChronicConditions  []Condition     `json:"chronicConditions"`
	DustSensitivity    Sensitivity     `json:"dustSensitivity"`
	OutdoorTimeMinutes float64         `json:"outdoorTimeMinutes"`
	PhysicalActivity   Activity        `json:"physicalActivity"`
	WearingMask        bool            `json:"wearingMask"`
	HasAirPurifier     bool            `json:"hasAirPurifier"`
	HasSymptoms        bool            `json:"hasSymptoms"`
	Symptoms           []SymptomReport `json:"symptoms,omitempty"`
}

// HasCondition reports whether the factors include condition c.
func (f PersonalFactors) HasCondition(c Condition) bool {
	for _, have := range f.ChronicConditions {
		if have == c {
			return true
		}
	}
	return false
}

// HasAnyCondition reports whether any of conds is present.
func (f PersonalFactors) HasAnyCondition(conds []Condition) bool {
	for _, c := range conds {
		if f.HasCondition(c) {
			return true
		}
	}
	return false
}

// HasHealthConditions reports whether any chronic condition is present.
func (f PersonalFactors) HasHealthConditions() bool {
	return len(f.ChronicConditions) > 0
}

// AnySymptomPresent reports whether the user flagged symptoms, either through
// HasSymptoms or through the checklist.
func (f PersonalFactors) AnySymptomPresent() bool {
	if f.HasSymptoms {
		return true
	}
	for _, s := range f.Symptoms {
		if s.Present {
			return true
		}
	}
	return false
}

// ScaleName selects a scoring scale from the table.
type ScaleName string

const (
	ScalePoint    ScaleName = "point"
	ScaleWeighted ScaleName = "weighted"
)

// Category is the label derived from a score via the scale's cutoffs.
type Category string

const (
	CategorySafe      Category = "safe"
	CategoryWarning   Category = "warning"
	CategoryUrgent    Category = "urgent"
	CategoryEmergency Category = "emergency"
)

// Contribution is one named term of a score.
// Reducing terms are stored as positive magnitudes and subtracted.
type Contribution struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Reduces bool    `json:"reduces,omitempty"`
}

// Breakdown lists the contributing terms of a score in display order.
type Breakdown []Contribution

// Value returns the magnitude of the named term, or 0 if absent.
func (b Breakdown) Value(name string) float64 {
	for _, c := range b {
		if c.Name == name {
			return c.Value
		}
	}
	return 0
}

// Names returns the term names in order.
func (b Breakdown) Names() []string {
	names := make([]string, len(b))
	for i, c := range b {
		names[i] = c.Name
	}
	return names
}

// Sum adds the additive terms and subtracts the reducing ones.
func (b Breakdown) Sum() float64 {
	var total float64
	for _, c := range b {
		if c.Reduces {
			total -= c.Value
		} else {
			total += c.Value
		}
	}
	return total
}

// RiskScore is the immutable result of a computation.
type RiskScore struct {
	// Scale is the scale the score was computed on.
	Scale ScaleName `json:"scale"`

	// Value is Raw clamped to the scale bounds and rounded to its precision.
	Value float64 `json:"value"`

	// Raw is the unclamped sum of the breakdown.
	Raw float64 `json:"raw"`

	// Category is the band Value falls in.
	Category Category `json:"category"`

	// Breakdown holds the terms whose sum is Raw.
	Breakdown Breakdown `json:"breakdown"`

	// Detail holds informational sub-terms that are not part of the sum.
	Detail map[string]float64 `json:"detail,omitempty"`

	// Clamped names input fields that were out of domain and clamped.
	Clamped []string `json:"clamped,omitempty"`
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func roundTo(v float64, precision int) float64 {
	if precision <= 0 {
		return math.Round(v)
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
