package risk

import "fmt"

// Engine computes risk scores against an immutable scale table.
type Engine struct {
	table *Table
}

// NewEngine validates t and returns an engine over a private copy of it.
func NewEngine(t *Table) (*Engine, error) {
	if t == nil {
		return nil, tableErrorf("nil table")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Engine{table: t.Clone()}, nil
}

var defaultEngine = &Engine{table: DefaultTable()}

// Default returns the engine over the built-in table.
func Default() *Engine {
	return defaultEngine
}

// Compute scores reading and factors on the named scale using the built-in
// table.
func Compute(reading EnvironmentalReading, factors PersonalFactors, scale ScaleName) (*RiskScore, error) {
	return defaultEngine.Compute(reading, factors, scale)
}

// Table returns a copy of the engine's table.
func (e *Engine) Table() *Table {
	return e.table.Clone()
}

// HasScale reports whether the engine knows the named scale.
func (e *Engine) HasScale(name ScaleName) bool {
	_, ok := e.table.Scales[name]
	return ok
}

// Compute scores reading and factors on the named scale.
//
// Non-finite numbers yield a *ValidationError and unknown categorical values
// an *InvalidEnumError. Finite values outside their domain are clamped and
// reported in RiskScore.Clamped.
func (e *Engine) Compute(reading EnvironmentalReading, factors PersonalFactors, scale ScaleName) (*RiskScore, error) {
	s, ok := e.table.Scales[scale]
	if !ok {
		return nil, &InvalidEnumError{
			Field:   "scale",
			Value:   string(scale),
			Allowed: allowedStrings(e.table.Names()),
		}
	}

	in, err := sanitize(reading, factors)
	if err != nil {
		return nil, err
	}

	var (
		breakdown Breakdown
		detail    map[string]float64
	)
	if s.Point != nil {
		breakdown = s.Point.score(in)
	} else {
		breakdown, detail = s.Weighted.score(in, s.Min, s.Max)
	}

	raw := breakdown.Sum()
	value := roundTo(clamp(raw, s.Min, s.Max), s.Precision)

	return &RiskScore{
		Scale:     scale,
		Value:     value,
		Raw:       raw,
		Category:  s.Category(value),
		Breakdown: breakdown,
		Detail:    detail,
		Clamped:   in.clamped,
	}, nil
}

// input is the sanitized form of a computation's arguments.
type input struct {
	reading EnvironmentalReading
	factors PersonalFactors
	clamped []string
}

func (in *input) clampLow(field string, v *float64, lo float64) {
	if *v < lo {
		*v = lo
		in.clamped = append(in.clamped, field)
	}
}

func (in *input) clampRange(field string, v *float64, lo, hi float64) {
	if *v < lo || *v > hi {
		*v = clamp(*v, lo, hi)
		in.clamped = append(in.clamped, field)
	}
}

func sanitize(reading EnvironmentalReading, factors PersonalFactors) (*input, error) {
	for _, f := range []struct {
		field string
		value *float64
	}{
		{"reading.pm25", &reading.PM25},
		{"reading.aqi", &reading.AQI},
		{"reading.temperature", reading.Temperature},
		{"reading.humidity", reading.Humidity},
		{"factors.outdoorTimeMinutes", &factors.OutdoorTimeMinutes},
	} {
		if f.value != nil && !finite(*f.value) {
			return nil, &ValidationError{Field: f.field, Value: *f.value}
		}
	}
	for i, s := range factors.Symptoms {
		if !finite(s.Severity) {
			return nil, &ValidationError{Field: fmt.Sprintf("factors.symptoms[%d].severity", i), Value: s.Severity}
		}
	}

	for i, c := range factors.ChronicConditions {
		if !c.Valid() {
			return nil, &InvalidEnumError{
				Field:   fmt.Sprintf("factors.chronicConditions[%d]", i),
				Value:   string(c),
				Allowed: allowedStrings(AllConditions()),
			}
		}
	}
	if !factors.DustSensitivity.Valid() {
		return nil, &InvalidEnumError{
			Field:   "factors.dustSensitivity",
			Value:   string(factors.DustSensitivity),
			Allowed: allowedStrings([]Sensitivity{SensitivityLow, SensitivityModerate, SensitivityHigh}),
		}
	}
	if !factors.PhysicalActivity.Valid() {
		return nil, &InvalidEnumError{
			Field:   "factors.physicalActivity",
			Value:   string(factors.PhysicalActivity),
			Allowed: allowedStrings([]Activity{ActivitySedentary, ActivityActive}),
		}
	}
	for i, s := range factors.Symptoms {
		if !s.Symptom.Valid() {
			return nil, &InvalidEnumError{
				Field:   fmt.Sprintf("factors.symptoms[%d].symptom", i),
				Value:   string(s.Symptom),
				Allowed: allowedStrings(AllSymptoms()),
			}
		}
	}

	in := &input{}

	// Clamping works on copies; caller data is never modified.
	if reading.Humidity != nil {
		h := *reading.Humidity
		reading.Humidity = &h
		in.clampRange("reading.humidity", reading.Humidity, 0, 100)
	}
	in.clampLow("reading.pm25", &reading.PM25, 0)
	in.clampLow("reading.aqi", &reading.AQI, 0)

	if factors.Age < 0 {
		factors.Age = 0
		in.clamped = append(in.clamped, "factors.age")
	}
	in.clampLow("factors.outdoorTimeMinutes", &factors.OutdoorTimeMinutes, 0)

	if len(factors.Symptoms) > 0 {
		reports := make([]SymptomReport, len(factors.Symptoms))
		copy(reports, factors.Symptoms)
		for i := range reports {
			in.clampRange(fmt.Sprintf("factors.symptoms[%d].severity", i), &reports[i].Severity, 0, MaxSeverity)
		}
		factors.Symptoms = reports
	}

	in.reading = reading
	in.factors = factors
	return in, nil
}

func outdoorHours(minutes float64) float64 {
	return minutes / 60
}
