package risk

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed scales.yaml
var builtinTable []byte

// Table maps scale names to their scoring parameters.
type Table struct {
	Scales map[ScaleName]*Scale `yaml:"scales" json:"scales"`
}

// Scale describes one scoring scale: its bounds, rounding, category cutoffs
// and the parameters of exactly one scoring model.
type Scale struct {
	Min        float64         `yaml:"min" json:"min"`
	Max        float64         `yaml:"max" json:"max"`
	Precision  int             `yaml:"precision" json:"precision"`
	Categories []Cutoff        `yaml:"categories" json:"categories"`
	Point      *PointParams    `yaml:"point,omitempty" json:"point,omitempty"`
	Weighted   *WeightedParams `yaml:"weighted,omitempty" json:"weighted,omitempty"`
}

// Cutoff starts a category band. A band runs from its From value up to the
// next cutoff; the last band is closed at the scale maximum.
type Cutoff struct {
	Category Category `yaml:"category" json:"category"`
	From     float64  `yaml:"from" json:"from"`
}

// Step awards Points when a value is strictly above Above.
// Step ladders are ordered by descending threshold and the first match wins.
type Step struct {
	Above  float64 `yaml:"above" json:"above"`
	Points float64 `yaml:"points" json:"points"`
}

// Knot is a point on a piecewise-linear curve.
type Knot struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// AgeBand awards Points to ages strictly below Under or strictly above Over.
type AgeBand struct {
	Under  int     `yaml:"under" json:"under"`
	Over   int     `yaml:"over" json:"over"`
	Points float64 `yaml:"points" json:"points"`
}

func (b AgeBand) matches(age int) bool {
	return age < b.Under || age > b.Over
}

// validate rejects a missing or inverted band. A zero band would match
// every age above zero.
func (b AgeBand) validate() error {
	if b.Under < 0 || b.Over <= 0 || b.Over < b.Under {
		return tableErrorf("vulnerable_age needs 0 <= under <= over and over > 0, got under=%d over=%d", b.Under, b.Over)
	}
	return nil
}

// PointParams parameterizes the additive point model.
type PointParams struct {
	PM25Steps             []Step      `yaml:"pm25_steps" json:"pm25Steps"`
	AQISteps              []Step      `yaml:"aqi_steps" json:"aqiSteps"`
	VulnerableAge         AgeBand     `yaml:"vulnerable_age" json:"vulnerableAge"`
	HighRiskConditions    []Condition `yaml:"high_risk_conditions" json:"highRiskConditions"`
	ConditionPoints       float64     `yaml:"condition_points" json:"conditionPoints"`
	HighSensitivityPoints float64     `yaml:"high_sensitivity_points" json:"highSensitivityPoints"`
	OutdoorHourSteps      []Step      `yaml:"outdoor_hour_steps" json:"outdoorHourSteps"`
	ActivePoints          float64     `yaml:"active_points" json:"activePoints"`
	SymptomPoints         float64     `yaml:"symptom_points" json:"symptomPoints"`
	MaskReduction         float64     `yaml:"mask_reduction" json:"maskReduction"`
	PurifierReduction     float64     `yaml:"purifier_reduction" json:"purifierReduction"`
}

// WeightedParams parameterizes the weighted environmental/symptom model.
type WeightedParams struct {
	AQIKnots            []Knot          `yaml:"aqi_knots" json:"aqiKnots"`
	PM25Knots           []Knot          `yaml:"pm25_knots" json:"pm25Knots"`
	VulnerableAge       AgeBand         `yaml:"vulnerable_age" json:"vulnerableAge"`
	OutdoorHourSteps    []Step          `yaml:"outdoor_hour_steps" json:"outdoorHourSteps"`
	ConditionMultiplier float64         `yaml:"condition_multiplier" json:"conditionMultiplier"`
	EnvironmentalWeight float64         `yaml:"environmental_weight" json:"environmentalWeight"`
	SymptomWeight       float64         `yaml:"symptom_weight" json:"symptomWeight"`
	Symptoms            []SymptomWeight `yaml:"symptoms" json:"symptoms"`
}

// SymptomWeight is the contribution of one checklist symptom.
type SymptomWeight struct {
	Symptom    Symptom `yaml:"symptom" json:"symptom"`
	Base       float64 `yaml:"base" json:"base"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// DefaultTable returns a fresh copy of the built-in table.
func DefaultTable() *Table {
	t, err := ParseTable(builtinTable)
	if err != nil {
		panic(fmt.Sprintf("risk: built-in scale table: %v", err))
	}
	return t
}

// LoadTable reads and validates a YAML table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scale table: %w", err)
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseTable decodes and validates a YAML table. Unknown keys are rejected.
func ParseTable(data []byte) (*Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var t Table
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// YAML encodes the table in the format ParseTable reads.
func (t *Table) YAML() ([]byte, error) {
	return yaml.Marshal(t)
}

// Names returns the scale names in sorted order.
func (t *Table) Names() []ScaleName {
	names := make([]ScaleName, 0, len(t.Scales))
	for name := range t.Scales {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Validate checks that every scale is internally consistent.
func (t *Table) Validate() error {
	if len(t.Scales) == 0 {
		return tableErrorf("no scales defined")
	}
	for _, name := range t.Names() {
		s := t.Scales[name]
		if name == "" {
			return tableErrorf("scale with empty name")
		}
		if s == nil {
			return tableErrorf("scale %q is empty", name)
		}
		if err := s.validate(); err != nil {
			return fmt.Errorf("scale %q: %w", name, err)
		}
	}
	return nil
}

func (s *Scale) validate() error {
	if !finite(s.Min) || !finite(s.Max) || s.Max <= s.Min {
		return tableErrorf("bounds [%v, %v] are not a valid range", s.Min, s.Max)
	}
	if s.Precision < 0 || s.Precision > 6 {
		return tableErrorf("precision %d out of range 0..6", s.Precision)
	}
	if (s.Point == nil) == (s.Weighted == nil) {
		return tableErrorf("exactly one of point or weighted parameters is required")
	}
	if err := s.validateCategories(); err != nil {
		return err
	}
	if s.Point != nil {
		return s.Point.validate()
	}
	return s.Weighted.validate()
}

func (s *Scale) validateCategories() error {
	if len(s.Categories) == 0 {
		return tableErrorf("no categories")
	}
	if s.Categories[0].From != s.Min {
		return tableErrorf("first category starts at %v, want scale minimum %v", s.Categories[0].From, s.Min)
	}
	seen := make(map[Category]bool, len(s.Categories))
	for i, c := range s.Categories {
		if c.Category == "" {
			return tableErrorf("category %d has no name", i)
		}
		if seen[c.Category] {
			return tableErrorf("category %q listed twice", c.Category)
		}
		seen[c.Category] = true
		if c.From > s.Max {
			return tableErrorf("category %q starts above scale maximum", c.Category)
		}
		if i > 0 && c.From <= s.Categories[i-1].From {
			return tableErrorf("category %q overlaps or is out of order", c.Category)
		}
	}
	return nil
}

func (p *PointParams) validate() error {
	for name, steps := range map[string][]Step{
		"pm25_steps":         p.PM25Steps,
		"aqi_steps":          p.AQISteps,
		"outdoor_hour_steps": p.OutdoorHourSteps,
	} {
		if err := validateSteps(name, steps); err != nil {
			return err
		}
	}
	if err := p.VulnerableAge.validate(); err != nil {
		return err
	}
	for _, c := range p.HighRiskConditions {
		if !c.Valid() {
			return tableErrorf("unknown high-risk condition %q", c)
		}
	}
	for name, v := range map[string]float64{
		"vulnerable_age.points":   p.VulnerableAge.Points,
		"condition_points":        p.ConditionPoints,
		"high_sensitivity_points": p.HighSensitivityPoints,
		"active_points":           p.ActivePoints,
		"symptom_points":          p.SymptomPoints,
		"mask_reduction":          p.MaskReduction,
		"purifier_reduction":      p.PurifierReduction,
	} {
		if !finite(v) || v < 0 {
			return tableErrorf("%s must be a non-negative number", name)
		}
	}
	return nil
}

func (w *WeightedParams) validate() error {
	if err := validateKnots("aqi_knots", w.AQIKnots); err != nil {
		return err
	}
	if err := validateKnots("pm25_knots", w.PM25Knots); err != nil {
		return err
	}
	if err := validateSteps("outdoor_hour_steps", w.OutdoorHourSteps); err != nil {
		return err
	}
	if err := w.VulnerableAge.validate(); err != nil {
		return err
	}
	if !finite(w.ConditionMultiplier) || w.ConditionMultiplier < 1 {
		return tableErrorf("condition_multiplier must be at least 1")
	}
	for name, v := range map[string]float64{
		"vulnerable_age.points": w.VulnerableAge.Points,
		"environmental_weight":  w.EnvironmentalWeight,
		"symptom_weight":        w.SymptomWeight,
	} {
		if !finite(v) || v < 0 {
			return tableErrorf("%s must be a non-negative number", name)
		}
	}
	seen := make(map[Symptom]bool, len(w.Symptoms))
	for _, sw := range w.Symptoms {
		if !sw.Symptom.Valid() {
			return tableErrorf("unknown symptom %q", sw.Symptom)
		}
		if seen[sw.Symptom] {
			return tableErrorf("symptom %q listed twice", sw.Symptom)
		}
		seen[sw.Symptom] = true
		if !finite(sw.Base) || !finite(sw.Multiplier) || sw.Base < 0 || sw.Multiplier < 0 {
			return tableErrorf("symptom %q weights must be non-negative", sw.Symptom)
		}
	}
	return nil
}

func validateSteps(name string, steps []Step) error {
	for i, st := range steps {
		if !finite(st.Above) || !finite(st.Points) || st.Points < 0 {
			return tableErrorf("%s[%d] is not a valid step", name, i)
		}
		if i > 0 && st.Above >= steps[i-1].Above {
			return tableErrorf("%s must be ordered by descending threshold", name)
		}
		if i > 0 && st.Points > steps[i-1].Points {
			return tableErrorf("%s points must not increase as thresholds fall", name)
		}
	}
	return nil
}

func validateKnots(name string, knots []Knot) error {
	if len(knots) == 0 {
		return tableErrorf("%s needs at least one knot", name)
	}
	for i, k := range knots {
		if !finite(k.X) || !finite(k.Y) {
			return tableErrorf("%s[%d] is not finite", name, i)
		}
		if i > 0 && k.X <= knots[i-1].X {
			return tableErrorf("%s must be strictly ascending in x", name)
		}
		if i > 0 && k.Y < knots[i-1].Y {
			return tableErrorf("%s must not decrease", name)
		}
	}
	return nil
}

// Category returns the band that v falls in. Values below the first cutoff
// map to the first band.
func (s *Scale) Category(v float64) Category {
	for i := len(s.Categories) - 1; i >= 0; i-- {
		if v >= s.Categories[i].From {
			return s.Categories[i].Category
		}
	}
	return s.Categories[0].Category
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Scales: make(map[ScaleName]*Scale, len(t.Scales))}
	for name, s := range t.Scales {
		out.Scales[name] = s.clone()
	}
	return out
}

func (s *Scale) clone() *Scale {
	c := *s
	c.Categories = append([]Cutoff(nil), s.Categories...)
	if s.Point != nil {
		p := *s.Point
		p.PM25Steps = append([]Step(nil), s.Point.PM25Steps...)
		p.AQISteps = append([]Step(nil), s.Point.AQISteps...)
		p.OutdoorHourSteps = append([]Step(nil), s.Point.OutdoorHourSteps...)
		p.HighRiskConditions = append([]Condition(nil), s.Point.HighRiskConditions...)
		c.Point = &p
	}
	if s.Weighted != nil {
		w := *s.Weighted
		w.AQIKnots = append([]Knot(nil), s.Weighted.AQIKnots...)
		w.PM25Knots = append([]Knot(nil), s.Weighted.PM25Knots...)
		w.OutdoorHourSteps = append([]Step(nil), s.Weighted.OutdoorHourSteps...)
		w.Symptoms = append([]SymptomWeight(nil), s.Weighted.Symptoms...)
		c.Weighted = &w
	}
	return &c
}

// stepPoints returns the points of the first step whose threshold v exceeds.
func stepPoints(steps []Step, v float64) float64 {
	for _, st := range steps {
		if v > st.Above {
			return st.Points
		}
	}
	return 0
}

// interpolate evaluates the piecewise-linear curve through knots at x,
// holding the end values outside the knot range.
func interpolate(knots []Knot, x float64) float64 {
	if x <= knots[0].X {
		return knots[0].Y
	}
	for i := 1; i < len(knots); i++ {
		if x <= knots[i].X {
			a, b := knots[i-1], knots[i]
			return a.Y + (x-a.X)/(b.X-a.X)*(b.Y-a.Y)
		}
	}
	return knots[len(knots)-1].Y
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
