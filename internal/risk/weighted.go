package risk

// Detail keys reported by the weighted model.
const (
	DetailAQI                = "aqi"
	DetailPM25               = "pm25"
	DetailAge                = "age"
	DetailOutdoor            = "outdoor"
	DetailConditions         = "conditions"
	DetailEnvironmentalScore = "environmental_score"
	DetailSymptomScore       = "symptom_score"
)

func (w *WeightedParams) score(in *input, lo, hi float64) (Breakdown, map[string]float64) {
	r, f := in.reading, in.factors

	aqi := interpolate(w.AQIKnots, r.AQI)
	pm25 := interpolate(w.PM25Knots, r.PM25)

	var age float64
	if w.VulnerableAge.matches(f.Age) {
		age = w.VulnerableAge.Points
	}
	outdoor := stepPoints(w.OutdoorHourSteps, outdoorHours(f.OutdoorTimeMinutes))

	base := aqi + pm25 + age + outdoor
	var conditions float64
	if f.HasHealthConditions() {
		conditions = base * (w.ConditionMultiplier - 1)
	}
	environmental := clamp(base+conditions, lo, hi)
	symptom := symptomScore(w.Symptoms, f.Symptoms, hi)

	detail := map[string]float64{
		DetailAQI:                aqi,
		DetailPM25:               pm25,
		DetailAge:                age,
		DetailOutdoor:            outdoor,
		DetailConditions:         conditions,
		DetailEnvironmentalScore: environmental,
		DetailSymptomScore:       symptom,
	}

	return Breakdown{
		{Name: TermEnvironmental, Value: w.EnvironmentalWeight * environmental},
		{Name: TermSymptoms, Value: w.SymptomWeight * symptom},
	}, detail
}
