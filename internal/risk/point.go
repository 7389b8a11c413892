package risk

// Breakdown term names shared by both models.
const (
	TermEnvironmental = "environmental"
	TermPersonal      = "personal"
	TermBehavioral    = "behavioral"
	TermSymptoms      = "symptoms"
	TermProtective    = "protective"
)

func (p *PointParams) score(in *input) Breakdown {
	r, f := in.reading, in.factors

	environmental := stepPoints(p.PM25Steps, r.PM25) + stepPoints(p.AQISteps, r.AQI)

	var personal float64
	if p.VulnerableAge.matches(f.Age) {
		personal += p.VulnerableAge.Points
	}
	if f.HasAnyCondition(p.HighRiskConditions) {
		personal += p.ConditionPoints
	}
	if f.DustSensitivity == SensitivityHigh {
		personal += p.HighSensitivityPoints
	}

	behavioral := stepPoints(p.OutdoorHourSteps, outdoorHours(f.OutdoorTimeMinutes))
	if f.PhysicalActivity == ActivityActive {
		behavioral += p.ActivePoints
	}

	var symptoms float64
	if f.AnySymptomPresent() {
		symptoms = p.SymptomPoints
	}

	var protective float64
	if f.WearingMask {
		protective += p.MaskReduction
	}
	if f.HasAirPurifier {
		protective += p.PurifierReduction
	}

	return Breakdown{
		{Name: TermEnvironmental, Value: environmental},
		{Name: TermPersonal, Value: personal},
		{Name: TermBehavioral, Value: behavioral},
		{Name: TermSymptoms, Value: symptoms},
		{Name: TermProtective, Value: protective, Reduces: true},
	}
}
