package risk

// Symptom is one entry of the daily symptom checklist.
type Symptom string

const (
	SymptomCough             Symptom = "cough"
	SymptomSneezing          Symptom = "sneezing"
	SymptomRunnyNose         Symptom = "runny_nose"
	SymptomEyeIrritation     Symptom = "eye_irritation"
	SymptomSoreThroat        Symptom = "sore_throat"
	SymptomShortnessOfBreath Symptom = "shortness_of_breath"
	SymptomChestTightness    Symptom = "chest_tightness"
)

// MaxSeverity is the top of the severity scale used by the checklist.
const MaxSeverity = 10

// AllSymptoms returns the checklist symptoms in display order.
func AllSymptoms() []Symptom {
	return []Symptom{
		SymptomCough,
		SymptomSneezing,
		SymptomRunnyNose,
		SymptomEyeIrritation,
		SymptomSoreThroat,
		SymptomShortnessOfBreath,
		SymptomChestTightness,
	}
}

// Valid reports whether s is a checklist symptom.
func (s Symptom) Valid() bool {
	for _, known := range AllSymptoms() {
		if s == known {
			return true
		}
	}
	return false
}

// SymptomReport is a single checklist answer. Severity runs from 0 to 10.
type SymptomReport struct {
	Symptom  Symptom `json:"symptom"`
	Present  bool    `json:"present"`
	Severity float64 `json:"severity"`
}

// presentSymptoms collapses the checklist to one severity per present
// symptom. Repeated entries keep the highest severity.
func presentSymptoms(reports []SymptomReport) map[Symptom]float64 {
	out := make(map[Symptom]float64, len(reports))
	for _, r := range reports {
		if !r.Present {
			continue
		}
		if prev, ok := out[r.Symptom]; !ok || r.Severity > prev {
			out[r.Symptom] = r.Severity
		}
	}
	return out
}

// symptomScore sums base + severity/10*multiplier for each present symptom.
func symptomScore(weights []SymptomWeight, reports []SymptomReport, ceiling float64) float64 {
	present := presentSymptoms(reports)
	var score float64
	for _, w := range weights {
		severity, ok := present[w.Symptom]
		if !ok {
			continue
		}
		score += w.Base + severity/MaxSeverity*w.Multiplier
	}
	return clamp(score, 0, ceiling)
}
