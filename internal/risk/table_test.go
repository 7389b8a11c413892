package risk_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dustguard/dustguard/internal/risk"
)

func TestDefaultTable(t *testing.T) {
	table := risk.DefaultTable()
	require.NoError(t, table.Validate())

	assert.Equal(t, []risk.ScaleName{risk.ScalePoint, risk.ScaleWeighted}, table.Names())

	point := table.Scales[risk.ScalePoint]
	assert.Equal(t, 0.0, point.Min)
	assert.Equal(t, 10.0, point.Max)
	assert.Equal(t, 1, point.Precision)
	require.NotNil(t, point.Point)
	assert.Nil(t, point.Weighted)

	weighted := table.Scales[risk.ScaleWeighted]
	assert.Equal(t, 100.0, weighted.Max)
	require.NotNil(t, weighted.Weighted)
	assert.Len(t, weighted.Weighted.Symptoms, len(risk.AllSymptoms()))
}

func TestScale_WeightedCategories(t *testing.T) {
	s := risk.DefaultTable().Scales[risk.ScaleWeighted]

	assert.Equal(t, risk.CategorySafe, s.Category(29))
	assert.Equal(t, risk.CategoryWarning, s.Category(30))
	assert.Equal(t, risk.CategoryUrgent, s.Category(60))
	assert.Equal(t, risk.CategoryUrgent, s.Category(79))
	assert.Equal(t, risk.CategoryEmergency, s.Category(80))
	assert.Equal(t, risk.CategoryEmergency, s.Category(100))
}

func TestTable_YAMLRoundTrip(t *testing.T) {
	data, err := risk.DefaultTable().YAML()
	require.NoError(t, err)

	parsed, err := risk.ParseTable(data)
	require.NoError(t, err)
	assert.Equal(t, risk.DefaultTable(), parsed)
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scales.yaml")

	data, err := risk.DefaultTable().YAML()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	table, err := risk.LoadTable(path)
	require.NoError(t, err)
	assert.Len(t, table.Scales, 2)

	_, err = risk.LoadTable(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseTable_RequiresAgeBand(t *testing.T) {
	data, err := risk.DefaultTable().YAML()
	require.NoError(t, err)

	var kept []string
	skip := false
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "vulnerable_age:") {
			skip = !strings.Contains(trimmed, "{")
			continue
		}
		if skip && (strings.HasPrefix(trimmed, "under:") || strings.HasPrefix(trimmed, "over:") || strings.HasPrefix(trimmed, "points:")) {
			continue
		}
		skip = false
		kept = append(kept, line)
	}
	stripped := strings.Join(kept, "\n")
	require.NotContains(t, stripped, "vulnerable_age")

	_, err = risk.ParseTable([]byte(stripped))
	require.Error(t, err)
	assert.ErrorIs(t, err, risk.ErrInvalidTable)
	assert.Contains(t, err.Error(), "vulnerable_age")
}

func TestParseTable_RejectsUnknownKeys(t *testing.T) {
	_, err := risk.ParseTable([]byte("scales:\n  point:\n    min: 0\n    maximum: 10\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, risk.ErrInvalidTable))
}

func TestTable_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *risk.Table)
	}{
		{"no scales", func(t *risk.Table) { t.Scales = nil }},
		{"inverted bounds", func(t *risk.Table) { t.Scales[risk.ScalePoint].Max = -1 }},
		{"negative precision", func(t *risk.Table) { t.Scales[risk.ScalePoint].Precision = -1 }},
		{"gap at minimum", func(t *risk.Table) { t.Scales[risk.ScalePoint].Categories[0].From = 1 }},
		{"overlapping cutoffs", func(t *risk.Table) { t.Scales[risk.ScalePoint].Categories[2].From = 3 }},
		{"out of order cutoffs", func(t *risk.Table) { t.Scales[risk.ScalePoint].Categories[3].From = 5 }},
		{"cutoff above max", func(t *risk.Table) { t.Scales[risk.ScalePoint].Categories[3].From = 11 }},
		{"duplicate category", func(t *risk.Table) {
			t.Scales[risk.ScalePoint].Categories[1].Category = risk.CategorySafe
		}},
		{"no categories", func(t *risk.Table) { t.Scales[risk.ScaleWeighted].Categories = nil }},
		{"both models", func(t *risk.Table) {
			t.Scales[risk.ScalePoint].Weighted = t.Scales[risk.ScaleWeighted].Weighted
		}},
		{"no model", func(t *risk.Table) { t.Scales[risk.ScalePoint].Point = nil }},
		{"ascending steps", func(t *risk.Table) {
			t.Scales[risk.ScalePoint].Point.PM25Steps[0].Above = 10
		}},
		{"unknown condition", func(t *risk.Table) {
			t.Scales[risk.ScalePoint].Point.HighRiskConditions = []risk.Condition{"gout"}
		}},
		{"negative reduction", func(t *risk.Table) { t.Scales[risk.ScalePoint].Point.MaskReduction = -1 }},
		{"unsorted knots", func(t *risk.Table) {
			t.Scales[risk.ScaleWeighted].Weighted.AQIKnots[2].X = 40
		}},
		{"empty knots", func(t *risk.Table) { t.Scales[risk.ScaleWeighted].Weighted.PM25Knots = nil }},
		{"multiplier below one", func(t *risk.Table) {
			t.Scales[risk.ScaleWeighted].Weighted.ConditionMultiplier = 0.5
		}},
		{"missing point age band", func(t *risk.Table) {
			t.Scales[risk.ScalePoint].Point.VulnerableAge = risk.AgeBand{}
		}},
		{"inverted age band", func(t *risk.Table) {
			t.Scales[risk.ScalePoint].Point.VulnerableAge = risk.AgeBand{Under: 70, Over: 65, Points: 1}
		}},
		{"missing weighted age band", func(t *risk.Table) {
			t.Scales[risk.ScaleWeighted].Weighted.VulnerableAge = risk.AgeBand{Points: 10}
		}},
		{"duplicate symptom", func(t *risk.Table) {
			w := t.Scales[risk.ScaleWeighted].Weighted
			w.Symptoms = append(w.Symptoms, w.Symptoms[0])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := risk.DefaultTable()
			tt.mutate(table)

			err := table.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, risk.ErrInvalidTable))

			_, err = risk.NewEngine(table)
			assert.Error(t, err)
		})
	}
}

func TestEngine_HasScale(t *testing.T) {
	engine := risk.Default()
	assert.True(t, engine.HasScale(risk.ScalePoint))
	assert.True(t, engine.HasScale(risk.ScaleWeighted))
	assert.False(t, engine.HasScale("percent"))
}
