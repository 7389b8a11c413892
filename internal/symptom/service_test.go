package symptom_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dustguard/dustguard/internal/risk"
	"github.com/dustguard/dustguard/internal/symptom"
)

func newService() *symptom.Service {
	return symptom.NewService(symptom.NewInMemoryRepository(), zerolog.Nop())
}

func TestService_Log(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	minutes := 90.0

	entry, err := svc.Log(ctx, "user-1", "2026-05-04", &symptom.LogInput{
		Symptoms: []risk.SymptomReport{
			{Symptom: risk.SymptomCough, Present: true, Severity: 4},
			{Symptom: risk.SymptomSneezing, Present: false},
		},
		OutdoorMinutes: &minutes,
		Notes:          "dusty afternoon",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(entry.ID, "sym_"))
	assert.Equal(t, "2026-05-04", entry.Date)
	assert.True(t, entry.AnyPresent())
	require.NotNil(t, entry.OutdoorMinutes)
	assert.Equal(t, 90.0, *entry.OutdoorMinutes)
}

func TestService_Log_ReplacesSameDay(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	first, err := svc.Log(ctx, "user-1", "2026-05-04", &symptom.LogInput{
		Symptoms: []risk.SymptomReport{{Symptom: risk.SymptomCough, Present: true, Severity: 8}},
	})
	require.NoError(t, err)

	second, err := svc.Log(ctx, "user-1", "2026-05-04", &symptom.LogInput{
		Symptoms: []risk.SymptomReport{{Symptom: risk.SymptomCough, Present: false}},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.AnyPresent())

	entries, err := svc.List(ctx, "user-1", "2026-05-01", "2026-05-31")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_Log_MergesRepeatedSymptoms(t *testing.T) {
	svc := newService()

	entry, err := svc.Log(context.Background(), "user-1", "2026-05-04", &symptom.LogInput{
		Symptoms: []risk.SymptomReport{
			{Symptom: risk.SymptomCough, Present: false, Severity: 9},
			{Symptom: risk.SymptomCough, Present: true, Severity: 3},
			{Symptom: risk.SymptomCough, Present: true, Severity: 6},
		},
	})
	require.NoError(t, err)

	require.Len(t, entry.Symptoms, 1)
	assert.True(t, entry.Symptoms[0].Present)
	assert.Equal(t, 6.0, entry.Symptoms[0].Severity)
}

func TestService_Log_Validation(t *testing.T) {
	tooLong := 2000.0
	tests := []struct {
		name      string
		date      string
		input     *symptom.LogInput
		wantField string
	}{
		{"bad date", "04/05/2026", &symptom.LogInput{}, "date"},
		{"future date", "2999-01-01", &symptom.LogInput{}, "date"},
		{"missing input", "2026-05-04", nil, "symptoms"},
		{
			"unknown symptom", "2026-05-04",
			&symptom.LogInput{Symptoms: []risk.SymptomReport{{Symptom: "headache", Present: true}}},
			"symptoms[0].symptom",
		},
		{
			"severity out of range", "2026-05-04",
			&symptom.LogInput{Symptoms: []risk.SymptomReport{{Symptom: risk.SymptomCough, Present: true, Severity: 11}}},
			"symptoms[0].severity",
		},
		{"outdoor minutes", "2026-05-04", &symptom.LogInput{OutdoorMinutes: &tooLong}, "outdoorMinutes"},
		{"notes", "2026-05-04", &symptom.LogInput{Notes: strings.Repeat("x", symptom.MaxNotesLength+1)}, "notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService().Log(context.Background(), "user-1", tt.date, tt.input)

			var verr *symptom.ValidationError
			require.ErrorAs(t, err, &verr)
			var fields []string
			for _, fe := range verr.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestService_GetFindDelete(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Get(ctx, "user-1", "2026-05-04")
	assert.ErrorIs(t, err, symptom.ErrEntryNotFound)

	found, err := svc.Find(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = svc.Log(ctx, "user-1", "2026-05-04", &symptom.LogInput{})
	require.NoError(t, err)

	found, err = svc.Find(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	assert.NotNil(t, found)

	// Other users cannot see it.
	_, err = svc.Get(ctx, "user-2", "2026-05-04")
	assert.ErrorIs(t, err, symptom.ErrEntryNotFound)

	require.NoError(t, svc.Delete(ctx, "user-1", "2026-05-04"))
	assert.ErrorIs(t, svc.Delete(ctx, "user-1", "2026-05-04"), symptom.ErrEntryNotFound)

	_, err = svc.Get(ctx, "user-1", "not-a-date")
	assert.ErrorIs(t, err, symptom.ErrInvalidDate)
}

func TestService_List(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	for _, d := range []string{"2026-05-03", "2026-05-01", "2026-05-10", "2026-04-30"} {
		_, err := svc.Log(ctx, "user-1", d, &symptom.LogInput{})
		require.NoError(t, err)
	}

	entries, err := svc.List(ctx, "user-1", "2026-05-01", "2026-05-03")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2026-05-01", entries[0].Date)
	assert.Equal(t, "2026-05-03", entries[1].Date)

	_, err = svc.List(ctx, "user-1", "2026-05-03", "2026-05-01")
	assert.ErrorIs(t, err, symptom.ErrInvalidRange)

	_, err = svc.List(ctx, "user-1", "2024-01-01", "2026-01-01")
	assert.ErrorIs(t, err, symptom.ErrInvalidRange)

	require.NoError(t, svc.DeleteAll(ctx, "user-1"))
	entries, err = svc.List(ctx, "user-1", "2026-04-01", "2026-05-31")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := symptom.NewInMemoryRepository()
	ctx := context.Background()

	_, err := repo.Upsert(ctx, &symptom.Entry{
		UserID:   "user-1",
		Date:     "2026-05-04",
		Symptoms: []risk.SymptomReport{{Symptom: risk.SymptomCough, Present: true}},
	})
	require.NoError(t, err)

	got, err := repo.Get(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	got.Symptoms[0].Present = false

	again, err := repo.Get(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	assert.True(t, again.Symptoms[0].Present)
}
