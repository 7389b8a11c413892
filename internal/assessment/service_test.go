package assessment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/alert"
	"github.com/dustguard/dustguard/internal/assessment"
	"github.com/dustguard/dustguard/internal/device"
	"github.com/dustguard/dustguard/internal/featureflags"
	"github.com/dustguard/dustguard/internal/profile"
	"github.com/dustguard/dustguard/internal/risk"
	"github.com/dustguard/dustguard/internal/symptom"
)

type stubReadings struct {
	mu      sync.Mutex
	reading *airquality.Reading
	err     error
}

func (s *stubReadings) set(pm25, aqi float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = &airquality.Reading{StationName: "Riyadh", PM25: pm25, AQI: aqi, Provider: "stub", FetchedAt: time.Now()}
	s.err = nil
}

func (s *stubReadings) GetReading(_ context.Context, _, _ float64) (*airquality.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	r := *s.reading
	return &r, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []alert.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg alert.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// flakyRepo fails chosen Upsert calls, counted from the last failOn.
type flakyRepo struct {
	assessment.Repository

	mu      sync.Mutex
	calls   int
	failing map[int]bool
}

func (r *flakyRepo) failOn(calls ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = 0
	r.failing = make(map[int]bool, len(calls))
	for _, c := range calls {
		r.failing[c] = true
	}
}

func (r *flakyRepo) Upsert(ctx context.Context, a *assessment.Assessment) error {
	r.mu.Lock()
	r.calls++
	fail := r.failing[r.calls]
	r.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return r.Repository.Upsert(ctx, a)
}

type fixture struct {
	svc      *assessment.Service
	profiles *profile.Service
	symptoms *symptom.Service
	devices  *device.Service
	flags    *featureflags.Service
	readings *stubReadings
	notifier *recordingNotifier
	reader   *sdkmetric.ManualReader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, assessment.NewInMemoryRepository())
}

func newFixtureWithRepo(t *testing.T, repo assessment.Repository) *fixture {
	t.Helper()

	f := &fixture{
		profiles: profile.NewService(profile.NewInMemoryRepository(), nil, zerolog.Nop()),
		symptoms: symptom.NewService(symptom.NewInMemoryRepository(), zerolog.Nop()),
		devices:  device.NewService(device.NewInMemoryRepository(), zerolog.Nop()),
		flags: featureflags.NewService(featureflags.ServiceConfig{
			Repository: featureflags.NewInMemoryRepository(),
			Logger:     zerolog.Nop(),
		}),
		readings: &stubReadings{},
		notifier: &recordingNotifier{},
		reader:   sdkmetric.NewManualReader(),
	}
	f.readings.set(10, 40)

	svc, err := assessment.NewService(assessment.ServiceConfig{
		Repo:          repo,
		Profiles:      f.profiles,
		Symptoms:      f.symptoms,
		AirQuality:    f.readings,
		Subscriptions: f.devices,
		Flags:         f.flags,
		Notifier:      f.notifier,
		Logger:        zerolog.Nop(),
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(f.reader)),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

// saveProfile stores a profile worth 5.0 points before environment and
// symptoms: age 70, asthma, high sensitivity, active, five hours outdoors.
func (f *fixture) saveProfile(t *testing.T, userID string, mutate func(*profile.Input)) {
	t.Helper()
	in := &profile.Input{
		Age:            70,
		Conditions:     []risk.Condition{risk.ConditionAsthma},
		Sensitivity:    risk.SensitivityHigh,
		Activity:       risk.ActivityActive,
		OutdoorMinutes: 300,
		Location:       &profile.Location{Lat: 24.71, Lon: 46.68},
		Locale:         "ar-SA",
	}
	if mutate != nil {
		mutate(in)
	}
	_, err := f.profiles.Upsert(context.Background(), userID, in)
	require.NoError(t, err)
}

func lowRiskProfile(in *profile.Input) {
	in.Age = 30
	in.Conditions = nil
	in.Sensitivity = risk.SensitivityModerate
	in.Activity = risk.ActivitySedentary
	in.OutdoorMinutes = 60
}

func TestService_Assess_Emergency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveProfile(t, "user-1", nil)
	_, _, err := f.devices.Register(ctx, "user-1", &device.RegisterInput{
		Endpoint: "https://push.example/abc", P256dh: "cDI1NmRo", Auth: "YXV0aA",
	})
	require.NoError(t, err)
	f.readings.set(80, 160)

	a, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)

	assert.Equal(t, risk.ScalePoint, a.Scale)
	assert.Equal(t, 9.0, a.Value)
	assert.Equal(t, risk.CategoryEmergency, a.Category)
	assert.Equal(t, 4.0, a.Breakdown.Value(risk.TermEnvironmental))
	assert.Equal(t, "Riyadh", a.Reading.StationName)
	assert.False(t, a.SymptomsLogged)

	require.NotNil(t, a.Alert)
	assert.Equal(t, alert.KindEmergency, a.Alert.Kind)
	assert.True(t, a.Alert.Sent)

	require.Equal(t, 1, f.notifier.count())
	n := f.notifier.sent[0]
	assert.Equal(t, "user-1", n.UserID)
	assert.Equal(t, "ar", n.Locale)
	assert.Nil(t, n.Previous)
	require.Len(t, n.Subscriptions, 1)
	assert.Equal(t, "https://push.example/abc", n.Subscriptions[0].Endpoint)

	stored, err := f.svc.Get(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, a.ID, stored.ID)
}

func TestService_Assess_Rising(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveProfile(t, "user-1", lowRiskProfile)

	first, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, 0.0, first.Value)
	assert.Nil(t, first.Alert)

	f.readings.set(80, 160)
	second, err := f.svc.Assess(ctx, "user-1", "2026-05-05")
	require.NoError(t, err)
	assert.Equal(t, 4.0, second.Value)
	assert.Equal(t, risk.CategoryWarning, second.Category)

	require.NotNil(t, second.Alert)
	assert.Equal(t, alert.KindRising, second.Alert.Kind)
	require.Equal(t, 1, f.notifier.count())
	require.NotNil(t, f.notifier.sent[0].Previous)
	assert.Equal(t, 0.0, *f.notifier.sent[0].Previous)
}

func TestService_Assess_PreviousIsMostRecentBeforeDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveProfile(t, "user-1", lowRiskProfile)

	// 2026-05-03 is low, 2026-05-06 high. Assessing 2026-05-04 compares
	// against 2026-05-03 only.
	_, err := f.svc.Assess(ctx, "user-1", "2026-05-03")
	require.NoError(t, err)
	f.readings.set(80, 160)
	_, err = f.svc.Assess(ctx, "user-1", "2026-05-06")
	require.NoError(t, err)

	a, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	require.NotNil(t, a.Alert)
	assert.Equal(t, alert.KindRising, a.Alert.Kind)
}

func TestService_Assess_AlertsDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveProfile(t, "user-1", nil)
	f.readings.set(80, 160)
	require.NoError(t, f.flags.SetFlag(ctx, &featureflags.Flag{Key: featureflags.FlagDisableAlertsSending, Value: true}))

	a, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)

	require.NotNil(t, a.Alert)
	assert.False(t, a.Alert.Sent)
	assert.Equal(t, assessment.ReasonAlertsDisabled, a.Alert.Reason)
	assert.Zero(t, f.notifier.count())
}

func TestService_Assess_SameDayReplacesAndDoesNotResend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveProfile(t, "user-1", nil)
	f.readings.set(80, 160)

	first, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	require.NotNil(t, first.Alert)
	assert.True(t, first.Alert.Sent)

	for run := 2; run <= 4; run++ {
		again, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
		require.NoError(t, err)

		assert.Equal(t, first.ID, again.ID, "run %d", run)
		require.NotNil(t, again.Alert, "run %d", run)
		assert.False(t, again.Alert.Sent, "run %d", run)
		assert.Equal(t, assessment.ReasonAlreadySent, again.Alert.Reason, "run %d", run)
		assert.Equal(t, 1, f.notifier.count(), "run %d", run)
	}

	stored, err := f.svc.Get(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	require.NotNil(t, stored.Alert)
	assert.Equal(t, assessment.ReasonAlreadySent, stored.Alert.Reason)

	history, err := f.svc.History(ctx, "user-1", "2026-05-01", "2026-05-31")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestService_Assess_SameDayNewKindIsSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveProfile(t, "user-1", nil)

	f.readings.set(30, 60)
	urgent, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	require.NotNil(t, urgent.Alert)
	require.Equal(t, alert.KindUrgent, urgent.Alert.Kind)

	f.readings.set(80, 160)
	emergency, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	require.NotNil(t, emergency.Alert)
	assert.Equal(t, alert.KindEmergency, emergency.Alert.Kind)
	assert.True(t, emergency.Alert.Sent)
	assert.Equal(t, 2, f.notifier.count())
}

func TestService_Assess_StoreFailureSendsNothing(t *testing.T) {
	repo := &flakyRepo{Repository: assessment.NewInMemoryRepository()}
	f := newFixtureWithRepo(t, repo)
	ctx := context.Background()
	f.saveProfile(t, "user-1", nil)
	f.readings.set(80, 160)

	repo.failOn(1)
	_, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.Error(t, err)
	assert.Equal(t, 0, f.notifier.count())

	_, err = f.svc.Get(ctx, "user-1", "2026-05-04")
	assert.ErrorIs(t, err, assessment.ErrAssessmentNotFound)

	a, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	require.NotNil(t, a.Alert)
	assert.True(t, a.Alert.Sent)
	assert.Equal(t, 1, f.notifier.count())

	_, err = f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, 1, f.notifier.count())
}

func TestService_Assess_OutcomeWriteFailureKeepsAssessment(t *testing.T) {
	repo := &flakyRepo{Repository: assessment.NewInMemoryRepository()}
	f := newFixtureWithRepo(t, repo)
	ctx := context.Background()
	f.saveProfile(t, "user-1", nil)
	f.readings.set(80, 160)

	// The assessment write succeeds; recording the alert outcome fails.
	repo.failOn(2)
	a, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	require.NotNil(t, a.Alert)
	assert.True(t, a.Alert.Sent)
	assert.Equal(t, 1, f.notifier.count())

	stored, err := f.svc.Get(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, a.Value, stored.Value)
	assert.Nil(t, stored.Alert)
}

func TestService_Assess_DeliveryFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveProfile(t, "user-1", nil)
	f.readings.set(80, 160)
	f.notifier.err = errors.New("topic unavailable")

	a, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	require.NotNil(t, a.Alert)
	assert.False(t, a.Alert.Sent)
	assert.Equal(t, assessment.ReasonDeliveryFailed, a.Alert.Reason)
}

func TestService_Assess_UsesSymptoms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveProfile(t, "user-1", nil)

	_, err := f.symptoms.Log(ctx, "user-1", "2026-05-04", &symptom.LogInput{
		Symptoms: []risk.SymptomReport{{Symptom: risk.SymptomCough, Present: true, Severity: 5}},
	})
	require.NoError(t, err)

	a, err := f.svc.Assess(ctx, "user-1", "2026-05-04")
	require.NoError(t, err)
	assert.True(t, a.SymptomsLogged)
	assert.Equal(t, 2.0, a.Breakdown.Value(risk.TermSymptoms))
	assert.Equal(t, 7.0, a.Value)
	assert.Equal(t, risk.CategoryUrgent, a.Category)
	require.NotNil(t, a.Alert)
	assert.Equal(t, alert.KindUrgent, a.Alert.Kind)
}

func TestService_Assess_Scale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.saveProfile(t, "weighted-user", func(in *profile.Input) { in.Scale = risk.ScaleWeighted })
	a, err := f.svc.Assess(ctx, "weighted-user", "2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, risk.ScaleWeighted, a.Scale)
	assert.Contains(t, a.Detail, "environmental_score")

	f.saveProfile(t, "default-user", nil)
	require.NoError(t, f.flags.SetFlag(ctx, &featureflags.Flag{Key: featureflags.FlagDefaultRiskScale, Value: "weighted"}))
	a, err = f.svc.Assess(ctx, "default-user", "2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, risk.ScaleWeighted, a.Scale)

	require.NoError(t, f.flags.SetFlag(ctx, &featureflags.Flag{Key: featureflags.FlagDefaultRiskScale, Value: "missing"}))
	a, err = f.svc.Assess(ctx, "default-user", "2026-05-05")
	require.NoError(t, err)
	assert.Equal(t, risk.ScalePoint, a.Scale)
}

func TestService_Assess_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Assess(ctx, "no-location", "2026-05-04")
	assert.ErrorIs(t, err, profile.ErrNoLocation)

	f.saveProfile(t, "user-1", nil)
	f.readings.err = fmt.Errorf("%w: timeout", airquality.ErrProviderUnavailable)
	_, err = f.svc.Assess(ctx, "user-1", "2026-05-04")
	assert.ErrorIs(t, err, airquality.ErrProviderUnavailable)

	_, err = f.svc.Assess(ctx, "user-1", "yesterday")
	assert.ErrorIs(t, err, symptom.ErrInvalidDate)

	_, err = f.svc.Get(ctx, "user-1", "2026-05-04")
	assert.ErrorIs(t, err, assessment.ErrAssessmentNotFound)
}

func TestService_Assess_DefaultsToToday(t *testing.T) {
	f := newFixture(t)
	f.saveProfile(t, "user-1", lowRiskProfile)

	a, err := f.svc.Assess(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, f.svc.Today(), a.Date)
}

func TestService_Preview(t *testing.T) {
	f := newFixture(t)

	score, err := f.svc.Preview(
		risk.EnvironmentalReading{PM25: 80, AQI: 160},
		risk.PersonalFactors{Age: 30, DustSensitivity: risk.SensitivityLow, PhysicalActivity: risk.ActivitySedentary},
		risk.ScalePoint,
	)
	require.NoError(t, err)
	assert.Equal(t, 4.0, score.Value)

	_, err = f.svc.Preview(risk.EnvironmentalReading{}, risk.PersonalFactors{}, risk.ScalePoint)
	assert.True(t, risk.IsInputError(err))

	history, err := f.svc.History(context.Background(), "user-1", "2026-05-01", "2026-05-31")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Zero(t, f.notifier.count())
}

func TestService_Metrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.saveProfile(t, "user-1", nil)

	for _, d := range []string{"2026-05-04", "2026-05-05"} {
		_, err := f.svc.Assess(ctx, "user-1", d)
		require.NoError(t, err)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(ctx, &rm))

	var computed int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "assessment.computed" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				computed += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), computed)
}
