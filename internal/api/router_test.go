package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/api"
	"github.com/dustguard/dustguard/internal/api/handler"
	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/assessment"
	"github.com/dustguard/dustguard/internal/auth"
	"github.com/dustguard/dustguard/internal/device"
	"github.com/dustguard/dustguard/internal/featureflags"
	"github.com/dustguard/dustguard/internal/profile"
	"github.com/dustguard/dustguard/internal/risk"
	"github.com/dustguard/dustguard/internal/symptom"
)

const testSigningKey = "test-secret-key-for-testing-only"

type staticProvider struct{}

func (staticProvider) FetchReading(_ context.Context, lat, lon float64) (*airquality.Reading, error) {
	return &airquality.Reading{
		StationName: "Riyadh",
		Lat:         lat,
		Lon:         lon,
		PM25:        42,
		AQI:         117,
		MeasuredAt:  time.Now().Add(-15 * time.Minute),
		FetchedAt:   time.Now(),
		Provider:    "static",
	}, nil
}

func (staticProvider) Name() string { return "static" }

type testEnv struct {
	router http.Handler
	jwt    *auth.JWTService
	flags  *featureflags.Service
}

func newTestEnv(t *testing.T, checks ...handler.DependencyCheck) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	jwtService, err := auth.NewJWTService(auth.JWTConfig{SigningKey: testSigningKey})
	require.NoError(t, err)

	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     logger,
	})
	engine := risk.Default()
	profiles := profile.NewService(profile.NewInMemoryRepository(), engine, logger)
	symptoms := symptom.NewService(symptom.NewInMemoryRepository(), logger)
	devices := device.NewService(device.NewInMemoryRepository(), logger)
	airQuality := airquality.NewService(airquality.ServiceConfig{
		Provider:      staticProvider{},
		Flags:         flags,
		Logger:        logger,
		MeterProvider: noop.NewMeterProvider(),
	})
	assessments, err := assessment.NewService(assessment.ServiceConfig{
		Repo:          assessment.NewInMemoryRepository(),
		Profiles:      profiles,
		Symptoms:      symptoms,
		AirQuality:    airQuality,
		Subscriptions: devices,
		Flags:         flags,
		Engine:        engine,
		Logger:        logger,
		MeterProvider: noop.NewMeterProvider(),
	})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Version:            "test",
		BuildTime:          "2026-01-01T00:00:00Z",
		Logger:             logger,
		TokenValidator:     jwtService,
		Engine:             engine,
		ProfileService:     profiles,
		SymptomService:     symptoms,
		AssessmentService:  assessments,
		DeviceService:      devices,
		FeatureFlagService: flags,
		AirQualityService:  airQuality,
		Checks:             checks,
	})

	return &testEnv{router: router, jwt: jwtService, flags: flags}
}

func (e *testEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, _, err := e.jwt.GenerateAccessToken(userID, role, time.Hour)
	require.NoError(t, err)
	return token
}

// do sends a request with an optional JSON body and bearer token.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "192.0.2.1:1234"

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func validProfile() models.ProfileInput {
	return models.ProfileInput{
		Age:            67,
		Conditions:     []risk.Condition{risk.ConditionAsthma},
		Sensitivity:    risk.SensitivityHigh,
		Activity:       risk.ActivityActive,
		OutdoorMinutes: 120,
		Location:       &models.Point{Lat: 24.71, Lon: 46.67},
		Locale:         "ar",
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/ops/health", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	health := decode[models.Health](t, rec)
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	ok := handler.DependencyCheck{Name: "postgres", Required: true, Check: func(context.Context) error { return nil }}
	down := handler.DependencyCheck{Name: "valkey", Check: func(context.Context) error { return errors.New("connection refused") }}

	t.Run("optional dependency down degrades", func(t *testing.T) {
		env := newTestEnv(t, ok, down)
		rec := env.do(t, http.MethodGet, "/v1/ops/ready", nil, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, models.HealthStatusDegraded, decode[models.Health](t, rec).Status)
	})

	t.Run("required dependency down fails", func(t *testing.T) {
		required := down
		required.Required = true
		env := newTestEnv(t, ok, required)
		rec := env.do(t, http.MethodGet, "/v1/ops/ready", nil, "")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, models.HealthStatusFail, decode[models.Health](t, rec).Status)
	})
}

func TestRouter_SystemStatus_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/ops/status", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/ops/status", nil, env.token(t, "user-1", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[models.SystemStatus](t, rec)
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.NotNil(t, status.AirQuality)
	assert.Equal(t, "static", status.AirQuality.Provider)
	assert.Zero(t, status.AirQuality.FreshCells)
}

func TestRouter_SystemStatus_ReportsDegradationFlags(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.flags.SetFlag(context.Background(), &featureflags.Flag{
		Key:   featureflags.FlagDisableAlertsSending,
		Value: true,
	}))

	rec := env.do(t, http.MethodGet, "/v1/ops/status", nil, env.token(t, "user-1", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[models.SystemStatus](t, rec)
	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	assert.Equal(t, []string{featureflags.FlagDisableAlertsSending}, status.ActiveFlags)
}

func TestRouter_ComputeRisk(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/risk:compute", models.ComputeRequest{
		Reading: risk.EnvironmentalReading{PM25: 42, AQI: 117},
		Factors: risk.PersonalFactors{
			Age:                67,
			ChronicConditions:  []risk.Condition{risk.ConditionAsthma},
			DustSensitivity:    risk.SensitivityHigh,
			OutdoorTimeMinutes: 120,
			PhysicalActivity:   risk.ActivityActive,
		},
	}, "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[models.ComputeResponse](t, rec)
	assert.Equal(t, risk.ScalePoint, got.Scale)
	assert.NotEmpty(t, got.Category)
	assert.NotEmpty(t, got.Breakdown)

	want, err := risk.Compute(risk.EnvironmentalReading{PM25: 42, AQI: 117}, risk.PersonalFactors{
		Age:                67,
		ChronicConditions:  []risk.Condition{risk.ConditionAsthma},
		DustSensitivity:    risk.SensitivityHigh,
		OutdoorTimeMinutes: 120,
		PhysicalActivity:   risk.ActivityActive,
	}, risk.ScalePoint)
	require.NoError(t, err)
	assert.Equal(t, want.Value, got.Value)
	assert.Equal(t, want.Category, got.Category)
}

func TestRouter_ComputeRisk_InvalidEnum(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/risk:compute", models.ComputeRequest{
		Reading: risk.EnvironmentalReading{PM25: 10, AQI: 30},
		Factors: risk.PersonalFactors{
			Age:              30,
			DustSensitivity:  "extreme",
			PhysicalActivity: risk.ActivitySedentary,
		},
		Scale: risk.ScaleWeighted,
	}, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	problem := decode[models.Problem](t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "factors.dustSensitivity", problem.Errors[0].Field)
	assert.Equal(t, "invalid_enum", problem.Errors[0].Code)
}

func TestRouter_ComputeRisk_UnknownScale(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/risk:compute", models.ComputeRequest{
		Reading: risk.EnvironmentalReading{PM25: 10, AQI: 30},
		Factors: risk.PersonalFactors{Age: 30, DustSensitivity: risk.SensitivityLow, PhysicalActivity: risk.ActivitySedentary},
		Scale:   "decimal",
	}, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "scale", decode[models.Problem](t, rec).Errors[0].Field)
}

func TestRouter_ComputeRisk_RejectsBadBodies(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/risk:compute", bytes.NewReader([]byte(`{"reading":{"pm25":1},"bogus":true}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/risk:compute", bytes.NewReader([]byte(`pm25=1`)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_ListScales(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/metadata/scales", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.ScalesResponse](t, rec)
	assert.Equal(t, risk.ScalePoint, got.DefaultScale)
	assert.Contains(t, got.Table.Scales, risk.ScalePoint)
	assert.Contains(t, got.Table.Scales, risk.ScaleWeighted)
	assert.Contains(t, got.Conditions, "asthma")
	assert.Contains(t, got.Symptoms, "shortness_of_breath")
}

func TestRouter_Me_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/v1/me/profile", "/v1/me/devices", "/v1/me/symptoms/2026-03-10"} {
		rec := env.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"), path)
	}
}

func TestRouter_Profile(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "user-1", "")

	rec := env.do(t, http.MethodGet, "/v1/me/profile", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	def := decode[models.Profile](t, rec)
	assert.False(t, def.Stored)
	assert.Equal(t, profile.DefaultAge, def.Age)
	assert.Empty(t, def.Conditions)

	rec = env.do(t, http.MethodPut, "/v1/me/profile", validProfile(), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[models.Profile](t, rec)
	assert.True(t, saved.Stored)
	assert.Equal(t, 67, saved.Age)
	require.NotNil(t, saved.Location)
	assert.InDelta(t, 24.71, saved.Location.Lat, 1e-9)
	assert.NotNil(t, saved.UpdatedAt)

	invalid := validProfile()
	invalid.Age = 400
	invalid.Sensitivity = "extreme"
	rec = env.do(t, http.MethodPut, "/v1/me/profile", invalid, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode[models.Problem](t, rec).Errors, 2)
}

func TestRouter_Symptoms(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "user-1", "")

	rec := env.do(t, http.MethodGet, "/v1/me/symptoms/2026-03-10", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	outdoor := 30.0
	rec = env.do(t, http.MethodPut, "/v1/me/symptoms/2026-03-10", models.SymptomEntryInput{
		Symptoms: []risk.SymptomReport{
			{Symptom: risk.SymptomCough, Present: true, Severity: 6},
		},
		OutdoorMinutes: &outdoor,
	}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entry := decode[models.SymptomEntry](t, rec)
	assert.Equal(t, "2026-03-10", entry.Date)
	require.Len(t, entry.Symptoms, 1)

	rec = env.do(t, http.MethodGet, "/v1/me/symptoms?from=2026-03-01&to=2026-03-31", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[models.SymptomEntryList](t, rec)
	assert.Equal(t, 1, list.Meta.Count)

	rec = env.do(t, http.MethodGet, "/v1/me/symptoms?from=2026-03-31&to=2026-03-01", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/me/symptoms", nil, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode[models.Problem](t, rec).Errors, 2)

	rec = env.do(t, http.MethodPut, "/v1/me/symptoms/10-03-2026", models.SymptomEntryInput{}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/me/symptoms/2026-03-10", nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/v1/me/symptoms/2026-03-10", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Assessments(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "user-1", "")

	rec := env.do(t, http.MethodPost, "/v1/me/risk/assessments", nil, token)
	require.Equal(t, http.StatusConflict, rec.Code, "no location yet")

	rec = env.do(t, http.MethodPut, "/v1/me/profile", validProfile(), token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/me/risk/assessments", models.AssessRequest{Date: "2026-03-10"}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/v1/me/risk/assessments/2026-03-10", rec.Header().Get("Location"))
	created := decode[models.Assessment](t, rec)
	assert.Equal(t, "2026-03-10", created.Date)
	assert.Equal(t, risk.ScalePoint, created.Scale)
	assert.InDelta(t, 42, created.Reading.PM25, 1e-9)
	assert.False(t, created.SymptomsLogged)

	rec = env.do(t, http.MethodGet, "/v1/me/risk/assessments/2026-03-10", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[models.Assessment](t, rec).ID)

	rec = env.do(t, http.MethodGet, "/v1/me/risk/assessments/2026-03-11", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/me/risk/assessments?from=2026-03-01&to=2026-03-31", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.AssessmentList](t, rec).Items, 1)

	rec = env.do(t, http.MethodGet, "/v1/me/risk/assessments?from=2026-03-01&to=2026-03-31", nil, env.token(t, "user-2", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.AssessmentList](t, rec).Items)
}

func TestRouter_Devices(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "user-1", "")

	sub := models.PushSubscriptionInput{
		Endpoint: "https://fcm.googleapis.com/fcm/send/abc123",
		Keys: models.PushSubscriptionKeys{
			P256dh: "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM",
			Auth:   "tBHItJI5svbpez7KI4CCXg",
		},
	}

	rec := env.do(t, http.MethodPost, "/v1/me/devices", sub, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.PushSubscription](t, rec)
	assert.Equal(t, "fcm.googleapis.com", created.EndpointHost)
	assert.NotContains(t, rec.Body.String(), sub.Keys.Auth)

	rec = env.do(t, http.MethodPost, "/v1/me/devices", sub, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[models.PushSubscription](t, rec).ID)

	rec = env.do(t, http.MethodGet, "/v1/me/devices", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.PushSubscriptionList](t, rec).Items, 1)

	bad := sub
	bad.Endpoint = "http://insecure.example/push"
	rec = env.do(t, http.MethodPost, "/v1/me/devices", bad, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/me/devices/"+created.ID, nil, env.token(t, "user-2", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/me/devices/"+created.ID, nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouter_DeleteMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "user-1", "")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/v1/me/profile", validProfile(), token).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/v1/me/symptoms/2026-03-10", models.SymptomEntryInput{
		Symptoms: []risk.SymptomReport{{Symptom: risk.SymptomSneezing, Present: true, Severity: 3}},
	}, token).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/v1/me/risk/assessments", models.AssessRequest{Date: "2026-03-10"}, token).Code)

	rec := env.do(t, http.MethodDelete, "/v1/me", nil, token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.False(t, decode[models.Profile](t, env.do(t, http.MethodGet, "/v1/me/profile", nil, token)).Stored)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/me/symptoms/2026-03-10", nil, token).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/me/risk/assessments/2026-03-10", nil, token).Code)
}

func TestRouter_AdminFeatureFlags(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "ops-1", auth.RoleAdmin)

	rec := env.do(t, http.MethodGet, "/v1/admin/feature-flags", nil, env.token(t, "user-1", ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/admin/feature-flags", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.FeatureFlagList](t, rec).Flags, 3)

	rec = env.do(t, http.MethodPut, "/v1/admin/feature-flags", models.FeatureFlagUpsertRequest{
		Flags: []models.FeatureFlag{{Key: featureflags.FlagDefaultRiskScale, Value: "weighted"}},
	}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/metadata/scales", nil, "")
	assert.Equal(t, risk.ScaleWeighted, decode[models.ScalesResponse](t, rec).DefaultScale)

	rec = env.do(t, http.MethodPut, "/v1/admin/feature-flags", models.FeatureFlagUpsertRequest{
		Flags: []models.FeatureFlag{{Key: featureflags.FlagDisableAlertsSending, Value: "yes"}},
	}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/v1/admin/feature-flags", models.FeatureFlagUpsertRequest{}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/admin/feature-flags/invalidate", nil, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/admin/feature-flags/"+featureflags.FlagDefaultRiskScale, nil, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/metadata/scales", nil, "")
	assert.Equal(t, risk.ScalePoint, decode[models.ScalesResponse](t, rec).DefaultScale)

	rec = env.do(t, http.MethodDelete, "/v1/admin/feature-flags/"+featureflags.FlagDefaultRiskScale, nil, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/routes:compute", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
