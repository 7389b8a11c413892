package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dustguard/dustguard/internal/api/handler"
	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/provider/resilience"
)

func TestOpsHandler_SystemStatus_Providers(t *testing.T) {
	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "waqi", Registry: registry})
	registry.RecordSuccess("waqi")
	registry.RecordFailure("waqi", errors.New("upstream timeout"))

	h := handler.NewOpsHandler(handler.OpsConfig{
		Version:   "test",
		Providers: registry,
		Checks: []handler.DependencyCheck{
			{Name: "postgres", Required: true, Check: func(context.Context) error { return nil }},
		},
		Logger: zerolog.Nop(),
	})

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "postgres", status.Subsystems[0].Name)

	require.Len(t, status.Providers, 1)
	p := status.Providers[0]
	assert.Equal(t, "waqi", p.Provider)
	assert.Equal(t, models.HealthStatusOK, p.Status)
	assert.Equal(t, "closed", p.CircuitState)
	assert.NotNil(t, p.LastSuccessAt)
	assert.NotNil(t, p.LastFailureAt)
	require.NotNil(t, p.Message)
	assert.Equal(t, "upstream timeout", *p.Message)
}

func TestOpsHandler_ReadinessCheck_NoChecks(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{Logger: zerolog.Nop()})

	rec := httptest.NewRecorder()
	h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestOpsHandler_ReadinessCheck_Timeout(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{
		Checks: []handler.DependencyCheck{{
			Name:     "postgres",
			Required: true,
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}},
		Logger: zerolog.Nop(),
	})

	rec := httptest.NewRecorder()
	h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
