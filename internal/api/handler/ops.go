// Package handler provides HTTP handlers for the DustGuard API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/api/models"
	"github.com/dustguard/dustguard/internal/api/response"
	"github.com/dustguard/dustguard/internal/featureflags"
	"github.com/dustguard/dustguard/internal/provider/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// DependencyCheck probes one backing service, such as the database or the
// cache.
type DependencyCheck struct {
	Name string
	// Required dependencies fail readiness; optional ones only degrade it.
	Required bool
	Check    func(ctx context.Context) error
}

// OpsConfig holds the dependencies of OpsHandler. All fields but Version and
// BuildTime are optional.
type OpsConfig struct {
	Version      string
	BuildTime    string
	Checks       []DependencyCheck
	Providers    *resilience.Registry
	AirQuality   *airquality.Service
	FeatureFlags *featureflags.Service
	Logger       zerolog.Logger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It returns 503 when a required
// dependency is down.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems, status := h.checkSubsystems(r.Context())

	details := make(map[string]any, len(subsystems))
	for _, s := range subsystems {
		details[s.Name] = s.Status
	}

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subsystems, status := h.checkSubsystems(ctx)

	var cache *models.AirQualityCache
	if h.cfg.AirQuality != nil {
		c := h.cfg.AirQuality.CacheStatus()
		cache = &models.AirQualityCache{Provider: c.Provider, Cells: c.Cells, FreshCells: c.Fresh}
	}

	providers := h.providerStatuses()
	for _, p := range providers {
		if p.Status != models.HealthStatusOK && status == models.HealthStatusOK {
			status = models.HealthStatusDegraded
		}
	}

	flags := h.degradationFlags(ctx)
	if len(flags) > 0 && status == models.HealthStatusOK {
		status = models.HealthStatusDegraded
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:      status,
		Time:        models.Timestamp(time.Now()),
		Subsystems:  subsystems,
		Providers:   providers,
		AirQuality:  cache,
		ActiveFlags: flags,
	})
}

func (h *OpsHandler) checkSubsystems(ctx context.Context) ([]models.SubsystemStatus, models.HealthStatus) {
	overall := models.HealthStatusOK
	out := make([]models.SubsystemStatus, 0, len(h.cfg.Checks))

	for _, c := range h.cfg.Checks {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := c.Check(checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err != nil {
			msg := err.Error()
			s.Detail = &msg
			h.cfg.Logger.Warn().Err(err).Str("dependency", c.Name).Msg("dependency check failed")
			if c.Required {
				s.Status = models.HealthStatusFail
				overall = models.HealthStatusFail
			} else {
				s.Status = models.HealthStatusDegraded
				if overall == models.HealthStatusOK {
					overall = models.HealthStatusDegraded
				}
			}
		}
		out = append(out, s)
	}
	return out, overall
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.cfg.Providers == nil {
		return []models.ProviderStatus{}
	}

	all := h.cfg.Providers.All()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, p := range all {
		ps := models.ProviderStatus{
			Provider:      p.Name,
			Status:        providerStatus(p.Status()),
			CircuitState:  p.CircuitState.String(),
			LastSuccessAt: models.TimestampPtr(p.LastSuccessAt),
			LastFailureAt: models.TimestampPtr(p.LastFailureAt),
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

func providerStatus(s string) models.HealthStatus {
	switch s {
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	case resilience.StatusUnhealthy:
		return models.HealthStatusFail
	default:
		return models.HealthStatusOK
	}
}

func (h *OpsHandler) degradationFlags(ctx context.Context) []string {
	if h.cfg.FeatureFlags == nil {
		return nil
	}
	var active []string
	for _, key := range []string{featureflags.FlagDisableAlertsSending, featureflags.FlagCachedOnlyAirQuality} {
		if h.cfg.FeatureFlags.IsEnabled(ctx, key) {
			active = append(active, key)
		}
	}
	return active
}
