// Package api provides the HTTP API for DustGuard.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/api/handler"
	"github.com/dustguard/dustguard/internal/api/middleware"
	"github.com/dustguard/dustguard/internal/assessment"
	"github.com/dustguard/dustguard/internal/device"
	"github.com/dustguard/dustguard/internal/featureflags"
	"github.com/dustguard/dustguard/internal/profile"
	"github.com/dustguard/dustguard/internal/provider/resilience"
	"github.com/dustguard/dustguard/internal/risk"
	"github.com/dustguard/dustguard/internal/symptom"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// TokenValidator checks bearer tokens on /me, /admin and /ops/status.
	TokenValidator middleware.TokenValidator

	// CORSOrigins enables CORS for the listed PWA origins.
	CORSOrigins []string

	Engine             *risk.Engine
	ProfileService     *profile.Service
	SymptomService     *symptom.Service
	AssessmentService  *assessment.Service
	DeviceService      *device.Service
	FeatureFlagService *featureflags.Service
	AirQualityService  *airquality.Service

	// Providers and Checks feed the ops endpoints; both are optional.
	Providers *resilience.Registry
	Checks    []handler.DependencyCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "dustguard-api"
	}
	engine := cfg.Engine
	if engine == nil {
		engine = risk.Default()
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS) // enabled via REQUIRE_TLS=true
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:      cfg.Version,
		BuildTime:    cfg.BuildTime,
		Checks:       cfg.Checks,
		Providers:    cfg.Providers,
		AirQuality:   cfg.AirQualityService,
		FeatureFlags: cfg.FeatureFlagService,
		Logger:       cfg.Logger,
	})
	metadataHandler := handler.NewMetadataHandler(engine, cfg.FeatureFlagService)
	riskHandler := handler.NewRiskHandler(engine, cfg.FeatureFlagService, cfg.Logger)
	profileHandler := handler.NewProfileHandler(cfg.ProfileService, cfg.Logger)
	symptomHandler := handler.NewSymptomHandler(cfg.SymptomService, cfg.Logger)
	assessmentHandler := handler.NewAssessmentHandler(cfg.AssessmentService, cfg.Logger)
	deviceHandler := handler.NewDeviceHandler(cfg.DeviceService, cfg.Logger)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, cfg.AirQualityService, cfg.Logger)
	meHandler := handler.NewMeHandler(map[string]handler.Eraser{
		"profile":       cfg.ProfileService,
		"symptoms":      cfg.SymptomService,
		"assessments":   cfg.AssessmentService,
		"subscriptions": cfg.DeviceService,
	}, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.TokenValidator)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Stateless scoring is public; clients compute before signing in.
		r.With(middleware.RateLimitByIP(middleware.ComputeRateLimit)).Post("/risk:compute", riskHandler.Compute)

		r.Route("/metadata", func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(middleware.StandardRateLimit))
			r.Get("/scales", metadataHandler.ListScales)
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))

			r.Delete("/", meHandler.DeleteMe)

			r.Get("/profile", profileHandler.GetProfile)
			r.Put("/profile", profileHandler.UpsertProfile)

			r.Route("/symptoms", func(r chi.Router) {
				r.Get("/", symptomHandler.ListEntries)
				r.Route("/{date}", func(r chi.Router) {
					r.Get("/", symptomHandler.GetEntry)
					r.Put("/", symptomHandler.PutEntry)
					r.Delete("/", symptomHandler.DeleteEntry)
				})
			})

			r.Route("/risk/assessments", func(r chi.Router) {
				r.Get("/", assessmentHandler.ListAssessments)
				r.With(middleware.RateLimitByUser(middleware.AssessRateLimit)).Post("/", assessmentHandler.Assess)
				r.Get("/{date}", assessmentHandler.GetAssessment)
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", deviceHandler.ListDevices)
				r.Post("/", deviceHandler.RegisterDevice)
				r.Delete("/{subscriptionId}", deviceHandler.UnregisterDevice)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireAdmin)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit))

			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
				r.Delete("/{key}", featureFlagsHandler.ResetFeatureFlag)
			})
		})
	})

	return r
}
