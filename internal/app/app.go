// Package app wires DustGuard's services from the environment. The API and
// the worker share it so both see the same storage, providers and flags.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"
	"go.opentelemetry.io/otel/metric"

	"github.com/dustguard/dustguard/internal/airquality"
	"github.com/dustguard/dustguard/internal/airquality/openweathermap"
	"github.com/dustguard/dustguard/internal/airquality/waqi"
	"github.com/dustguard/dustguard/internal/alert"
	"github.com/dustguard/dustguard/internal/assessment"
	"github.com/dustguard/dustguard/internal/database"
	"github.com/dustguard/dustguard/internal/device"
	"github.com/dustguard/dustguard/internal/featureflags"
	"github.com/dustguard/dustguard/internal/profile"
	"github.com/dustguard/dustguard/internal/provider/resilience"
	"github.com/dustguard/dustguard/internal/risk"
	"github.com/dustguard/dustguard/internal/symptom"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config selects the backing services. ConfigFromEnv fills it.
type Config struct {
	// Storage is StoragePostgres or StorageMemory.
	Storage  string
	Database database.Config
	// Migrate applies the embedded schema on start.
	Migrate bool

	// ValkeyAddr enables the shared last-known reading store. Either
	// host:port or a valkey:// URL.
	ValkeyAddr string

	WAQIToken   string
	WAQIBaseURL string

	// OpenWeatherMapKey adds OpenWeatherMap as a fallback provider.
	OpenWeatherMapKey string

	// PubSubProjectID and AlertsTopic enable alert publishing; without them
	// alerts are only logged.
	PubSubProjectID string
	AlertsTopic     string

	// RiskTablePath overrides the built-in scale table.
	RiskTablePath string

	// TimeZone decides what "today" is for assessments.
	TimeZone string
}

// ConfigFromEnv reads the configuration from environment variables.
func ConfigFromEnv() Config {
	return Config{
		Storage:           getEnvOrDefault("STORAGE_BACKEND", StoragePostgres),
		Database:          database.ConfigFromEnv(),
		Migrate:           os.Getenv("DB_MIGRATE") == "true",
		ValkeyAddr:        os.Getenv("VALKEY_ADDR"),
		WAQIToken:         os.Getenv("WAQI_TOKEN"),
		WAQIBaseURL:       os.Getenv("WAQI_BASE_URL"),
		OpenWeatherMapKey: os.Getenv("OPENWEATHERMAP_API_KEY"),
		PubSubProjectID:   os.Getenv("PUBSUB_PROJECT_ID"),
		AlertsTopic:       os.Getenv("PUBSUB_ALERTS_TOPIC"),
		RiskTablePath:     os.Getenv("RISK_TABLE_PATH"),
		TimeZone:          getEnvOrDefault("ASSESSMENT_TIMEZONE", "UTC"),
	}
}

// App holds the wired services.
type App struct {
	Pool   *pgxpool.Pool
	Valkey valkey.Client

	Engine      *risk.Engine
	Providers   *resilience.Registry
	Flags       *featureflags.Service
	AirQuality  *airquality.Service
	Profiles    *profile.Service
	Symptoms    *symptom.Service
	Devices     *device.Service
	Assessments *assessment.Service

	logger  zerolog.Logger
	closers []func() error
}

// New connects the backing services and builds the domain services.
// Close must be called when New succeeds.
func New(ctx context.Context, cfg Config, logger zerolog.Logger, mp metric.MeterProvider) (*App, error) {
	a := &App{logger: logger, Providers: resilience.NewRegistry()}

	if err := a.initEngine(cfg); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", cfg.TimeZone, err)
	}

	var (
		profileRepo    profile.Repository    = profile.NewInMemoryRepository()
		symptomRepo    symptom.Repository    = symptom.NewInMemoryRepository()
		deviceRepo     device.Repository     = device.NewInMemoryRepository()
		assessmentRepo assessment.Repository = assessment.NewInMemoryRepository()
		flagRepo       featureflags.Repository
	)

	switch cfg.Storage {
	case StoragePostgres:
		if err := a.initPostgres(ctx, cfg); err != nil {
			a.Close()
			return nil, err
		}
		profileRepo = profile.NewPostgresRepository(a.Pool)
		symptomRepo = symptom.NewPostgresRepository(a.Pool)
		deviceRepo = device.NewPostgresRepository(a.Pool)
		assessmentRepo = assessment.NewPostgresRepository(a.Pool)
		flagRepo = featureflags.NewPostgresRepository(a.Pool)
	case StorageMemory:
		logger.Warn().Msg("using in-memory storage - data is lost on restart")
		flagRepo = featureflags.NewInMemoryRepository()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}

	a.Flags = featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagRepo,
		Logger:     logger,
		CacheTTL:   time.Minute,
	})

	a.AirQuality = airquality.NewService(airquality.ServiceConfig{
		Provider:      a.provider(cfg),
		Store:         a.lastKnownStore(ctx, cfg),
		Flags:         a.Flags,
		Logger:        logger,
		MeterProvider: mp,
	})

	a.Profiles = profile.NewService(profileRepo, a.Engine, logger)
	a.Symptoms = symptom.NewService(symptomRepo, logger)
	a.Devices = device.NewService(deviceRepo, logger)

	a.Assessments, err = assessment.NewService(assessment.ServiceConfig{
		Repo:          assessmentRepo,
		Profiles:      a.Profiles,
		Symptoms:      a.Symptoms,
		AirQuality:    a.AirQuality,
		Subscriptions: a.Devices,
		Flags:         a.Flags,
		Notifier:      a.notifier(ctx, cfg),
		Engine:        a.Engine,
		Logger:        logger,
		MeterProvider: mp,
		Location:      loc,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create assessment service: %w", err)
	}

	return a, nil
}

// provider returns WAQI, backed by OpenWeatherMap when a key is configured.
func (a *App) provider(cfg Config) airquality.Provider {
	if cfg.WAQIToken == "" {
		a.logger.Warn().Msg("WAQI_TOKEN not set - provider requests will be rejected")
	}
	primary := waqi.NewClient(waqi.ClientConfig{
		BaseURL:  cfg.WAQIBaseURL,
		Token:    cfg.WAQIToken,
		Registry: a.Providers,
	})
	if cfg.OpenWeatherMapKey == "" {
		return primary
	}

	a.logger.Info().Msg("openweathermap fallback provider enabled")
	return airquality.NewChain(a.logger, primary, openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:   cfg.OpenWeatherMapKey,
		Registry: a.Providers,
		Logger:   a.logger.With().Str("provider", openweathermap.ProviderName).Logger(),
	}))
}

func (a *App) initEngine(cfg Config) error {
	if cfg.RiskTablePath == "" {
		a.Engine = risk.Default()
		return nil
	}
	table, err := risk.LoadTable(cfg.RiskTablePath)
	if err != nil {
		return err
	}
	a.Engine, err = risk.NewEngine(table)
	if err != nil {
		return err
	}
	a.logger.Info().Str("path", cfg.RiskTablePath).Msg("risk table loaded")
	return nil
}

func (a *App) initPostgres(ctx context.Context, cfg Config) error {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	a.logger.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("database connected")

	if cfg.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		a.logger.Info().Msg("database schema applied")
	}
	return nil
}

// lastKnownStore returns a Valkey store when configured and reachable, and
// an in-memory store otherwise.
func (a *App) lastKnownStore(ctx context.Context, cfg Config) airquality.LastKnownStore {
	if cfg.ValkeyAddr == "" {
		return airquality.NewMemoryStore(airquality.DefaultLastKnownTTL)
	}

	opt, err := valkeyOptions(cfg.ValkeyAddr)
	if err != nil {
		a.logger.Error().Err(err).Msg("invalid valkey configuration, falling back to memory store")
		return airquality.NewMemoryStore(airquality.DefaultLastKnownTTL)
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to create valkey client, falling back to memory store")
		return airquality.NewMemoryStore(airquality.DefaultLastKnownTTL)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		a.logger.Error().Err(err).Msg("valkey ping failed, falling back to memory store")
		return airquality.NewMemoryStore(airquality.DefaultLastKnownTTL)
	}

	a.Valkey = client
	a.closers = append(a.closers, func() error { client.Close(); return nil })
	a.logger.Info().Str("addr", cfg.ValkeyAddr).Msg("valkey last-known store enabled")
	return airquality.NewValkeyStore(client, "", airquality.DefaultLastKnownTTL)
}

func valkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func (a *App) notifier(ctx context.Context, cfg Config) alert.Notifier {
	if cfg.PubSubProjectID == "" || cfg.AlertsTopic == "" {
		a.logger.Warn().Msg("alert topic not configured - alerts are logged only")
		return alert.LogNotifier{Logger: a.logger}
	}

	publisher, err := alert.NewTopicPublisher(ctx, cfg.PubSubProjectID, cfg.AlertsTopic)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to create alert publisher - alerts are logged only")
		return alert.LogNotifier{Logger: a.logger}
	}
	a.closers = append(a.closers, publisher.Close)
	a.logger.Info().Str("topic", cfg.AlertsTopic).Msg("alert publishing enabled")
	return alert.NewPubSubNotifier(publisher, a.logger)
}

// PingDatabase checks the Postgres pool. It reports nil in memory mode.
func (a *App) PingDatabase(ctx context.Context) error {
	if a.Pool == nil {
		return nil
	}
	return a.Pool.Ping(ctx)
}

// PingValkey checks the Valkey connection. It reports nil when Valkey is not
// in use.
func (a *App) PingValkey(ctx context.Context) error {
	if a.Valkey == nil {
		return nil
	}
	return a.Valkey.Do(ctx, a.Valkey.B().Ping().Build()).Error()
}

// Close releases the connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
