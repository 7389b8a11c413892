package airquality

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/dustguard/dustguard/internal/featureflags"
)

// Provider defines the interface for air quality data providers.
type Provider interface {
	// FetchReading returns the current reading closest to lat/lon.
	FetchReading(ctx context.Context, lat, lon float64) (*Reading, error)

	// Name identifies the provider.
	Name() string
}

// FlagChecker reports boolean feature flags.
type FlagChecker interface {
	IsEnabled(ctx context.Context, key string) bool
}

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Provider is the air quality data provider.
	Provider Provider

	// Store keeps last-known readings. Defaults to an in-memory store.
	Store LastKnownStore

	// Flags is optional; when set, cached_only_air_quality is honored.
	Flags FlagChecker

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long a cell's reading is served without refetching
	// (default: 10 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale cached readings on provider errors
	// (default: 1 hour).
	StaleIfErrorTTL time.Duration

	// MeterProvider for provider and cache metrics. Defaults to the global one.
	MeterProvider metric.MeterProvider
}

type cacheEntry struct {
	reading   *Reading
	expiresAt time.Time
}

// Service provides air quality readings with per-cell caching.
type Service struct {
	provider        Provider
	store           LastKnownStore
	flags           FlagChecker
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	metrics         *providerMetrics

	mu    sync.RWMutex
	cells map[string]*cacheEntry
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = time.Hour
	}

	store := cfg.Store
	if store == nil {
		store = NewMemoryStore(0)
	}

	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	metrics, err := newProviderMetrics(mp)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("air quality metrics disabled")
		metrics, _ = newProviderMetrics(noop.NewMeterProvider()) //nolint:errcheck // noop never fails
	}

	return &Service{
		provider:        cfg.Provider,
		store:           store,
		flags:           cfg.Flags,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		metrics:         metrics,
		cells:           make(map[string]*cacheEntry),
	}
}

// GetReading returns the current reading for a location.
//
// Fresh cached readings are returned directly. On provider failure the
// service falls back to a stale cached reading, then to the last-known store.
// ErrProviderUnavailable is returned when none of these has data.
func (s *Service) GetReading(ctx context.Context, lat, lon float64) (*Reading, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	cell := CellKey(lat, lon)
	now := time.Now()

	s.mu.RLock()
	entry := s.cells[cell]
	s.mu.RUnlock()
	if entry != nil && now.Before(entry.expiresAt) {
		s.metrics.recordCache(ctx, true)
		return entry.reading, nil
	}
	s.metrics.recordCache(ctx, false)

	if s.cachedOnly(ctx) {
		s.logger.Debug().Str("cell", cell).Msg("cached-only mode, skipping provider")
		return s.fallback(ctx, cell, entry, ErrProviderUnavailable)
	}

	start := time.Now()
	reading, err := s.provider.FetchReading(ctx, lat, lon)
	s.metrics.recordRequest(ctx, s.provider.Name(), time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).Str("cell", cell).Str("provider", s.provider.Name()).Msg("failed to fetch air quality reading")
		return s.fallback(ctx, cell, entry, err)
	}

	if reading.FetchedAt.IsZero() {
		reading.FetchedAt = now
	}
	if reading.Provider == "" {
		reading.Provider = s.provider.Name()
	}

	s.mu.Lock()
	s.cells[cell] = &cacheEntry{reading: reading, expiresAt: now.Add(s.cacheTTL)}
	s.mu.Unlock()

	if err := s.store.Put(ctx, cell, reading); err != nil {
		s.logger.Warn().Err(err).Str("cell", cell).Msg("failed to persist last-known reading")
	}

	s.logger.Debug().
		Str("cell", cell).
		Float64("aqi", reading.AQI).
		Float64("pm25", reading.PM25).
		Msg("air quality reading refreshed")

	return reading, nil
}

func (s *Service) fallback(ctx context.Context, cell string, entry *cacheEntry, cause error) (*Reading, error) {
	if entry != nil && entry.reading.Age(time.Now()) <= s.staleIfErrorTTL {
		s.logger.Warn().
			Str("cell", cell).
			Time("fetched_at", entry.reading.FetchedAt).
			Msg("serving stale air quality reading")
		s.metrics.recordFallback(ctx, "stale_cache")
		return entry.reading, nil
	}

	reading, ok, err := s.store.Get(ctx, cell)
	if err != nil {
		s.logger.Warn().Err(err).Str("cell", cell).Msg("failed to read last-known reading")
	}
	if ok {
		s.logger.Warn().
			Str("cell", cell).
			Time("fetched_at", reading.FetchedAt).
			Msg("serving last-known air quality reading")
		s.metrics.recordFallback(ctx, "last_known")
		return reading, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, cause)
}

func (s *Service) cachedOnly(ctx context.Context) bool {
	if s.flags == nil {
		return false
	}
	return s.flags.IsEnabled(ctx, featureflags.FlagCachedOnlyAirQuality)
}

// InvalidateCache clears all cached cells. The last-known store is untouched.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells = make(map[string]*cacheEntry)
}

// CacheStatus represents the current state of the cache.
type CacheStatus struct {
	Cells    int
	Fresh    int
	Provider string
}

// CacheStatus returns information about the current cache state.
func (s *Service) CacheStatus() CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	status := CacheStatus{Cells: len(s.cells), Provider: s.provider.Name()}
	for _, e := range s.cells {
		if now.Before(e.expiresAt) {
			status.Fresh++
		}
	}
	return status
}
