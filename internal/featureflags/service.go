package featureflags

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration
	DefaultFlags map[string]*Flag
}

// Service evaluates feature flags with caching and fallback to defaults.
// A nil *Service reports every flag at its default.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag

	mu    sync.RWMutex
	cache map[string]cachedFlag
}

type cachedFlag struct {
	flag      *Flag
	expiresAt time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
		cache:        make(map[string]cachedFlag),
	}
}

// GetFlag retrieves a feature flag by key, from cache, then the repository,
// then the defaults. Returns nil for unknown keys.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if s == nil {
		return DefaultFlags()[key]
	}

	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.flag
	}

	flag, err := s.repo.Get(ctx, key)
	if err == nil {
		s.remember(flag)
		return flag
	}

	if !errors.Is(err, ErrFlagNotFound) {
		s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
	}

	return s.defaultFlags[key]
}

// GetAllFlags returns repository flags merged over the defaults.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	result := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		result[k] = v
	}

	flags, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
		return result
	}

	for k, v := range flags {
		result[k] = v
		s.remember(v)
	}
	return result
}

// SetFlags validates and stores flag updates.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	now := time.Now()
	for _, flag := range flags {
		if err := ValidateValue(flag.Key, flag.Value); err != nil {
			return err
		}
		flag.UpdatedAt = now
	}

	if err := s.repo.Put(ctx, flags...); err != nil {
		return err
	}

	for _, flag := range flags {
		s.remember(flag)
		s.logger.Info().Str("flag", flag.Key).Interface("value", flag.Value).Msg("feature flag updated")
	}
	return nil
}

// SetFlag validates and stores a single flag.
func (s *Service) SetFlag(ctx context.Context, flag *Flag) error {
	return s.SetFlags(ctx, []*Flag{flag})
}

// ResetFlag removes the stored override so key reverts to its default.
// It returns ErrFlagNotFound when no override exists.
func (s *Service) ResetFlag(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	s.logger.Info().Str("flag", key).Msg("feature flag reset to default")
	return nil
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cachedFlag)
}

// IsEnabled returns true if the flag with the given key is truthy.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// String returns a string flag, or fallback when unset.
func (s *Service) String(ctx context.Context, key, fallback string) string {
	return s.GetFlag(ctx, key).StringValue(fallback)
}

// IsAlertsSendingDisabled returns true if sending alerts is disabled.
func (s *Service) IsAlertsSendingDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableAlertsSending)
}

// IsCachedOnlyAirQuality returns true if air quality should only use cached data.
func (s *Service) IsCachedOnlyAirQuality(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagCachedOnlyAirQuality)
}

// DefaultRiskScale returns the configured default scale name.
func (s *Service) DefaultRiskScale(ctx context.Context) string {
	return s.String(ctx, FlagDefaultRiskScale, "point")
}

func (s *Service) remember(flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[flag.Key] = cachedFlag{flag: flag, expiresAt: time.Now().Add(s.cacheTTL)}
}
