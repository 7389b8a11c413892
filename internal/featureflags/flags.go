// Package featureflags provides runtime switches backed by a repository,
// with an in-process cache and built-in defaults.
package featureflags

import (
	"errors"
	"fmt"
	"time"
)

// Well-known feature flag keys.
const (
	// FlagDisableAlertsSending stops risk alerts from being published.
	FlagDisableAlertsSending = "disable_alerts_sending"

	// FlagCachedOnlyAirQuality serves air quality from cache and the
	// last-known store without calling the provider.
	FlagCachedOnlyAirQuality = "cached_only_air_quality"

	// FlagDefaultRiskScale names the scale used when a profile has none.
	FlagDefaultRiskScale = "default_risk_scale"
)

// ErrInvalidFlagValue is returned when a well-known flag is set to a value
// of the wrong type.
var ErrInvalidFlagValue = errors.New("invalid feature flag value")

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BoolValue returns the flag value as a boolean.
// Returns the default value if the flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON numbers
		return v != 0
	default:
		return defaultValue
	}
}

// StringValue returns the flag value as a string.
// Returns the default value if the flag is nil, empty or not a string.
func (f *Flag) StringValue(defaultValue string) string {
	if f == nil {
		return defaultValue
	}
	if v, ok := f.Value.(string); ok && v != "" {
		return v
	}
	return defaultValue
}

func (f *Flag) clone() *Flag {
	cp := *f
	return &cp
}

// DefaultFlags returns the default feature flags for the application.
func DefaultFlags() map[string]*Flag {
	var epoch time.Time
	return map[string]*Flag{
		FlagDisableAlertsSending: {Key: FlagDisableAlertsSending, Value: false, UpdatedAt: epoch},
		FlagCachedOnlyAirQuality: {Key: FlagCachedOnlyAirQuality, Value: false, UpdatedAt: epoch},
		FlagDefaultRiskScale:     {Key: FlagDefaultRiskScale, Value: "point", UpdatedAt: epoch},
	}
}

// ValidateValue type-checks a value for a well-known flag. Unknown keys
// accept any JSON value.
func ValidateValue(key string, value any) error {
	switch key {
	case FlagDisableAlertsSending, FlagCachedOnlyAirQuality:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrInvalidFlagValue, key)
		}
	case FlagDefaultRiskScale:
		if s, ok := value.(string); !ok || s == "" {
			return fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidFlagValue, key)
		}
	}
	return nil
}
