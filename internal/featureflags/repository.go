package featureflags

import (
	"context"
	"errors"
)

// ErrFlagNotFound is returned when no override is stored for a key.
var ErrFlagNotFound = errors.New("feature flag not found")

// Repository stores flag overrides. Keys without an override fall back to
// the service defaults.
type Repository interface {
	Get(ctx context.Context, key string) (*Flag, error)
	List(ctx context.Context) (map[string]*Flag, error)

	// Put stores all flags or none.
	Put(ctx context.Context, flags ...*Flag) error

	// Delete removes the override for key, returning ErrFlagNotFound when
	// there is none.
	Delete(ctx context.Context, key string) error
}
