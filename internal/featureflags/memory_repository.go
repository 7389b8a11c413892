package featureflags

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository keeps overrides in process memory. Used in tests and
// with STORAGE_BACKEND=memory.
type InMemoryRepository struct {
	mu        sync.RWMutex
	overrides map[string]*Flag
}

// NewInMemoryRepository creates a repository without overrides.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithFlags(nil)
}

// NewInMemoryRepositoryWithFlags creates a repository seeded with overrides.
func NewInMemoryRepositoryWithFlags(flags map[string]*Flag) *InMemoryRepository {
	r := &InMemoryRepository{overrides: make(map[string]*Flag, len(flags))}
	for key, f := range flags {
		r.overrides[key] = f.clone()
	}
	return r
}

func (r *InMemoryRepository) Get(_ context.Context, key string) (*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.overrides[key]; ok {
		return f.clone(), nil
	}
	return nil, ErrFlagNotFound
}

func (r *InMemoryRepository) List(_ context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Flag, len(r.overrides))
	for key, f := range r.overrides {
		out[key] = f.clone()
	}
	return out, nil
}

func (r *InMemoryRepository) Put(_ context.Context, flags ...*Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, f := range flags {
		c := f.clone()
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
		r.overrides[c.Key] = c
	}
	return nil
}

func (r *InMemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.overrides[key]; !ok {
		return ErrFlagNotFound
	}
	delete(r.overrides, key)
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
