package profile

import (
	"context"
	"sort"
	"sync"
)

// Repository defines the interface for profile persistence.
type Repository interface {
	// Get retrieves the profile of a user.
	Get(ctx context.Context, userID string) (*Profile, error)

	// Upsert creates or replaces the profile of a user.
	Upsert(ctx context.Context, p *Profile) error

	// Delete removes the profile of a user.
	Delete(ctx context.Context, userID string) error

	// ListWithLocation returns every profile that has a location, ordered by
	// user ID.
	ListWithLocation(ctx context.Context) ([]*Profile, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for MVP/testing. Production should use a database-backed implementation.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewInMemoryRepository creates a new in-memory profile repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		profiles: make(map[string]*Profile),
	}
}

func (r *InMemoryRepository) Get(_ context.Context, userID string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return copyProfile(p), nil
}

func (r *InMemoryRepository) Upsert(_ context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyProfile(p)
	stored.Stored = true
	if existing, ok := r.profiles[p.UserID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	r.profiles[p.UserID] = stored
	return nil
}

func (r *InMemoryRepository) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[userID]; !ok {
		return ErrProfileNotFound
	}
	delete(r.profiles, userID)
	return nil
}

func (r *InMemoryRepository) ListWithLocation(_ context.Context) ([]*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Profile
	for _, p := range r.profiles {
		if p.Location != nil {
			out = append(out, copyProfile(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
