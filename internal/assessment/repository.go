package assessment

import (
	"context"
	"sort"
	"sync"
)

// Repository defines the interface for assessment persistence.
type Repository interface {
	// Get retrieves the assessment of a user for a date.
	Get(ctx context.Context, userID, date string) (*Assessment, error)

	// Previous retrieves the most recent assessment strictly before date.
	// Returns ErrAssessmentNotFound when there is none.
	Previous(ctx context.Context, userID, date string) (*Assessment, error)

	// List retrieves assessments with from <= date <= to, oldest first.
	List(ctx context.Context, userID, from, to string) ([]*Assessment, error)

	// Upsert stores the assessment for its (user, date), replacing any
	// earlier one. The ID and creation time of a replaced row are kept.
	Upsert(ctx context.Context, a *Assessment) error

	// DeleteByUser removes every assessment of a user.
	DeleteByUser(ctx context.Context, userID string) error
}

type assessmentKey struct {
	userID string
	date   string
}

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[assessmentKey]*Assessment
}

// NewInMemoryRepository creates a new in-memory assessment repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[assessmentKey]*Assessment),
	}
}

func (r *InMemoryRepository) Get(_ context.Context, userID, date string) (*Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[assessmentKey{userID, date}]
	if !ok {
		return nil, ErrAssessmentNotFound
	}
	return copyAssessment(a), nil
}

func (r *InMemoryRepository) Previous(_ context.Context, userID, date string) (*Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Assessment
	for k, a := range r.items {
		if k.userID != userID || k.date >= date {
			continue
		}
		if best == nil || k.date > best.Date {
			best = a
		}
	}
	if best == nil {
		return nil, ErrAssessmentNotFound
	}
	return copyAssessment(best), nil
}

func (r *InMemoryRepository) List(_ context.Context, userID, from, to string) ([]*Assessment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Assessment
	for k, a := range r.items {
		if k.userID == userID && k.date >= from && k.date <= to {
			out = append(out, copyAssessment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *InMemoryRepository) Upsert(_ context.Context, a *Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := assessmentKey{a.UserID, a.Date}
	if existing, ok := r.items[k]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	}
	r.items[k] = copyAssessment(a)
	return nil
}

func (r *InMemoryRepository) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k := range r.items {
		if k.userID == userID {
			delete(r.items, k)
		}
	}
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
