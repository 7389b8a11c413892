package symptom

import (
	"context"
	"sort"
	"sync"
)

// Repository defines the interface for symptom entry persistence.
type Repository interface {
	// Get retrieves the entry for a user and date.
	Get(ctx context.Context, userID, date string) (*Entry, error)

	// List retrieves entries with from <= date <= to, oldest first.
	List(ctx context.Context, userID, from, to string) ([]*Entry, error)

	// Upsert stores the entry for its (user, date), replacing any earlier
	// one. Returns true if a new entry was created.
	Upsert(ctx context.Context, entry *Entry) (bool, error)

	// Delete removes the entry for a user and date.
	Delete(ctx context.Context, userID, date string) error

	// DeleteByUser removes every entry of a user.
	DeleteByUser(ctx context.Context, userID string) error
}

type entryKey struct {
	userID string
	date   string
}

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[entryKey]*Entry
}

// NewInMemoryRepository creates a new in-memory symptom repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		entries: make(map[entryKey]*Entry),
	}
}

func (r *InMemoryRepository) Get(_ context.Context, userID, date string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[entryKey{userID, date}]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return copyEntry(e), nil
}

func (r *InMemoryRepository) List(_ context.Context, userID, from, to string) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for k, e := range r.entries {
		// YYYY-MM-DD compares lexically.
		if k.userID == userID && k.date >= from && k.date <= to {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *InMemoryRepository) Upsert(_ context.Context, entry *Entry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := entryKey{entry.UserID, entry.Date}
	existing, ok := r.entries[k]
	stored := copyEntry(entry)
	if ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	}
	r.entries[k] = stored
	return !ok, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, userID, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := entryKey{userID, date}
	if _, ok := r.entries[k]; !ok {
		return ErrEntryNotFound
	}
	delete(r.entries, k)
	return nil
}

func (r *InMemoryRepository) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k := range r.entries {
		if k.userID == userID {
			delete(r.entries, k)
		}
	}
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
