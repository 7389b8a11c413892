package device

import (
	"context"
	"sort"
	"sync"
)

// Repository defines the interface for subscription persistence.
type Repository interface {
	// Get retrieves a subscription by user ID and subscription ID.
	Get(ctx context.Context, userID, id string) (*Subscription, error)

	// ListByUser retrieves all subscriptions of a user, oldest first.
	ListByUser(ctx context.Context, userID string) ([]*Subscription, error)

	// Upsert creates or updates a subscription keyed by its endpoint.
	// Returns true if a new subscription was created, false if updated.
	Upsert(ctx context.Context, sub *Subscription) (created bool, err error)

	// Delete deletes a subscription.
	Delete(ctx context.Context, userID, id string) error

	// DeleteByUser deletes all subscriptions of a user.
	DeleteByUser(ctx context.Context, userID string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu        sync.RWMutex
	subs      map[string]*Subscription // keyed by subscription ID
	endpoints map[string]string        // endpoint -> subscription ID
}

// NewInMemoryRepository creates a new in-memory subscription repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		subs:      make(map[string]*Subscription),
		endpoints: make(map[string]string),
	}
}

func (r *InMemoryRepository) Get(_ context.Context, userID, id string) (*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subs[id]
	if !ok || sub.UserID != userID {
		return nil, ErrSubscriptionNotFound
	}
	return copySubscription(sub), nil
}

func (r *InMemoryRepository) ListByUser(_ context.Context, userID string) ([]*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			items = append(items, copySubscription(sub))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// Upsert keeps the original ID and creation time when the endpoint is
// already known. The endpoint moves to sub.UserID if another user held it.
func (r *InMemoryRepository) Upsert(_ context.Context, sub *Subscription) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existingID, ok := r.endpoints[sub.Endpoint]; ok {
		existing := r.subs[existingID]
		existing.UserID = sub.UserID
		existing.P256dh = sub.P256dh
		existing.Auth = sub.Auth
		existing.UserAgent = sub.UserAgent
		existing.UpdatedAt = sub.UpdatedAt

		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
		return false, nil
	}

	r.subs[sub.ID] = copySubscription(sub)
	r.endpoints[sub.Endpoint] = sub.ID
	return true, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || sub.UserID != userID {
		return ErrSubscriptionNotFound
	}

	delete(r.endpoints, sub.Endpoint)
	delete(r.subs, id)
	return nil
}

func (r *InMemoryRepository) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, sub := range r.subs {
		if sub.UserID == userID {
			delete(r.endpoints, sub.Endpoint)
			delete(r.subs, id)
		}
	}
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
