package airquality

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

// DefaultLastKnownTTL bounds how long a last-known reading is kept.
const DefaultLastKnownTTL = 24 * time.Hour

// LastKnownStore keeps the most recent successful reading per grid cell so
// that assessments can proceed while the provider is down.
type LastKnownStore interface {
	Get(ctx context.Context, cell string) (*Reading, bool, error)
	Put(ctx context.Context, cell string, reading *Reading) error
}

// MemoryStore is an in-process LastKnownStore.
type MemoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	readings map[string]*Reading
}

// NewMemoryStore creates a MemoryStore. A zero ttl uses DefaultLastKnownTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultLastKnownTTL
	}
	return &MemoryStore{ttl: ttl, readings: make(map[string]*Reading)}
}

func (s *MemoryStore) Get(_ context.Context, cell string) (*Reading, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.readings[cell]
	if !ok || time.Since(r.FetchedAt) > s.ttl {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

func (s *MemoryStore) Put(_ context.Context, cell string, reading *Reading) error {
	cp := *reading
	s.mu.Lock()
	s.readings[cell] = &cp
	s.mu.Unlock()
	return nil
}

// ValkeyStore persists last-known readings in Valkey as JSON with a TTL, so
// they survive restarts and are shared between API and worker instances.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyStore constructs a store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string, ttl time.Duration) *ValkeyStore {
	if prefix == "" {
		prefix = "aq:lastknown"
	}
	if ttl < time.Second {
		ttl = DefaultLastKnownTTL
	}
	return &ValkeyStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *ValkeyStore) Get(ctx context.Context, cell string) (*Reading, bool, error) {
	payload, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(cell)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var r Reading
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}

func (s *ValkeyStore) Put(ctx context.Context, cell string, reading *Reading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	cmd := s.client.B().Set().Key(s.key(cell)).Value(string(payload)).Ex(s.ttl).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) key(cell string) string {
	return s.prefix + ":" + cell
}

var (
	_ LastKnownStore = (*MemoryStore)(nil)
	_ LastKnownStore = (*ValkeyStore)(nil)
)
