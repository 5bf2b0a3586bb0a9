package querycache

import (
	"context"
	"sync"
	"time"
)

// Store persists encoded query results and per-resource versions.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A zero ttl keeps the value until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Version returns the current version of resource, starting at 1.
	Version(ctx context.Context, resource string) (int64, error)
	// Bump increments the version of resource and returns the new value.
	Bump(ctx context.Context, resource string) (int64, error)
}

// Subscriber is implemented by stores shared between processes that announce
// version bumps made elsewhere.
type Subscriber interface {
	Subscribe(ctx context.Context, fn func(resource string)) error
}

type memEntry struct {
	value   []byte
	expires time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]memEntry
	versions map[string]int64
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]memEntry),
		versions: make(map[string]int64),
		now:      time.Now,
	}
}

// WithClock replaces the time source used for expiry.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Get implements Store. Expired entries are removed on access.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Version implements Store.
func (s *MemoryStore) Version(_ context.Context, resource string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[resource]
	if !ok || v <= 0 {
		v = 1
		s.versions[resource] = v
	}
	return v, nil
}

// Bump implements Store.
func (s *MemoryStore) Bump(_ context.Context, resource string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.versions[resource]
	if v <= 0 {
		v = 1
	}
	v++
	s.versions[resource] = v
	return v, nil
}

// Sweep drops expired entries and reports how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}
