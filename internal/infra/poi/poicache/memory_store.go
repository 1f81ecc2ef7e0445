package poicache

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
)

type entry struct {
	pois      []itinerary.POI
	expiresAt time.Time
}

// MemoryStore keeps results in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]itinerary.POI, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && e.expiresAt.Before(s.now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	out := make([]itinerary.POI, len(e.pois))
	copy(out, e.pois)
	return out, true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, pois []itinerary.POI, ttl time.Duration) error {
	stored := make([]itinerary.POI, len(pois))
	copy(stored, pois)
	exp := time.Time{}
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = entry{pois: stored, expiresAt: exp}
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
