package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/trip-planner/internal/domain/planner"
)

type sessionRecord struct {
	payload   planner.Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Intended for tests and local dev.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]sessionRecord
	now      func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]sessionRecord), now: time.Now}
}

// Get implements planner.SessionStore.
func (s *MemoryStore) Get(_ context.Context, id string) (planner.Session, bool, error) {
	s.mu.RLock()
	record, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return planner.Session{}, false, nil
	}
	if !record.expiresAt.IsZero() && record.expiresAt.Before(s.now()) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return planner.Session{}, false, nil
	}
	return cloneSession(record.payload), true, nil
}

// Save implements planner.SessionStore. A non-positive ttl never expires.
func (s *MemoryStore) Save(_ context.Context, session planner.Session, ttl time.Duration) error {
	exp := time.Time{}
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.sessions[session.ID] = sessionRecord{payload: cloneSession(session), expiresAt: exp}
	s.mu.Unlock()
	return nil
}

// cloneSession detaches the itinerary so callers cannot mutate stored state.
func cloneSession(s planner.Session) planner.Session {
	if s.Itinerary != nil {
		it := s.Itinerary.Clone()
		s.Itinerary = &it
	}
	s.Draft.Interests = append([]string(nil), s.Draft.Interests...)
	return s
}

var _ planner.SessionStore = (*MemoryStore)(nil)
