package versionrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
	"github.com/yanqian/trip-planner/internal/domain/planner"
)

// MemoryRepository keeps version history in memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	versions map[string][]planner.Version
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{versions: make(map[string][]planner.Version)}
}

// Append implements planner.VersionRepository. Version numbers must be unique per session.
func (r *MemoryRepository) Append(_ context.Context, v planner.Version) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	v.Itinerary = v.Itinerary.Clone()
	changes := make([]itinerary.Change, len(v.Changes))
	copy(changes, v.Changes)
	v.Changes = changes
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.versions[v.SessionID] {
		if existing.Version == v.Version {
			return fmt.Errorf("version %d of session %s already exists", v.Version, v.SessionID)
		}
	}
	r.versions[v.SessionID] = append(r.versions[v.SessionID], v)
	return nil
}

// List returns the history in ascending version order.
func (r *MemoryRepository) List(_ context.Context, sessionID string) ([]planner.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.versions[sessionID]
	out := make([]planner.Version, len(stored))
	for i, v := range stored {
		v.Itinerary = v.Itinerary.Clone()
		out[i] = v
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

var _ planner.VersionRepository = (*MemoryRepository)(nil)
