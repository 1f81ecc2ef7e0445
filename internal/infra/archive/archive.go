// Package archive writes itinerary snapshots to object storage.
package archive

import (
	"context"
	"fmt"
	"sync"

	"github.com/yanqian/trip-planner/internal/domain/planner"
)

// ObjectKey is where a snapshot lives inside the bucket.
func ObjectKey(sessionID string, version int) string {
	return fmt.Sprintf("sessions/%s/v%d.json", sessionID, version)
}

// Noop discards snapshots. Used when archiving is disabled.
type Noop struct{}

// Put implements planner.Archive.
func (Noop) Put(context.Context, planner.Snapshot) error { return nil }

// MemoryArchive keeps snapshots in memory. Useful for tests and local dev.
type MemoryArchive struct {
	mu        sync.RWMutex
	snapshots map[string]planner.Snapshot
}

// NewMemoryArchive constructs an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{snapshots: make(map[string]planner.Snapshot)}
}

// Put implements planner.Archive.
func (a *MemoryArchive) Put(_ context.Context, snap planner.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap.Itinerary = snap.Itinerary.Clone()
	a.snapshots[ObjectKey(snap.SessionID, snap.Version)] = snap
	return nil
}

// Get returns the snapshot stored under key.
func (a *MemoryArchive) Get(key string) (planner.Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.snapshots[key]
	return snap, ok
}

// Len counts stored snapshots.
func (a *MemoryArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.snapshots)
}

var (
	_ planner.Archive = Noop{}
	_ planner.Archive = (*MemoryArchive)(nil)
)
