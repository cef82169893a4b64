package archive

import (
	"context"
	"sync"

	"draftmark/internal/review"
)

// MemoryArchive keeps snapshots in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryArchive struct {
	mu        sync.RWMutex
	snapshots map[string]map[int]*review.Snapshot // version -> revision -> snapshot
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{snapshots: make(map[string]map[int]*review.Snapshot)}
}

func (a *MemoryArchive) Put(_ context.Context, s *review.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	revs, ok := a.snapshots[s.VersionID]
	if !ok {
		revs = make(map[int]*review.Snapshot)
		a.snapshots[s.VersionID] = revs
	}
	revs[s.RevisionNumber] = review.CloneSnapshot(s)
	return nil
}

func (a *MemoryArchive) Get(_ context.Context, versionID string, revision int) (*review.Snapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return review.CloneSnapshot(a.snapshots[versionID][revision]), nil
}

func (a *MemoryArchive) List(_ context.Context, versionID string) ([]*review.Snapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []*review.Snapshot
	for _, s := range a.snapshots[versionID] {
		out = append(out, review.CloneSnapshot(s))
	}
	return out, nil
}

// Compile-time check that MemoryArchive implements review.ArchiveBackend
var _ review.ArchiveBackend = (*MemoryArchive)(nil)
