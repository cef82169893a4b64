package review

import (
	"context"
	"fmt"
	"sort"
)

// ArchiveBackend persists snapshots keyed by (version, revision).
// Put overwrites any snapshot with the same key.
type ArchiveBackend interface {
	Put(ctx context.Context, s *Snapshot) error

	// Get returns (nil, nil) when no snapshot exists for the key.
	Get(ctx context.Context, versionID string, revision int) (*Snapshot, error)

	// List returns every snapshot of a version in any order.
	List(ctx context.Context, versionID string) ([]*Snapshot, error)
}

// ArchiveStore captures a version's working set at revision boundaries.
// It never triggers itself; the workflow closing a round calls Snapshot.
type ArchiveStore struct {
	*deps
	backend ArchiveBackend
}

// Snapshot stores a copy of data as the archive of (versionID, revision),
// replacing any earlier snapshot for that key.
func (s *ArchiveStore) Snapshot(ctx context.Context, versionID string, revision int, data SnapshotData) error {
	if versionID == "" {
		return invalid("version_id is required")
	}
	if revision < 1 {
		return invalid("revision_number must be >= 1")
	}

	snap := &Snapshot{
		VersionID:      versionID,
		RevisionNumber: revision,
		ArchivedAt:     s.clock.Now(),
		SnapshotData:   copyData(data),
	}
	if err := s.backend.Put(ctx, snap); err != nil {
		return fmt.Errorf("archiving %s revision %d: %w", versionID, revision, err)
	}

	s.logger.Info("round archived", "version", versionID, "revision", revision,
		"markups", len(snap.Markups), "feedbacks", len(snap.Feedbacks))
	return nil
}

// Get returns the snapshot of (versionID, revision), or nil if none exists.
func (s *ArchiveStore) Get(ctx context.Context, versionID string, revision int) (*Snapshot, error) {
	snap, err := s.backend.Get(ctx, versionID, revision)
	if err != nil {
		return nil, fmt.Errorf("loading archive %s revision %d: %w", versionID, revision, err)
	}
	return snap, nil
}

// ListAll returns every snapshot of a version ordered by revision number.
func (s *ArchiveStore) ListAll(ctx context.Context, versionID string) ([]*Snapshot, error) {
	snaps, err := s.backend.List(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("listing archives of %s: %w", versionID, err)
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].RevisionNumber < snaps[j].RevisionNumber
	})
	return snaps, nil
}

// copyData detaches a snapshot from the caller's slices and pointers.
func copyData(data SnapshotData) SnapshotData {
	out := SnapshotData{
		Markups:          append([]Markup{}, data.Markups...),
		Feedbacks:        make([]Feedback, len(data.Feedbacks)),
		GeneralFeedbacks: append([]GeneralFeedback{}, data.GeneralFeedbacks...),
	}
	for i, f := range data.Feedbacks {
		if f.ResolvedAt != nil {
			at := *f.ResolvedAt
			f.ResolvedAt = &at
		}
		out.Feedbacks[i] = f
	}
	return out
}

// CloneSnapshot returns a deep copy of s. Backends that keep snapshots in
// memory use it so stored records stay immutable.
func CloneSnapshot(s *Snapshot) *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.SnapshotData = copyData(s.SnapshotData)
	return &c
}
