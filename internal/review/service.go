package review

import (
	"context"
	"fmt"
	"sort"
)

// deps are shared by every store of a Service.
type deps struct {
	db     Database
	locker Locker
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// Options tune store behavior.
type Options struct {
	// EnforceTransitions rejects feedback status changes outside
	// pending -> in_progress -> {resolved, rejected}.
	EnforceTransitions bool
}

// Service bundles the annotation engine's stores over one set of dependencies.
type Service struct {
	Markups  *MarkupStore
	Feedback *FeedbackStore
	Comments *CommentThreads
	Stats    *StatsAggregator
	Archive  *ArchiveStore

	d *deps
}

// NewService wires all stores to the provided dependencies.
func NewService(db Database, locker Locker, archive ArchiveBackend, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Service {
	d := &deps{
		db:     db,
		locker: locker,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
	return &Service{
		Markups:  &MarkupStore{d},
		Feedback: &FeedbackStore{deps: d, enforceTransitions: opts.EnforceTransitions},
		Comments: &CommentThreads{d},
		Stats:    &StatsAggregator{d},
		Archive:  &ArchiveStore{deps: d, backend: archive},
		d:        d,
	}
}

// CloseRound captures the current markups and feedbacks of a version together
// with the collaborator's general feedback as the snapshot for revision.
// The working set is read under the version lock so the copy is consistent.
func (s *Service) CloseRound(ctx context.Context, versionID string, revision int, general []GeneralFeedback) (*Snapshot, error) {
	var data SnapshotData
	err := s.d.withLock(ctx, versionKey(versionID), func() error {
		return s.d.db.View(ctx, func(tx Tx) error {
			markups, feedbacks, err := loadVersion(ctx, tx, versionID)
			if err != nil {
				return err
			}
			data.Markups = derefAll(markups)
			data.Feedbacks = derefAll(feedbacks)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	data.GeneralFeedbacks = general

	if err := s.Archive.Snapshot(ctx, versionID, revision, data); err != nil {
		return nil, err
	}
	return s.Archive.Get(ctx, versionID, revision)
}

// loadVersion returns the markups of a version in sequence order and their
// feedbacks ordered by creation time.
func loadVersion(ctx context.Context, tx Tx, versionID string) ([]*Markup, []*Feedback, error) {
	markups, err := tx.ListMarkups(ctx, versionID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing markups: %w", err)
	}

	feedbacks := make([]*Feedback, 0, len(markups))
	for _, m := range markups {
		if m.FeedbackID == "" {
			continue
		}
		f, err := tx.GetFeedback(ctx, m.FeedbackID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading feedback %s: %w", m.FeedbackID, err)
		}
		if f != nil {
			feedbacks = append(feedbacks, f)
		}
	}
	sort.SliceStable(feedbacks, func(i, j int) bool {
		return feedbacks[i].CreatedAt.Before(feedbacks[j].CreatedAt)
	})
	return markups, feedbacks, nil
}

func derefAll[T any](items []*T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = *item
	}
	return out
}
