package review

import (
	"context"
	"fmt"
)

// StatsAggregator derives version-level counts from the other stores.
// Nothing it returns is cached.
type StatsAggregator struct {
	*deps
}

type PriorityBreakdown struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

type MarkupStats struct {
	TotalMarkups   int               `json:"total_markups"`
	TotalFeedbacks int               `json:"total_feedbacks"`
	Pending        int               `json:"pending"`
	InProgress     int               `json:"in_progress"`
	Resolved       int               `json:"resolved"`
	Rejected       int               `json:"rejected"`
	Priority       PriorityBreakdown `json:"priority"`
}

type CommentStats struct {
	// TotalComments sums the cached comment_count of every markup.
	TotalComments int `json:"total_comments"`
	// UnresolvedComments is recounted from the comment lists.
	UnresolvedComments int `json:"unresolved_comments"`
	// MarkupsWithUnresolved counts markups whose cached flag is set.
	MarkupsWithUnresolved int `json:"markups_with_unresolved"`
}

// RollupMismatch reports a markup whose cached rollup disagrees with its
// comments.
type RollupMismatch struct {
	MarkupID       string `json:"markup_id"`
	SequenceNumber int    `json:"sequence_number"`
	Cached         Rollup `json:"cached"`
	Actual         Rollup `json:"actual"`
}

func (s *StatsAggregator) MarkupStats(ctx context.Context, versionID string) (MarkupStats, error) {
	var stats MarkupStats
	err := s.db.View(ctx, func(tx Tx) error {
		markups, feedbacks, err := loadVersion(ctx, tx, versionID)
		if err != nil {
			return err
		}

		stats.TotalMarkups = len(markups)
		stats.TotalFeedbacks = len(feedbacks)
		for _, f := range feedbacks {
			switch f.Status {
			case StatusPending:
				stats.Pending++
			case StatusInProgress:
				stats.InProgress++
			case StatusResolved:
				stats.Resolved++
			case StatusRejected:
				stats.Rejected++
			}
			switch f.Priority {
			case PriorityLow:
				stats.Priority.Low++
			case PriorityMedium:
				stats.Priority.Medium++
			case PriorityHigh:
				stats.Priority.High++
			}
		}
		return nil
	})
	if err != nil {
		return MarkupStats{}, err
	}
	return stats, nil
}

func (s *StatsAggregator) CommentStats(ctx context.Context, versionID string) (CommentStats, error) {
	var stats CommentStats
	err := s.db.View(ctx, func(tx Tx) error {
		markups, err := tx.ListMarkups(ctx, versionID)
		if err != nil {
			return fmt.Errorf("listing markups: %w", err)
		}
		for _, m := range markups {
			stats.TotalComments += m.CommentCount
			if m.HasUnresolvedComments {
				stats.MarkupsWithUnresolved++
			}

			comments, err := tx.ListComments(ctx, MarkupSubject(m.ID))
			if err != nil {
				return fmt.Errorf("listing comments of %s: %w", m.ID, err)
			}
			for _, c := range comments {
				if !c.IsResolved {
					stats.UnresolvedComments++
				}
			}
		}
		return nil
	})
	if err != nil {
		return CommentStats{}, err
	}
	return stats, nil
}

// VerifyRollups recounts every markup's thread and returns the markups whose
// cached rollup is stale. An empty result means cache and comments agree.
func (s *StatsAggregator) VerifyRollups(ctx context.Context, versionID string) ([]RollupMismatch, error) {
	var mismatches []RollupMismatch
	err := s.db.View(ctx, func(tx Tx) error {
		markups, err := tx.ListMarkups(ctx, versionID)
		if err != nil {
			return fmt.Errorf("listing markups: %w", err)
		}
		for _, m := range markups {
			comments, err := tx.ListComments(ctx, MarkupSubject(m.ID))
			if err != nil {
				return fmt.Errorf("listing comments of %s: %w", m.ID, err)
			}
			actual := computeRollup(comments)
			if actual != m.Rollup() {
				mismatches = append(mismatches, RollupMismatch{
					MarkupID:       m.ID,
					SequenceNumber: m.SequenceNumber,
					Cached:         m.Rollup(),
					Actual:         actual,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(mismatches) > 0 {
		s.logger.Warn("stale comment rollups", "version", versionID, "count", len(mismatches))
	}
	return mismatches, nil
}
