package review

import (
	"context"
	"fmt"
)

// FeedbackStore owns the structured review records. Each feedback belongs to
// exactly one markup and the markup points back at it; both sides of the
// link are written in the same transaction.
type FeedbackStore struct {
	*deps
	enforceTransitions bool
}

// CreateFeedbackInput describes a feedback to attach to a markup.
type CreateFeedbackInput struct {
	MarkupID    string           `json:"markup_id" validate:"notblank"`
	VersionID   string           `json:"version_id" validate:"notblank"`
	ProjectID   string           `json:"project_id" validate:"notblank"`
	Title       string           `json:"title" validate:"notblank"`
	Description string           `json:"description" validate:"notblank"`
	Category    FeedbackCategory `json:"category" validate:"required,oneof=color typography layout content size positioning style general"`
	Priority    Priority         `json:"priority" validate:"required,oneof=low medium high"`
	CreatedBy   string           `json:"created_by" validate:"notblank"`
}

// FeedbackPatch lists the fields to change. Nil fields are left as they are.
type FeedbackPatch struct {
	Title       *string           `json:"title,omitempty" validate:"omitnil,notblank"`
	Description *string           `json:"description,omitempty" validate:"omitnil,notblank"`
	Category    *FeedbackCategory `json:"category,omitempty" validate:"omitnil,oneof=color typography layout content size positioning style general"`
	Priority    *Priority         `json:"priority,omitempty" validate:"omitnil,oneof=low medium high"`
	Status      *FeedbackStatus   `json:"status,omitempty" validate:"omitnil,oneof=pending in_progress resolved rejected"`
}

// transitions lists the status changes accepted in strict mode.
var transitions = map[FeedbackStatus][]FeedbackStatus{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusResolved, StatusRejected},
}

func allowedTransition(from, to FeedbackStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Create inserts a pending feedback and links it to its markup.
// It returns nil when the markup does not exist.
func (s *FeedbackStore) Create(ctx context.Context, in CreateFeedbackInput) (*Feedback, error) {
	if err := check(in); err != nil {
		return nil, err
	}

	var created *Feedback
	err := s.withLock(ctx, versionKey(in.VersionID), func() error {
		return s.db.Update(ctx, func(tx Tx) error {
			m, err := tx.GetMarkup(ctx, in.MarkupID)
			if err != nil {
				return fmt.Errorf("loading markup: %w", err)
			}
			if m == nil {
				return nil
			}
			if m.VersionID != in.VersionID {
				return invalid("markup %s belongs to version %s, not %s", m.ID, m.VersionID, in.VersionID)
			}
			if m.FeedbackID != "" {
				return fmt.Errorf("%w: markup %s is linked to %s", ErrFeedbackExists, m.ID, m.FeedbackID)
			}

			now := s.clock.Now()
			f := &Feedback{
				ID:          s.idgen.New(),
				MarkupID:    m.ID,
				VersionID:   in.VersionID,
				ProjectID:   in.ProjectID,
				Title:       in.Title,
				Description: in.Description,
				Category:    in.Category,
				Priority:    in.Priority,
				Status:      StatusPending,
				CreatedAt:   now,
				CreatedBy:   in.CreatedBy,
				UpdatedAt:   now,
			}
			if err := tx.InsertFeedback(ctx, f); err != nil {
				return fmt.Errorf("inserting feedback: %w", err)
			}
			if err := tx.SetMarkupFeedback(ctx, m.ID, f.ID, now); err != nil {
				return fmt.Errorf("linking markup: %w", err)
			}
			created = f
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if created != nil {
		s.logger.Info("feedback linked", "id", created.ID, "markup", created.MarkupID, "priority", created.Priority)
	}
	return created, nil
}

// Get returns a feedback by id, or nil if it does not exist.
func (s *FeedbackStore) Get(ctx context.Context, id string) (*Feedback, error) {
	var f *Feedback
	err := s.db.View(ctx, func(tx Tx) error {
		var err error
		f, err = tx.GetFeedback(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading feedback: %w", err)
	}
	return f, nil
}

// Update merges patch into the feedback. Moving to resolved stamps
// resolved_at once; moving away from resolved keeps the stamp.
// It returns nil for an unknown id.
func (s *FeedbackStore) Update(ctx context.Context, id string, patch FeedbackPatch) (*Feedback, error) {
	if err := check(patch); err != nil {
		return nil, err
	}

	var updated *Feedback
	err := s.db.Update(ctx, func(tx Tx) error {
		f, err := tx.GetFeedback(ctx, id)
		if err != nil {
			return fmt.Errorf("loading feedback: %w", err)
		}
		if f == nil {
			return nil
		}

		now := s.clock.Now()
		if patch.Status != nil && *patch.Status != f.Status {
			if s.enforceTransitions && !allowedTransition(f.Status, *patch.Status) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.Status, *patch.Status)
			}
			s.logger.Debug("feedback status changed", "id", f.ID, "from", f.Status, "to", *patch.Status)
			f.Status = *patch.Status
			if f.Status == StatusResolved && f.ResolvedAt == nil {
				at := now
				f.ResolvedAt = &at
			}
		}
		if patch.Title != nil {
			f.Title = *patch.Title
		}
		if patch.Description != nil {
			f.Description = *patch.Description
		}
		if patch.Category != nil {
			f.Category = *patch.Category
		}
		if patch.Priority != nil {
			f.Priority = *patch.Priority
		}
		f.UpdatedAt = now

		if err := tx.UpdateFeedback(ctx, f); err != nil {
			return fmt.Errorf("updating feedback: %w", err)
		}
		updated = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a feedback and clears its markup's link. The markup stays.
// It returns false for an unknown id.
func (s *FeedbackStore) Delete(ctx context.Context, id string) (bool, error) {
	current, err := s.Get(ctx, id)
	if err != nil || current == nil {
		return false, err
	}

	deleted := false
	err = s.withLock(ctx, versionKey(current.VersionID), func() error {
		return s.db.Update(ctx, func(tx Tx) error {
			f, err := tx.GetFeedback(ctx, id)
			if err != nil {
				return fmt.Errorf("loading feedback: %w", err)
			}
			if f == nil {
				return nil
			}
			if err := tx.SetMarkupFeedback(ctx, f.MarkupID, "", s.clock.Now()); err != nil {
				return fmt.Errorf("unlinking markup: %w", err)
			}
			if err := tx.DeleteFeedback(ctx, f.ID); err != nil {
				return fmt.Errorf("deleting feedback: %w", err)
			}
			deleted = true
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("feedback deleted", "id", id, "markup", current.MarkupID)
	}
	return deleted, nil
}

// ListByVersion returns the feedbacks linked from a version's markups,
// ordered by creation time.
func (s *FeedbackStore) ListByVersion(ctx context.Context, versionID string) ([]*Feedback, error) {
	var feedbacks []*Feedback
	err := s.db.View(ctx, func(tx Tx) error {
		var err error
		_, feedbacks, err = loadVersion(ctx, tx, versionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return feedbacks, nil
}
