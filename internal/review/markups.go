package review

import (
	"context"
	"fmt"
	"time"
)

// MarkupStore owns markups per image version and keeps their sequence
// numbers dense: after any sequence of creates and deletes the markups of a
// version are numbered exactly 1..N.
type MarkupStore struct {
	*deps
}

// CreateMarkupInput describes a new markup. Color and Size default from the
// markup type when nil.
type CreateMarkupInput struct {
	VersionID string     `json:"version_id" validate:"notblank"`
	X         float64    `json:"x" validate:"gte=0,lte=100"`
	Y         float64    `json:"y" validate:"gte=0,lte=100"`
	Type      MarkupType `json:"type" validate:"required,oneof=point circle arrow rectangle text freehand"`
	CreatedBy string     `json:"created_by" validate:"notblank"`
	Color     *string    `json:"color,omitempty" validate:"omitnil,notblank"`
	Size      *float64   `json:"size,omitempty" validate:"omitnil,gt=0"`
}

// MarkupPatch lists the fields to change. Nil fields are left as they are.
type MarkupPatch struct {
	X     *float64    `json:"x,omitempty" validate:"omitnil,gte=0,lte=100"`
	Y     *float64    `json:"y,omitempty" validate:"omitnil,gte=0,lte=100"`
	Type  *MarkupType `json:"type,omitempty" validate:"omitnil,oneof=point circle arrow rectangle text freehand"`
	Color *string     `json:"color,omitempty" validate:"omitnil,notblank"`
	Size  *float64    `json:"size,omitempty" validate:"omitnil,gt=0"`

	// SequenceNumber moves the markup to that position, shifting the others.
	// It must lie within 1..N of the markup's version.
	SequenceNumber *int `json:"sequence_number,omitempty" validate:"omitnil,gte=1"`
}

// Create places a new markup at the end of its version's sequence.
func (s *MarkupStore) Create(ctx context.Context, in CreateMarkupInput) (*Markup, error) {
	if err := check(in); err != nil {
		return nil, err
	}

	style := markupDefaults[in.Type]
	if in.Color != nil {
		style.Color = *in.Color
	}
	if in.Size != nil {
		style.Size = *in.Size
	}

	var created *Markup
	err := s.withLock(ctx, versionKey(in.VersionID), func() error {
		return s.db.Update(ctx, func(tx Tx) error {
			existing, err := tx.ListMarkups(ctx, in.VersionID)
			if err != nil {
				return fmt.Errorf("listing markups: %w", err)
			}

			now := s.clock.Now()
			m := &Markup{
				ID:             s.idgen.New(),
				VersionID:      in.VersionID,
				X:              in.X,
				Y:              in.Y,
				Type:           in.Type,
				SequenceNumber: len(existing) + 1,
				Color:          style.Color,
				Size:           style.Size,
				CreatedAt:      now,
				CreatedBy:      in.CreatedBy,
				UpdatedAt:      now,
			}
			if err := tx.InsertMarkup(ctx, m); err != nil {
				return fmt.Errorf("inserting markup: %w", err)
			}
			created = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("markup created", "id", created.ID, "version", created.VersionID, "sequence", created.SequenceNumber)
	return created, nil
}

// Get returns a markup by id, or nil if it does not exist.
func (s *MarkupStore) Get(ctx context.Context, id string) (*Markup, error) {
	var m *Markup
	err := s.db.View(ctx, func(tx Tx) error {
		var err error
		m, err = tx.GetMarkup(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading markup: %w", err)
	}
	return m, nil
}

// ListByVersion returns the markups of a version ordered by sequence number.
func (s *MarkupStore) ListByVersion(ctx context.Context, versionID string) ([]*Markup, error) {
	var markups []*Markup
	err := s.db.View(ctx, func(tx Tx) error {
		var err error
		markups, err = tx.ListMarkups(ctx, versionID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing markups: %w", err)
	}
	return markups, nil
}

// Update merges patch into the markup. It returns nil for an unknown id.
func (s *MarkupStore) Update(ctx context.Context, id string, patch MarkupPatch) (*Markup, error) {
	if err := check(patch); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}

	var updated *Markup
	err = s.withLock(ctx, versionKey(current.VersionID), func() error {
		return s.db.Update(ctx, func(tx Tx) error {
			m, err := tx.GetMarkup(ctx, id)
			if err != nil {
				return fmt.Errorf("loading markup: %w", err)
			}
			if m == nil {
				return nil
			}

			now := s.clock.Now()
			if patch.X != nil {
				m.X = *patch.X
			}
			if patch.Y != nil {
				m.Y = *patch.Y
			}
			if patch.Type != nil {
				m.Type = *patch.Type
			}
			if patch.Color != nil {
				m.Color = *patch.Color
			}
			if patch.Size != nil {
				m.Size = *patch.Size
			}
			m.UpdatedAt = now
			if err := tx.UpdateMarkup(ctx, m); err != nil {
				return fmt.Errorf("updating markup: %w", err)
			}

			if patch.SequenceNumber != nil && *patch.SequenceNumber != m.SequenceNumber {
				if err := s.move(ctx, tx, m, *patch.SequenceNumber, now); err != nil {
					return err
				}
				m.SequenceNumber = *patch.SequenceNumber
			}
			updated = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// move places m at position target within its version and renumbers the rest.
func (s *MarkupStore) move(ctx context.Context, tx Tx, m *Markup, target int, now time.Time) error {
	markups, err := tx.ListMarkups(ctx, m.VersionID)
	if err != nil {
		return fmt.Errorf("listing markups: %w", err)
	}
	if target > len(markups) {
		return invalid("sequence_number must be within 1..%d", len(markups))
	}

	ids := make([]string, 0, len(markups))
	for _, other := range markups {
		if other.ID != m.ID {
			ids = append(ids, other.ID)
		}
	}
	ids = append(ids[:target-1], append([]string{m.ID}, ids[target-1:]...)...)

	if err := tx.ResequenceMarkups(ctx, m.VersionID, ids, now); err != nil {
		return fmt.Errorf("resequencing markups: %w", err)
	}
	s.logger.Debug("markup moved", "id", m.ID, "from", m.SequenceNumber, "to", target)
	return nil
}

// Delete removes a markup together with its feedback and renumbers the
// remaining markups of the version to 1..N-1, keeping their relative order.
// Comments on the markup stay in storage under its subject key.
// It returns false for an unknown id.
func (s *MarkupStore) Delete(ctx context.Context, id string) (bool, error) {
	current, err := s.Get(ctx, id)
	if err != nil || current == nil {
		return false, err
	}

	deleted := false
	err = s.withLock(ctx, versionKey(current.VersionID), func() error {
		return s.db.Update(ctx, func(tx Tx) error {
			m, err := tx.GetMarkup(ctx, id)
			if err != nil {
				return fmt.Errorf("loading markup: %w", err)
			}
			if m == nil {
				return nil
			}

			if err := s.deleteOne(ctx, tx, m); err != nil {
				return err
			}

			remaining, err := tx.ListMarkups(ctx, m.VersionID)
			if err != nil {
				return fmt.Errorf("listing markups: %w", err)
			}
			ids := make([]string, len(remaining))
			for i, r := range remaining {
				ids[i] = r.ID
			}
			if err := tx.ResequenceMarkups(ctx, m.VersionID, ids, s.clock.Now()); err != nil {
				return fmt.Errorf("resequencing markups: %w", err)
			}
			s.logger.Debug("markups renumbered", "version", m.VersionID, "count", len(ids))

			deleted = true
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("markup deleted", "id", id, "version", current.VersionID)
	}
	return deleted, nil
}

// Clear deletes every markup of a version along with their feedback.
// It returns the number of markups removed.
func (s *MarkupStore) Clear(ctx context.Context, versionID string) (int, error) {
	count := 0
	err := s.withLock(ctx, versionKey(versionID), func() error {
		return s.db.Update(ctx, func(tx Tx) error {
			markups, err := tx.ListMarkups(ctx, versionID)
			if err != nil {
				return fmt.Errorf("listing markups: %w", err)
			}
			for _, m := range markups {
				if err := s.deleteOne(ctx, tx, m); err != nil {
					return err
				}
			}
			count = len(markups)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("markups cleared", "version", versionID, "count", count)
	return count, nil
}

// deleteOne removes a markup and the feedback it owns.
func (s *MarkupStore) deleteOne(ctx context.Context, tx Tx, m *Markup) error {
	if m.FeedbackID != "" {
		if err := tx.DeleteFeedback(ctx, m.FeedbackID); err != nil {
			return fmt.Errorf("deleting feedback %s: %w", m.FeedbackID, err)
		}
	}
	if err := tx.DeleteMarkup(ctx, m.ID); err != nil {
		return fmt.Errorf("deleting markup %s: %w", m.ID, err)
	}
	return nil
}
