package review

import (
	"context"
	"fmt"
	"sort"
)

// CommentThreads owns the flat discussion threads attached to markups and
// checklist items. Threads have depth at most one: a reply always targets a
// top-level comment of the same subject.
//
// Every mutation on a markup subject rewrites the markup's cached rollup in
// the same transaction.
type CommentThreads struct {
	*deps
}

// AddCommentInput describes a new comment. ParentID is empty for a
// top-level comment.
type AddCommentInput struct {
	AuthorID   string     `json:"author_id" validate:"notblank"`
	AuthorName string     `json:"author_name" validate:"notblank"`
	AuthorRole AuthorRole `json:"author_role" validate:"required,oneof=client designer"`
	Content    string     `json:"content" validate:"notblank"`
	ParentID   string     `json:"parent_id,omitempty"`
}

// Principal identifies the caller acting on a thread.
type Principal struct {
	ID   string     `json:"id" validate:"notblank"`
	Name string     `json:"name"`
	Role AuthorRole `json:"role" validate:"required,oneof=client designer"`
}

// DesignerThreads is the designer-scoped view of CommentThreads. It is the
// only handle that can change a comment's resolution state.
type DesignerThreads struct {
	threads  *CommentThreads
	designer Principal
}

// AsDesigner returns a resolve-capable handle for p, or ErrNotDesigner.
func (s *CommentThreads) AsDesigner(p Principal) (*DesignerThreads, error) {
	if err := check(p); err != nil {
		return nil, err
	}
	if p.Role != RoleDesigner {
		return nil, fmt.Errorf("%w: %s has role %s", ErrNotDesigner, p.ID, p.Role)
	}
	return &DesignerThreads{threads: s, designer: p}, nil
}

// Add appends a comment to the subject's thread. For a markup subject it
// returns nil when the markup does not exist.
func (s *CommentThreads) Add(ctx context.Context, subject Subject, in AddCommentInput) (*Comment, error) {
	if err := check(subject); err != nil {
		return nil, err
	}
	if err := check(in); err != nil {
		return nil, err
	}

	var added *Comment
	err := s.withLock(ctx, subjectKey(subject), func() error {
		return s.db.Update(ctx, func(tx Tx) error {
			if subject.Type == SubjectMarkup {
				m, err := tx.GetMarkup(ctx, subject.ID)
				if err != nil {
					return fmt.Errorf("loading markup: %w", err)
				}
				if m == nil {
					return nil
				}
			}

			comments, err := tx.ListComments(ctx, subject)
			if err != nil {
				return fmt.Errorf("listing comments: %w", err)
			}
			if in.ParentID != "" {
				parent := find(comments, in.ParentID)
				if parent == nil {
					return fmt.Errorf("%w: %s not found on %s", ErrInvalidParent, in.ParentID, subject)
				}
				if parent.ParentID != "" {
					return fmt.Errorf("%w: %s is a reply", ErrInvalidParent, in.ParentID)
				}
			}

			position := 1
			for _, c := range comments {
				if c.Position >= position {
					position = c.Position + 1
				}
			}

			c := &Comment{
				ID:          s.idgen.New(),
				SubjectType: subject.Type,
				SubjectID:   subject.ID,
				Position:    position,
				AuthorID:    in.AuthorID,
				AuthorName:  in.AuthorName,
				AuthorRole:  in.AuthorRole,
				Content:     in.Content,
				CreatedAt:   s.clock.Now(),
				ParentID:    in.ParentID,
			}
			if err := tx.InsertComment(ctx, c); err != nil {
				return fmt.Errorf("inserting comment: %w", err)
			}
			added = c
			return s.refreshRollup(ctx, tx, subject, append(comments, c))
		})
	})
	if err != nil {
		return nil, err
	}

	if added != nil {
		s.logger.Info("comment added", "id", added.ID, "subject", subject.String(), "reply", added.ParentID != "")
	}
	return added, nil
}

// Delete removes a comment together with its replies.
// It returns false when the comment is not part of the subject's thread.
func (s *CommentThreads) Delete(ctx context.Context, subject Subject, commentID string) (bool, error) {
	if err := check(subject); err != nil {
		return false, err
	}

	removed := 0
	err := s.withLock(ctx, subjectKey(subject), func() error {
		return s.db.Update(ctx, func(tx Tx) error {
			comments, err := tx.ListComments(ctx, subject)
			if err != nil {
				return fmt.Errorf("listing comments: %w", err)
			}
			if find(comments, commentID) == nil {
				return nil
			}

			ids := []string{commentID}
			kept := make([]*Comment, 0, len(comments))
			for _, c := range comments {
				switch {
				case c.ID == commentID:
				case c.ParentID == commentID:
					ids = append(ids, c.ID)
				default:
					kept = append(kept, c)
				}
			}
			if err := tx.DeleteComments(ctx, subject, ids); err != nil {
				return fmt.Errorf("deleting comments: %w", err)
			}
			removed = len(ids)
			return s.refreshRollup(ctx, tx, subject, kept)
		})
	})
	if err != nil {
		return false, err
	}
	if removed > 0 {
		s.logger.Info("comment deleted", "id", commentID, "subject", subject.String(), "removed", removed)
	}
	return removed > 0, nil
}

// List returns the comments of a subject in insertion order.
func (s *CommentThreads) List(ctx context.Context, subject Subject) ([]*Comment, error) {
	var comments []*Comment
	err := s.db.View(ctx, func(tx Tx) error {
		var err error
		comments, err = tx.ListComments(ctx, subject)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return comments, nil
}

// Rollup computes the rollup of a subject from its comments. Checklist items
// have no record to cache it on, so this accessor is where it lives for them.
func (s *CommentThreads) Rollup(ctx context.Context, subject Subject) (Rollup, error) {
	comments, err := s.List(ctx, subject)
	if err != nil {
		return Rollup{}, err
	}
	return computeRollup(comments), nil
}

// ToggleResolved flips the resolution state of a comment. Resolving records
// the designer and time; unresolving clears both.
// It returns false when the comment is not part of the subject's thread.
func (d *DesignerThreads) ToggleResolved(ctx context.Context, subject Subject, commentID string) (bool, error) {
	s := d.threads
	if err := check(subject); err != nil {
		return false, err
	}

	var toggled *Comment
	err := s.withLock(ctx, subjectKey(subject), func() error {
		return s.db.Update(ctx, func(tx Tx) error {
			comments, err := tx.ListComments(ctx, subject)
			if err != nil {
				return fmt.Errorf("listing comments: %w", err)
			}
			c := find(comments, commentID)
			if c == nil {
				return nil
			}

			c.IsResolved = !c.IsResolved
			if c.IsResolved {
				at := s.clock.Now()
				c.ResolvedAt = &at
				c.ResolvedBy = d.designer.ID
			} else {
				c.ResolvedAt = nil
				c.ResolvedBy = ""
			}
			if err := tx.UpdateComment(ctx, c); err != nil {
				return fmt.Errorf("updating comment: %w", err)
			}
			toggled = c
			return s.refreshRollup(ctx, tx, subject, comments)
		})
	})
	if err != nil {
		return false, err
	}
	if toggled == nil {
		return false, nil
	}

	s.logger.Info("comment resolution toggled", "id", commentID, "subject", subject.String(), "resolved", toggled.IsResolved, "by", d.designer.ID)
	return true, nil
}

// Designer returns the principal the handle was issued to.
func (d *DesignerThreads) Designer() Principal {
	return d.designer
}

// refreshRollup persists the rollup of comments onto the subject's markup.
// Checklist subjects and markups that no longer exist are left alone.
func (s *CommentThreads) refreshRollup(ctx context.Context, tx Tx, subject Subject, comments []*Comment) error {
	if subject.Type != SubjectMarkup {
		return nil
	}
	m, err := tx.GetMarkup(ctx, subject.ID)
	if err != nil {
		return fmt.Errorf("loading markup: %w", err)
	}
	if m == nil {
		return nil
	}
	if err := tx.SetMarkupRollup(ctx, m.ID, computeRollup(comments)); err != nil {
		return fmt.Errorf("caching rollup: %w", err)
	}
	return nil
}

// computeRollup counts comments at every depth.
func computeRollup(comments []*Comment) Rollup {
	r := Rollup{CommentCount: len(comments)}
	for _, c := range comments {
		if !c.IsResolved {
			r.HasUnresolved = true
			break
		}
	}
	return r
}

func find(comments []*Comment, id string) *Comment {
	for _, c := range comments {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Organize groups top-level comments with their replies for display.
// Top-level order follows the input; replies are sorted by creation time.
// Replies whose parent is absent from the list are dropped.
func Organize(comments []*Comment) []*Thread {
	threads := make([]*Thread, 0, len(comments))
	index := make(map[string]*Thread)
	for _, c := range comments {
		if c.ParentID != "" {
			continue
		}
		t := &Thread{Comment: c, Replies: []*Comment{}}
		threads = append(threads, t)
		index[c.ID] = t
	}
	for _, c := range comments {
		if c.ParentID == "" {
			continue
		}
		if t, ok := index[c.ParentID]; ok {
			t.Replies = append(t.Replies, c)
		}
	}
	for _, t := range threads {
		sort.SliceStable(t.Replies, func(i, j int) bool {
			return t.Replies[i].CreatedAt.Before(t.Replies[j].CreatedAt)
		})
	}
	return threads
}
