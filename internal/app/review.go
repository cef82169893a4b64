package app

import (
	"context"
	"errors"
	"fmt"

	"draftmark/internal/review"
)

// ErrNotFound is returned by App methods addressing a record that does not exist.
var ErrNotFound = errors.New("not found")

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Markups

func (a *App) AddMarkup(ctx context.Context, in review.CreateMarkupInput) (*review.Markup, error) {
	return mutate(ctx, a, in, func() (*review.Markup, error) {
		return a.service.Markups.Create(ctx, in)
	})
}

func (a *App) ListMarkups(ctx context.Context, versionID string) ([]*review.Markup, error) {
	return a.service.Markups.ListByVersion(ctx, versionID)
}

func (a *App) GetMarkup(ctx context.Context, id string) (*review.Markup, error) {
	m, err := a.service.Markups.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, notFound("markup", id)
	}
	return m, nil
}

type markupPatchParams struct {
	ID string `json:"id"`
	review.MarkupPatch
}

// UpdateMarkup applies patch to a markup. A patch carrying only X and Y
// moves the markup on the canvas.
func (a *App) UpdateMarkup(ctx context.Context, id string, patch review.MarkupPatch) (*review.Markup, error) {
	return mutate(ctx, a, markupPatchParams{ID: id, MarkupPatch: patch}, func() (*review.Markup, error) {
		m, err := a.service.Markups.Update(ctx, id, patch)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, notFound("markup", id)
		}
		return m, nil
	})
}

func (a *App) DeleteMarkup(ctx context.Context, id string) error {
	_, err := mutate(ctx, a, map[string]string{"id": id}, func() (struct{}, error) {
		ok, err := a.service.Markups.Delete(ctx, id)
		if err == nil && !ok {
			err = notFound("markup", id)
		}
		return struct{}{}, err
	})
	return err
}

// ClearMarkups removes every markup of a version and returns how many went.
func (a *App) ClearMarkups(ctx context.Context, versionID string) (int, error) {
	return mutate(ctx, a, map[string]string{"version_id": versionID}, func() (int, error) {
		return a.service.Markups.Clear(ctx, versionID)
	})
}

// Feedback

func (a *App) AddFeedback(ctx context.Context, in review.CreateFeedbackInput) (*review.Feedback, error) {
	return mutate(ctx, a, in, func() (*review.Feedback, error) {
		f, err := a.service.Feedback.Create(ctx, in)
		if err == nil && f == nil {
			err = notFound("markup", in.MarkupID)
		}
		return f, err
	})
}

type feedbackPatchParams struct {
	ID string `json:"id"`
	review.FeedbackPatch
}

func (a *App) UpdateFeedback(ctx context.Context, id string, patch review.FeedbackPatch) (*review.Feedback, error) {
	return mutate(ctx, a, feedbackPatchParams{ID: id, FeedbackPatch: patch}, func() (*review.Feedback, error) {
		f, err := a.service.Feedback.Update(ctx, id, patch)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, notFound("feedback", id)
		}
		return f, nil
	})
}

func (a *App) DeleteFeedback(ctx context.Context, id string) error {
	_, err := mutate(ctx, a, map[string]string{"id": id}, func() (struct{}, error) {
		ok, err := a.service.Feedback.Delete(ctx, id)
		if err == nil && !ok {
			err = notFound("feedback", id)
		}
		return struct{}{}, err
	})
	return err
}

func (a *App) ListFeedback(ctx context.Context, versionID string) ([]*review.Feedback, error) {
	return a.service.Feedback.ListByVersion(ctx, versionID)
}

// Comments

type commentParams struct {
	Subject review.Subject `json:"subject"`
	review.AddCommentInput
}

func (a *App) AddComment(ctx context.Context, subject review.Subject, in review.AddCommentInput) (*review.Comment, error) {
	return mutate(ctx, a, commentParams{Subject: subject, AddCommentInput: in}, func() (*review.Comment, error) {
		c, err := a.service.Comments.Add(ctx, subject, in)
		if err == nil && c == nil {
			err = notFound("markup", subject.ID)
		}
		return c, err
	})
}

type commentRefParams struct {
	Subject   review.Subject    `json:"subject"`
	CommentID string            `json:"comment_id"`
	By        *review.Principal `json:"by,omitempty"`
}

// DeleteComment removes a comment and, for a top-level comment, its replies.
func (a *App) DeleteComment(ctx context.Context, subject review.Subject, commentID string) error {
	_, err := mutate(ctx, a, commentRefParams{Subject: subject, CommentID: commentID}, func() (struct{}, error) {
		ok, err := a.service.Comments.Delete(ctx, subject, commentID)
		if err == nil && !ok {
			err = notFound("comment", commentID)
		}
		return struct{}{}, err
	})
	return err
}

// ToggleComment flips a comment's resolution on behalf of designer and
// returns the comment as stored afterwards.
func (a *App) ToggleComment(ctx context.Context, subject review.Subject, commentID string, designer review.Principal) (*review.Comment, error) {
	params := commentRefParams{Subject: subject, CommentID: commentID, By: &designer}
	return mutate(ctx, a, params, func() (*review.Comment, error) {
		threads, err := a.service.Comments.AsDesigner(designer)
		if err != nil {
			return nil, err
		}
		ok, err := threads.ToggleResolved(ctx, subject, commentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, notFound("comment", commentID)
		}
		comments, err := a.service.Comments.List(ctx, subject)
		if err != nil {
			return nil, err
		}
		for _, c := range comments {
			if c.ID == commentID {
				return c, nil
			}
		}
		return nil, notFound("comment", commentID)
	})
}

// ListThreads returns the comments of subject grouped into threads.
func (a *App) ListThreads(ctx context.Context, subject review.Subject) ([]*review.Thread, error) {
	comments, err := a.service.Comments.List(ctx, subject)
	if err != nil {
		return nil, err
	}
	return review.Organize(comments), nil
}

// Stats

// StatsReport combines the markup and comment statistics of a version.
// Mismatches is only populated when verification was requested.
type StatsReport struct {
	VersionID  string                  `json:"version_id"`
	Markups    review.MarkupStats      `json:"markups"`
	Comments   review.CommentStats     `json:"comments"`
	Verified   bool                    `json:"verified"`
	Mismatches []review.RollupMismatch `json:"mismatches,omitempty"`
}

func (a *App) Stats(ctx context.Context, versionID string, verify bool) (*StatsReport, error) {
	markups, err := a.service.Stats.MarkupStats(ctx, versionID)
	if err != nil {
		return nil, err
	}
	comments, err := a.service.Stats.CommentStats(ctx, versionID)
	if err != nil {
		return nil, err
	}
	report := &StatsReport{VersionID: versionID, Markups: markups, Comments: comments, Verified: verify}
	if verify {
		report.Mismatches, err = a.service.Stats.VerifyRollups(ctx, versionID)
		if err != nil {
			return nil, err
		}
	}
	return report, nil
}

// Archive

type closeRoundParams struct {
	VersionID string                   `json:"version_id"`
	Revision  int                      `json:"revision_number"`
	General   []review.GeneralFeedback `json:"general_feedbacks,omitempty"`
}

// CloseRound archives the working set of a version as revision.
func (a *App) CloseRound(ctx context.Context, versionID string, revision int, general []review.GeneralFeedback) (*review.Snapshot, error) {
	params := closeRoundParams{VersionID: versionID, Revision: revision, General: general}
	return mutate(ctx, a, params, func() (*review.Snapshot, error) {
		return a.service.CloseRound(ctx, versionID, revision, general)
	})
}

func (a *App) GetSnapshot(ctx context.Context, versionID string, revision int) (*review.Snapshot, error) {
	snap, err := a.service.Archive.Get(ctx, versionID, revision)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, notFound("archive", fmt.Sprintf("%s revision %d", versionID, revision))
	}
	return snap, nil
}

func (a *App) ListSnapshots(ctx context.Context, versionID string) ([]*review.Snapshot, error) {
	return a.service.Archive.ListAll(ctx, versionID)
}

// History returns the most recent recorded operations, newest first.
func (a *App) History(ctx context.Context, limit int) ([]*review.Operation, error) {
	if limit <= 0 {
		limit = 50
	}
	ops, err := a.db.ListOperations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return ops, nil
}
