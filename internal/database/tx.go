package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"draftmark/internal/review"
)

// sqlTx implements review.Tx over one database/sql transaction.
type sqlTx struct {
	tx      *sql.Tx
	dialect string
}

type scanner interface {
	Scan(dest ...any) error
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, rebind(t.dialect, query), args...)
}

func (t *sqlTx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, rebind(t.dialect, query), args...)
}

func (t *sqlTx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, rebind(t.dialect, query), args...)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// expectOne fails when a write did not touch exactly one row.
func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n != 1 {
		return fmt.Errorf("%s: %d rows affected, want 1", what, n)
	}
	return nil
}

// Markup operations

const markupColumns = `id, version_id, x, y, type, sequence_number, color, size,
	created_at, created_by, updated_at, feedback_id, comment_count, has_unresolved_comments`

func scanMarkup(row scanner) (*review.Markup, error) {
	var (
		m          review.Markup
		feedbackID sql.NullString
	)
	err := row.Scan(&m.ID, &m.VersionID, &m.X, &m.Y, &m.Type, &m.SequenceNumber, &m.Color, &m.Size,
		&m.CreatedAt, &m.CreatedBy, &m.UpdatedAt, &feedbackID, &m.CommentCount, &m.HasUnresolvedComments)
	if err != nil {
		return nil, err
	}
	m.FeedbackID = feedbackID.String
	return &m, nil
}

func (t *sqlTx) GetMarkup(ctx context.Context, id string) (*review.Markup, error) {
	m, err := scanMarkup(t.queryRow(ctx, `SELECT `+markupColumns+` FROM markups WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding markup: %w", err)
	}
	return m, nil
}

func (t *sqlTx) ListMarkups(ctx context.Context, versionID string) ([]*review.Markup, error) {
	rows, err := t.query(ctx, `SELECT `+markupColumns+` FROM markups
		WHERE version_id = ? ORDER BY sequence_number`, versionID)
	if err != nil {
		return nil, fmt.Errorf("listing markups: %w", err)
	}
	defer rows.Close()

	var markups []*review.Markup
	for rows.Next() {
		m, err := scanMarkup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning markup: %w", err)
		}
		markups = append(markups, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing markups: %w", err)
	}
	return markups, nil
}

func (t *sqlTx) InsertMarkup(ctx context.Context, m *review.Markup) error {
	_, err := t.exec(ctx, `INSERT INTO markups (`+markupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.VersionID, m.X, m.Y, string(m.Type), m.SequenceNumber, m.Color, m.Size,
		m.CreatedAt, m.CreatedBy, m.UpdatedAt, nullString(m.FeedbackID), m.CommentCount, m.HasUnresolvedComments)
	if err != nil {
		return fmt.Errorf("inserting markup: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateMarkup(ctx context.Context, m *review.Markup) error {
	res, err := t.exec(ctx, `UPDATE markups SET x = ?, y = ?, type = ?, color = ?, size = ?, updated_at = ?
		WHERE id = ?`, m.X, m.Y, string(m.Type), m.Color, m.Size, m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("updating markup: %w", err)
	}
	return expectOne(res, "updating markup")
}

// ResequenceMarkups renumbers in two passes so the
// UNIQUE (version_id, sequence_number) constraint holds after every statement:
// changed rows first move to negative numbers, then to their final ones.
func (t *sqlTx) ResequenceMarkups(ctx context.Context, versionID string, ids []string, at time.Time) error {
	current, err := t.ListMarkups(ctx, versionID)
	if err != nil {
		return err
	}
	if len(current) != len(ids) {
		return fmt.Errorf("resequencing %s: got %d ids for %d markups", versionID, len(ids), len(current))
	}
	seq := make(map[string]int, len(current))
	for _, m := range current {
		seq[m.ID] = m.SequenceNumber
	}

	var changed []int
	for i, id := range ids {
		n, ok := seq[id]
		if !ok {
			return fmt.Errorf("resequencing %s: markup %s not in version", versionID, id)
		}
		if n != i+1 {
			changed = append(changed, i)
		}
	}

	for _, i := range changed {
		if _, err := t.exec(ctx, `UPDATE markups SET sequence_number = ? WHERE id = ?`, -(i + 1), ids[i]); err != nil {
			return fmt.Errorf("parking markup %s: %w", ids[i], err)
		}
	}
	for _, i := range changed {
		_, err := t.exec(ctx, `UPDATE markups SET sequence_number = ?, updated_at = ? WHERE id = ?`, i+1, at, ids[i])
		if err != nil {
			return fmt.Errorf("renumbering markup %s: %w", ids[i], err)
		}
	}
	return nil
}

func (t *sqlTx) SetMarkupFeedback(ctx context.Context, markupID, feedbackID string, at time.Time) error {
	res, err := t.exec(ctx, `UPDATE markups SET feedback_id = ?, updated_at = ? WHERE id = ?`,
		nullString(feedbackID), at, markupID)
	if err != nil {
		return fmt.Errorf("linking markup feedback: %w", err)
	}
	return expectOne(res, "linking markup feedback")
}

func (t *sqlTx) SetMarkupRollup(ctx context.Context, markupID string, r review.Rollup) error {
	res, err := t.exec(ctx, `UPDATE markups SET comment_count = ?, has_unresolved_comments = ? WHERE id = ?`,
		r.CommentCount, r.HasUnresolved, markupID)
	if err != nil {
		return fmt.Errorf("caching markup rollup: %w", err)
	}
	return expectOne(res, "caching markup rollup")
}

// DeleteMarkup relies on ON DELETE CASCADE to drop an owned feedback.
func (t *sqlTx) DeleteMarkup(ctx context.Context, id string) error {
	if _, err := t.exec(ctx, `DELETE FROM markups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting markup: %w", err)
	}
	return nil
}

// Feedback operations

const feedbackColumns = `id, markup_id, version_id, project_id, title, description, category,
	priority, status, created_at, created_by, updated_at, resolved_at`

func (t *sqlTx) GetFeedback(ctx context.Context, id string) (*review.Feedback, error) {
	var (
		f          review.Feedback
		resolvedAt sql.NullTime
	)
	err := t.queryRow(ctx, `SELECT `+feedbackColumns+` FROM feedbacks WHERE id = ?`, id).Scan(
		&f.ID, &f.MarkupID, &f.VersionID, &f.ProjectID, &f.Title, &f.Description, &f.Category,
		&f.Priority, &f.Status, &f.CreatedAt, &f.CreatedBy, &f.UpdatedAt, &resolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding feedback: %w", err)
	}
	f.ResolvedAt = timePtr(resolvedAt)
	return &f, nil
}

func (t *sqlTx) InsertFeedback(ctx context.Context, f *review.Feedback) error {
	_, err := t.exec(ctx, `INSERT INTO feedbacks (`+feedbackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.MarkupID, f.VersionID, f.ProjectID, f.Title, f.Description, string(f.Category),
		string(f.Priority), string(f.Status), f.CreatedAt, f.CreatedBy, f.UpdatedAt, nullTime(f.ResolvedAt))
	if err != nil {
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateFeedback(ctx context.Context, f *review.Feedback) error {
	res, err := t.exec(ctx, `UPDATE feedbacks SET title = ?, description = ?, category = ?, priority = ?,
		status = ?, updated_at = ?, resolved_at = ? WHERE id = ?`,
		f.Title, f.Description, string(f.Category), string(f.Priority), string(f.Status),
		f.UpdatedAt, nullTime(f.ResolvedAt), f.ID)
	if err != nil {
		return fmt.Errorf("updating feedback: %w", err)
	}
	return expectOne(res, "updating feedback")
}

// DeleteFeedback relies on ON DELETE SET NULL to clear the markup link.
func (t *sqlTx) DeleteFeedback(ctx context.Context, id string) error {
	if _, err := t.exec(ctx, `DELETE FROM feedbacks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting feedback: %w", err)
	}
	return nil
}

// Comment operations

func (t *sqlTx) ListComments(ctx context.Context, subject review.Subject) ([]*review.Comment, error) {
	rows, err := t.query(ctx, `SELECT id, subject_type, subject_id, position, author_id, author_name,
		author_role, content, created_at, parent_id, is_resolved, resolved_at, resolved_by
		FROM comments WHERE subject_type = ? AND subject_id = ? ORDER BY position`,
		string(subject.Type), subject.ID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var comments []*review.Comment
	for rows.Next() {
		var (
			c          review.Comment
			parentID   sql.NullString
			resolvedAt sql.NullTime
			resolvedBy sql.NullString
		)
		err := rows.Scan(&c.ID, &c.SubjectType, &c.SubjectID, &c.Position, &c.AuthorID, &c.AuthorName,
			&c.AuthorRole, &c.Content, &c.CreatedAt, &parentID, &c.IsResolved, &resolvedAt, &resolvedBy)
		if err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		c.ParentID = parentID.String
		c.ResolvedAt = timePtr(resolvedAt)
		c.ResolvedBy = resolvedBy.String
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return comments, nil
}

func (t *sqlTx) InsertComment(ctx context.Context, c *review.Comment) error {
	_, err := t.exec(ctx, `INSERT INTO comments (id, subject_type, subject_id, position, author_id,
		author_name, author_role, content, created_at, parent_id, is_resolved, resolved_at, resolved_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.SubjectType), c.SubjectID, c.Position, c.AuthorID, c.AuthorName,
		string(c.AuthorRole), c.Content, c.CreatedAt, nullString(c.ParentID), c.IsResolved,
		nullTime(c.ResolvedAt), nullString(c.ResolvedBy))
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateComment(ctx context.Context, c *review.Comment) error {
	res, err := t.exec(ctx, `UPDATE comments SET is_resolved = ?, resolved_at = ?, resolved_by = ? WHERE id = ?`,
		c.IsResolved, nullTime(c.ResolvedAt), nullString(c.ResolvedBy), c.ID)
	if err != nil {
		return fmt.Errorf("updating comment: %w", err)
	}
	return expectOne(res, "updating comment")
}

// DeleteComments removes the given comments of a subject. Replies of a
// removed comment go with it through ON DELETE CASCADE.
func (t *sqlTx) DeleteComments(ctx context.Context, subject review.Subject, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, string(subject.Type), subject.ID)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := t.exec(ctx, `DELETE FROM comments WHERE subject_type = ? AND subject_id = ? AND id IN (`+
		placeholders(len(ids))+`)`, args...)
	if err != nil {
		return fmt.Errorf("deleting comments: %w", err)
	}
	return nil
}

// Compile-time check that sqlTx implements review.Tx interface
var _ review.Tx = (*sqlTx)(nil)
