package review

import (
	"context"
	"time"
)

// Database is the transactional storage contract behind every store.
// Each store operation runs inside exactly one Update or View call, so the
// records it touches are committed together or not at all.
type Database interface {
	// Update runs fn inside a read-write transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn inside a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Operation history

	// CreateOperation records the start of a mutating command.
	CreateOperation(ctx context.Context, operation, parameters string, startedAt time.Time) (*Operation, error)

	// FinishOperation stamps the end of a command with its final status.
	FinishOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(ctx context.Context, limit int) ([]*Operation, error)

	// MigrateUp brings the schema to the latest version.
	MigrateUp() error

	// CheckMigrations verifies the schema is up to date.
	CheckMigrations() error

	// Close releases the underlying connection.
	Close() error
}

// Tx exposes record-level operations inside a transaction.
// Getters return (nil, nil) when the record does not exist.
//
// Markup writes are column scoped: UpdateMarkup never touches the sequence
// number, the feedback link or the cached rollup, so a concurrent renumber or
// link write cannot be lost by an unrelated update.
type Tx interface {
	// Markup operations

	GetMarkup(ctx context.Context, id string) (*Markup, error)

	// ListMarkups returns the markups of a version ordered by sequence number.
	ListMarkups(ctx context.Context, versionID string) ([]*Markup, error)

	InsertMarkup(ctx context.Context, m *Markup) error

	// UpdateMarkup persists position, type, color, size and updated_at.
	UpdateMarkup(ctx context.Context, m *Markup) error

	// ResequenceMarkups assigns sequence numbers 1..len(ids) in the given order.
	// Only records whose number changes are written.
	ResequenceMarkups(ctx context.Context, versionID string, ids []string, at time.Time) error

	// SetMarkupFeedback writes the markup side of the feedback link. An empty
	// feedbackID clears it.
	SetMarkupFeedback(ctx context.Context, markupID, feedbackID string, at time.Time) error

	// SetMarkupRollup writes the cached comment rollup.
	SetMarkupRollup(ctx context.Context, markupID string, r Rollup) error

	// DeleteMarkup removes a markup. A feedback still owned by it is removed too.
	DeleteMarkup(ctx context.Context, id string) error

	// Feedback operations

	GetFeedback(ctx context.Context, id string) (*Feedback, error)
	InsertFeedback(ctx context.Context, f *Feedback) error
	UpdateFeedback(ctx context.Context, f *Feedback) error

	// DeleteFeedback removes a feedback and clears any markup link to it.
	DeleteFeedback(ctx context.Context, id string) error

	// Comment operations

	// ListComments returns the comments of a subject in insertion order.
	ListComments(ctx context.Context, subject Subject) ([]*Comment, error)
	InsertComment(ctx context.Context, c *Comment) error

	// UpdateComment persists the resolution fields of a comment.
	UpdateComment(ctx context.Context, c *Comment) error

	DeleteComments(ctx context.Context, subject Subject, ids []string) error
}
