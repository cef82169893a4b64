package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"draftmark/internal/review"
)

var errReadOnly = errors.New("write in read-only transaction")

// memState holds records by value so a clone is a shallow copy of maps and
// slices.
type memState struct {
	markups   map[string]review.Markup
	feedbacks map[string]review.Feedback
	comments  map[review.Subject][]review.Comment
}

func newMemState() *memState {
	return &memState{
		markups:   make(map[string]review.Markup),
		feedbacks: make(map[string]review.Feedback),
		comments:  make(map[review.Subject][]review.Comment),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		markups:   make(map[string]review.Markup, len(s.markups)),
		feedbacks: make(map[string]review.Feedback, len(s.feedbacks)),
		comments:  make(map[review.Subject][]review.Comment, len(s.comments)),
	}
	for k, v := range s.markups {
		c.markups[k] = v
	}
	for k, v := range s.feedbacks {
		c.feedbacks[k] = v
	}
	for k, v := range s.comments {
		c.comments[k] = slices.Clone(v)
	}
	return c
}

// MemoryDatabase is an in-memory review.Database. Update applies fn to a
// copy of the state and swaps it in only when fn succeeds, so a failed
// transaction leaves nothing behind. It enforces the same link and cascade
// rules as the SQL schema.
type MemoryDatabase struct {
	mu    sync.RWMutex
	state *memState

	ops    []review.Operation
	nextOp int64
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{state: newMemState(), nextOp: 1}
}

func (d *MemoryDatabase) Update(ctx context.Context, fn func(tx review.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	work := d.state.clone()
	if err := fn(&memTx{state: work}); err != nil {
		return err
	}
	d.state = work
	return nil
}

func (d *MemoryDatabase) View(ctx context.Context, fn func(tx review.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	return fn(&memTx{state: d.state, readOnly: true})
}

func (d *MemoryDatabase) CreateOperation(_ context.Context, operation, parameters string, startedAt time.Time) (*review.Operation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	op := review.Operation{
		ID:         d.nextOp,
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
		StartedAt:  startedAt,
	}
	d.nextOp++
	d.ops = append(d.ops, op)
	return &op, nil
}

func (d *MemoryDatabase) FinishOperation(_ context.Context, id int64, status string, finishedAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.ops {
		if d.ops[i].ID == id {
			at := finishedAt
			d.ops[i].Status = status
			d.ops[i].FinishedAt = &at
			return nil
		}
	}
	return fmt.Errorf("finishing operation: operation %d not found", id)
}

func (d *MemoryDatabase) ListOperations(_ context.Context, limit int) ([]*review.Operation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var ops []*review.Operation
	for i := len(d.ops) - 1; i >= 0 && len(ops) < limit; i-- {
		op := d.ops[i]
		ops = append(ops, &op)
	}
	return ops, nil
}

func (d *MemoryDatabase) MigrateUp() error       { return nil }
func (d *MemoryDatabase) CheckMigrations() error { return nil }
func (d *MemoryDatabase) Close() error           { return nil }

// memTx implements review.Tx over a memState.
type memTx struct {
	state    *memState
	readOnly bool
}

func (t *memTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// Markup operations

func (t *memTx) GetMarkup(_ context.Context, id string) (*review.Markup, error) {
	m, ok := t.state.markups[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (t *memTx) ListMarkups(_ context.Context, versionID string) ([]*review.Markup, error) {
	var markups []*review.Markup
	for _, m := range t.state.markups {
		if m.VersionID == versionID {
			markups = append(markups, &m)
		}
	}
	sort.Slice(markups, func(i, j int) bool {
		return markups[i].SequenceNumber < markups[j].SequenceNumber
	})
	return markups, nil
}

func (t *memTx) InsertMarkup(_ context.Context, m *review.Markup) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.markups[m.ID]; ok {
		return fmt.Errorf("inserting markup: duplicate id %s", m.ID)
	}
	for _, other := range t.state.markups {
		if other.VersionID == m.VersionID && other.SequenceNumber == m.SequenceNumber {
			return fmt.Errorf("inserting markup: sequence number %d taken in version %s", m.SequenceNumber, m.VersionID)
		}
	}
	t.state.markups[m.ID] = *m
	return nil
}

func (t *memTx) UpdateMarkup(_ context.Context, m *review.Markup) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur, ok := t.state.markups[m.ID]
	if !ok {
		return fmt.Errorf("updating markup: %s not found", m.ID)
	}
	cur.X, cur.Y, cur.Type = m.X, m.Y, m.Type
	cur.Color, cur.Size = m.Color, m.Size
	cur.UpdatedAt = m.UpdatedAt
	t.state.markups[m.ID] = cur
	return nil
}

func (t *memTx) ResequenceMarkups(ctx context.Context, versionID string, ids []string, at time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	current, _ := t.ListMarkups(ctx, versionID)
	if len(current) != len(ids) {
		return fmt.Errorf("resequencing %s: got %d ids for %d markups", versionID, len(ids), len(current))
	}
	for i, id := range ids {
		m, ok := t.state.markups[id]
		if !ok || m.VersionID != versionID {
			return fmt.Errorf("resequencing %s: markup %s not in version", versionID, id)
		}
		if m.SequenceNumber != i+1 {
			m.SequenceNumber = i + 1
			m.UpdatedAt = at
			t.state.markups[id] = m
		}
	}
	return nil
}

func (t *memTx) SetMarkupFeedback(_ context.Context, markupID, feedbackID string, at time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	m, ok := t.state.markups[markupID]
	if !ok {
		return fmt.Errorf("linking markup feedback: %s not found", markupID)
	}
	if feedbackID != "" {
		if _, ok := t.state.feedbacks[feedbackID]; !ok {
			return fmt.Errorf("linking markup feedback: feedback %s not found", feedbackID)
		}
	}
	m.FeedbackID = feedbackID
	m.UpdatedAt = at
	t.state.markups[markupID] = m
	return nil
}

func (t *memTx) SetMarkupRollup(_ context.Context, markupID string, r review.Rollup) error {
	if err := t.writable(); err != nil {
		return err
	}
	m, ok := t.state.markups[markupID]
	if !ok {
		return fmt.Errorf("caching markup rollup: %s not found", markupID)
	}
	m.CommentCount = r.CommentCount
	m.HasUnresolvedComments = r.HasUnresolved
	t.state.markups[markupID] = m
	return nil
}

func (t *memTx) DeleteMarkup(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	for fid, f := range t.state.feedbacks {
		if f.MarkupID == id {
			delete(t.state.feedbacks, fid)
		}
	}
	delete(t.state.markups, id)
	return nil
}

// Feedback operations

func (t *memTx) GetFeedback(_ context.Context, id string) (*review.Feedback, error) {
	f, ok := t.state.feedbacks[id]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (t *memTx) InsertFeedback(_ context.Context, f *review.Feedback) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.state.markups[f.MarkupID]; !ok {
		return fmt.Errorf("inserting feedback: markup %s not found", f.MarkupID)
	}
	for _, other := range t.state.feedbacks {
		if other.MarkupID == f.MarkupID {
			return fmt.Errorf("inserting feedback: markup %s already owns %s", f.MarkupID, other.ID)
		}
	}
	t.state.feedbacks[f.ID] = *f
	return nil
}

func (t *memTx) UpdateFeedback(_ context.Context, f *review.Feedback) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur, ok := t.state.feedbacks[f.ID]
	if !ok {
		return fmt.Errorf("updating feedback: %s not found", f.ID)
	}
	// Ownership columns are immutable.
	next := *f
	next.MarkupID, next.VersionID, next.ProjectID = cur.MarkupID, cur.VersionID, cur.ProjectID
	next.CreatedAt, next.CreatedBy = cur.CreatedAt, cur.CreatedBy
	t.state.feedbacks[f.ID] = next
	return nil
}

func (t *memTx) DeleteFeedback(_ context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	for mid, m := range t.state.markups {
		if m.FeedbackID == id {
			m.FeedbackID = ""
			t.state.markups[mid] = m
		}
	}
	delete(t.state.feedbacks, id)
	return nil
}

// Comment operations

func (t *memTx) ListComments(_ context.Context, subject review.Subject) ([]*review.Comment, error) {
	stored := t.state.comments[subject]
	comments := make([]*review.Comment, len(stored))
	for i := range stored {
		c := stored[i]
		comments[i] = &c
	}
	return comments, nil
}

func (t *memTx) InsertComment(_ context.Context, c *review.Comment) error {
	if err := t.writable(); err != nil {
		return err
	}
	subject := c.Subject()
	for _, other := range t.state.comments[subject] {
		if other.ID == c.ID {
			return fmt.Errorf("inserting comment: duplicate id %s", c.ID)
		}
		if other.Position == c.Position {
			return fmt.Errorf("inserting comment: position %d taken on %s", c.Position, subject)
		}
	}
	if c.ParentID != "" && !t.hasComment(c.ParentID) {
		return fmt.Errorf("inserting comment: parent %s not found", c.ParentID)
	}
	list := append(t.state.comments[subject], *c)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Position < list[j].Position })
	t.state.comments[subject] = list
	return nil
}

func (t *memTx) hasComment(id string) bool {
	for _, list := range t.state.comments {
		for _, c := range list {
			if c.ID == id {
				return true
			}
		}
	}
	return false
}

func (t *memTx) UpdateComment(_ context.Context, c *review.Comment) error {
	if err := t.writable(); err != nil {
		return err
	}
	list := t.state.comments[c.Subject()]
	for i := range list {
		if list[i].ID == c.ID {
			list[i].IsResolved = c.IsResolved
			list[i].ResolvedAt = c.ResolvedAt
			list[i].ResolvedBy = c.ResolvedBy
			return nil
		}
	}
	return fmt.Errorf("updating comment: %s not found", c.ID)
}

func (t *memTx) DeleteComments(_ context.Context, subject review.Subject, ids []string) error {
	if err := t.writable(); err != nil {
		return err
	}
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	list := t.state.comments[subject]
	kept := list[:0:0]
	for _, c := range list {
		if doomed[c.ID] || doomed[c.ParentID] {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		delete(t.state.comments, subject)
		return nil
	}
	t.state.comments[subject] = kept
	return nil
}

// Compile-time checks
var (
	_ review.Database = (*MemoryDatabase)(nil)
	_ review.Tx       = (*memTx)(nil)
)
