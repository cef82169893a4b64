package review_test

import (
	"context"
	"testing"

	"draftmark/internal/review"
	"draftmark/internal/testutil"
)

// eachBackend runs fn against a fresh service over every embedded database.
func eachBackend(t *testing.T, opts review.Options, fn func(t *testing.T, env *testutil.Env)) {
	t.Helper()
	for name, db := range testutil.Backends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, testutil.NewTestService(t, db, opts))
		})
	}
}

func addMarkup(t *testing.T, env *testutil.Env, version string, typ review.MarkupType) *review.Markup {
	t.Helper()
	m, err := env.Markups.Create(context.Background(), review.CreateMarkupInput{
		VersionID: version,
		X:         25,
		Y:         75,
		Type:      typ,
		CreatedBy: "user-1",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return m
}

func addFeedback(t *testing.T, env *testutil.Env, m *review.Markup, priority review.Priority) *review.Feedback {
	t.Helper()
	f, err := env.Feedback.Create(context.Background(), review.CreateFeedbackInput{
		MarkupID:    m.ID,
		VersionID:   m.VersionID,
		ProjectID:   "project-1",
		Title:       "Logo too small",
		Description: "Increase the logo size",
		Category:    review.CategorySize,
		Priority:    priority,
		CreatedBy:   "user-1",
	})
	if err != nil {
		t.Fatalf("Feedback.Create() error = %v", err)
	}
	if f == nil {
		t.Fatal("Feedback.Create() = nil, want feedback")
	}
	return f
}

func addComment(t *testing.T, env *testutil.Env, subject review.Subject, role review.AuthorRole, parentID string) *review.Comment {
	t.Helper()
	c, err := env.Comments.Add(context.Background(), subject, review.AddCommentInput{
		AuthorID:   string(role) + "-1",
		AuthorName: "Alex",
		AuthorRole: role,
		Content:    "Please check this",
		ParentID:   parentID,
	})
	if err != nil {
		t.Fatalf("Comments.Add() error = %v", err)
	}
	if c == nil {
		t.Fatal("Comments.Add() = nil, want comment")
	}
	return c
}

func listMarkups(t *testing.T, env *testutil.Env, version string) []*review.Markup {
	t.Helper()
	markups, err := env.Markups.ListByVersion(context.Background(), version)
	if err != nil {
		t.Fatalf("ListByVersion() error = %v", err)
	}
	return markups
}

func getMarkup(t *testing.T, env *testutil.Env, id string) *review.Markup {
	t.Helper()
	m, err := env.Markups.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return m
}

// assertDense checks that markups are numbered 1..N in order.
func assertDense(t *testing.T, markups []*review.Markup) {
	t.Helper()
	for i, m := range markups {
		if m.SequenceNumber != i+1 {
			t.Errorf("markups[%d].SequenceNumber = %d, want %d", i, m.SequenceNumber, i+1)
		}
	}
}

func ids(markups []*review.Markup) []string {
	out := make([]string, len(markups))
	for i, m := range markups {
		out[i] = m.ID
	}
	return out
}

func ptr[T any](v T) *T { return &v }
