package review_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"draftmark/internal/review"
	"draftmark/internal/testutil"
)

var designer = review.Principal{ID: "designer-1", Name: "Dana", Role: review.RoleDesigner}

func designerHandle(t *testing.T, env *testutil.Env) *review.DesignerThreads {
	t.Helper()
	d, err := env.Comments.AsDesigner(designer)
	if err != nil {
		t.Fatalf("AsDesigner() error = %v", err)
	}
	return d
}

func TestCommentThreads_AddAndList(t *testing.T) {
	eachBackend(t, review.Options{}, func(t *testing.T, env *testutil.Env) {
		ctx := context.Background()
		m := addMarkup(t, env, "v1", review.MarkupPoint)
		subject := review.MarkupSubject(m.ID)

		c1 := addComment(t, env, subject, review.RoleClient, "")
		c2 := addComment(t, env, subject, review.RoleDesigner, c1.ID)
		c3 := addComment(t, env, subject, review.RoleClient, "")

		comments, err := env.Comments.List(ctx, subject)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(comments) != 3 {
			t.Fatalf("List() returned %d comments, want 3", len(comments))
		}
		for i, want := range []*review.Comment{c1, c2, c3} {
			if comments[i].ID != want.ID {
				t.Errorf("comments[%d] = %s, want %s", i, comments[i].ID, want.ID)
			}
			if comments[i].IsResolved {
				t.Errorf("comments[%d].IsResolved = true, want false", i)
			}
		}
		if comments[1].ParentID != c1.ID {
			t.Errorf("reply ParentID = %q, want %q", comments[1].ParentID, c1.ID)
		}

		got := getMarkup(t, env, m.ID)
		if got.CommentCount != 3 || !got.HasUnresolvedComments {
			t.Errorf("rollup = (%d, %v), want (3, true)", got.CommentCount, got.HasUnresolvedComments)
		}
	})
}

func TestCommentThreads_AddErrors(t *testing.T) {
	eachBackend(t, review.Options{}, func(t *testing.T, env *testutil.Env) {
		ctx := context.Background()
		m := addMarkup(t, env, "v1", review.MarkupPoint)
		other := addMarkup(t, env, "v1", review.MarkupPoint)
		subject := review.MarkupSubject(m.ID)

		top := addComment(t, env, subject, review.RoleClient, "")
		reply := addComment(t, env, subject, review.RoleClient, top.ID)
		foreign := addComment(t, env, review.MarkupSubject(other.ID), review.RoleClient, "")

		in := review.AddCommentInput{AuthorID: "u1", AuthorName: "U", AuthorRole: review.RoleClient, Content: "hi"}

		t.Run("missing markup", func(t *testing.T) {
			c, err := env.Comments.Add(ctx, review.MarkupSubject("missing"), in)
			if err != nil || c != nil {
				t.Errorf("Add() = (%v, %v), want (nil, nil)", c, err)
			}
		})

		parents := map[string]string{
			"missing parent":       "nope",
			"reply as parent":      reply.ID,
			"parent other subject": foreign.ID,
		}
		for name, parentID := range parents {
			t.Run(name, func(t *testing.T) {
				withParent := in
				withParent.ParentID = parentID
				if _, err := env.Comments.Add(ctx, subject, withParent); !errors.Is(err, review.ErrInvalidParent) {
					t.Errorf("Add() error = %v, want ErrInvalidParent", err)
				}
			})
		}

		t.Run("validation", func(t *testing.T) {
			bad := in
			bad.Content = "   "
			if _, err := env.Comments.Add(ctx, subject, bad); !errors.Is(err, review.ErrValidation) {
				t.Errorf("Add(blank content) error = %v, want ErrValidation", err)
			}
			bad = in
			bad.AuthorRole = "admin"
			if _, err := env.Comments.Add(ctx, subject, bad); !errors.Is(err, review.ErrValidation) {
				t.Errorf("Add(role=admin) error = %v, want ErrValidation", err)
			}
			if _, err := env.Comments.Add(ctx, review.Subject{Type: "page", ID: "x"}, in); !errors.Is(err, review.ErrValidation) {
				t.Errorf("Add(subject type page) error = %v, want ErrValidation", err)
			}
		})

		comments, err := env.Comments.List(ctx, subject)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(comments) != 2 {
			t.Errorf("List() returned %d comments after rejected adds, want 2", len(comments))
		}
		if got := getMarkup(t, env, m.ID); got.CommentCount != 2 {
			t.Errorf("CommentCount = %d, want 2", got.CommentCount)
		}
	})
}

func TestCommentThreads_DeleteCascadesReplies(t *testing.T) {
	eachBackend(t, review.Options{}, func(t *testing.T, env *testutil.Env) {
		ctx := context.Background()
		m := addMarkup(t, env, "v1", review.MarkupPoint)
		subject := review.MarkupSubject(m.ID)

		top := addComment(t, env, subject, review.RoleClient, "")
		addComment(t, env, subject, review.RoleDesigner, top.ID)
		addComment(t, env, subject, review.RoleClient, top.ID)
		keep := addComment(t, env, subject, review.RoleClient, "")

		ok, err := env.Comments.Delete(ctx, subject, top.ID)
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if !ok {
			t.Fatal("Delete() = false, want true")
		}

		comments, err := env.Comments.List(ctx, subject)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(comments) != 1 || comments[0].ID != keep.ID {
			t.Fatalf("List() after delete = %v, want only %s", comments, keep.ID)
		}
		for _, c := range comments {
			if c.ParentID == top.ID {
				t.Errorf("reply %s of deleted comment remains", c.ID)
			}
		}
		if got := getMarkup(t, env, m.ID); got.CommentCount != 1 {
			t.Errorf("CommentCount = %d, want 1", got.CommentCount)
		}

		ok, err = env.Comments.Delete(ctx, subject, top.ID)
		if err != nil || ok {
			t.Errorf("second Delete() = (%v, %v), want (false, nil)", ok, err)
		}

		// New comments keep appending after earlier deletes.
		next := addComment(t, env, subject, review.RoleClient, "")
		if next.Position <= keep.Position {
			t.Errorf("Position = %d, want > %d", next.Position, keep.Position)
		}
	})
}

func TestCommentThreads_DeleteReply(t *testing.T) {
	eachBackend(t, review.Options{}, func(t *testing.T, env *testutil.Env) {
		ctx := context.Background()
		m := addMarkup(t, env, "v1", review.MarkupPoint)
		subject := review.MarkupSubject(m.ID)

		top := addComment(t, env, subject, review.RoleClient, "")
		reply := addComment(t, env, subject, review.RoleDesigner, top.ID)

		if ok, err := env.Comments.Delete(ctx, subject, reply.ID); err != nil || !ok {
			t.Fatalf("Delete(reply) = (%v, %v), want (true, nil)", ok, err)
		}
		comments, _ := env.Comments.List(ctx, subject)
		if len(comments) != 1 || comments[0].ID != top.ID {
			t.Errorf("List() after reply delete = %v, want only %s", comments, top.ID)
		}
	})
}

func TestDesignerThreads_ToggleTwice(t *testing.T) {
	eachBackend(t, review.Options{}, func(t *testing.T, env *testutil.Env) {
		ctx := context.Background()
		d := designerHandle(t, env)
		m := addMarkup(t, env, "v1", review.MarkupPoint)
		subject := review.MarkupSubject(m.ID)
		c := addComment(t, env, subject, review.RoleClient, "")

		env.Clock.Advance(time.Minute)
		ok, err := d.ToggleResolved(ctx, subject, c.ID)
		if err != nil || !ok {
			t.Fatalf("ToggleResolved() = (%v, %v), want (true, nil)", ok, err)
		}
		comments, _ := env.Comments.List(ctx, subject)
		got := comments[0]
		if !got.IsResolved || got.ResolvedBy != designer.ID || got.ResolvedAt == nil || !got.ResolvedAt.Equal(env.Clock.Now()) {
			t.Errorf("after resolve = %+v, want resolved by %s at %v", got, designer.ID, env.Clock.Now())
		}
		if m := getMarkup(t, env, m.ID); m.HasUnresolvedComments {
			t.Error("HasUnresolvedComments = true with every comment resolved")
		}

		if ok, err := d.ToggleResolved(ctx, subject, c.ID); err != nil || !ok {
			t.Fatalf("ToggleResolved() = (%v, %v), want (true, nil)", ok, err)
		}
		comments, _ = env.Comments.List(ctx, subject)
		got = comments[0]
		if got.IsResolved || got.ResolvedBy != "" || got.ResolvedAt != nil {
			t.Errorf("after second toggle = %+v, want unresolved with cleared fields", got)
		}
		if m := getMarkup(t, env, m.ID); !m.HasUnresolvedComments {
			t.Error("HasUnresolvedComments = false after unresolve")
		}

		ok, err = d.ToggleResolved(ctx, subject, "missing")
		if err != nil || ok {
			t.Errorf("ToggleResolved(missing) = (%v, %v), want (false, nil)", ok, err)
		}
	})
}

func TestDesignerThreads_RollupConsidersReplies(t *testing.T) {
	eachBackend(t, review.Options{}, func(t *testing.T, env *testutil.Env) {
		ctx := context.Background()
		d := designerHandle(t, env)
		m := addMarkup(t, env, "v1", review.MarkupPoint)
		subject := review.MarkupSubject(m.ID)

		c1 := addComment(t, env, subject, review.RoleDesigner, "")
		c2 := addComment(t, env, subject, review.RoleClient, c1.ID)

		if _, err := d.ToggleResolved(ctx, subject, c1.ID); err != nil {
			t.Fatalf("ToggleResolved() error = %v", err)
		}
		got := getMarkup(t, env, m.ID)
		if !got.HasUnresolvedComments {
			t.Error("HasUnresolvedComments = false while reply is unresolved")
		}
		if got.CommentCount != 2 {
			t.Errorf("CommentCount = %d, want 2", got.CommentCount)
		}

		if _, err := d.ToggleResolved(ctx, subject, c2.ID); err != nil {
			t.Fatalf("ToggleResolved() error = %v", err)
		}
		if got := getMarkup(t, env, m.ID); got.HasUnresolvedComments {
			t.Error("HasUnresolvedComments = true with every comment resolved")
		}
	})
}

func TestCommentThreads_AsDesigner(t *testing.T) {
	env := testutil.NewTestService(t, testutil.NewTestDatabase(t), review.Options{})

	tests := []struct {
		name    string
		p       review.Principal
		wantErr error
	}{
		{"designer", designer, nil},
		{"client", review.Principal{ID: "c1", Role: review.RoleClient}, review.ErrNotDesigner},
		{"missing id", review.Principal{Role: review.RoleDesigner}, review.ErrValidation},
		{"unknown role", review.Principal{ID: "x", Role: "admin"}, review.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := env.Comments.AsDesigner(tt.p)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AsDesigner() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && d.Designer() != tt.p {
				t.Errorf("Designer() = %+v, want %+v", d.Designer(), tt.p)
			}
			if tt.wantErr != nil && d != nil {
				t.Errorf("AsDesigner() = %+v, want nil", d)
			}
		})
	}
}

func TestCommentThreads_ChecklistSubject(t *testing.T) {
	eachBackend(t, review.Options{}, func(t *testing.T, env *testutil.Env) {
		ctx := context.Background()
		d := designerHandle(t, env)
		item := review.ChecklistSubject("item-7")

		c1 := addComment(t, env, item, review.RoleClient, "")
		addComment(t, env, item, review.RoleDesigner, c1.ID)

		r, err := env.Comments.Rollup(ctx, item)
		if err != nil {
			t.Fatalf("Rollup() error = %v", err)
		}
		if r != (review.Rollup{CommentCount: 2, HasUnresolved: true}) {
			t.Errorf("Rollup() = %+v, want {2 true}", r)
		}

		// A markup sharing the id must not see checklist comments.
		markup, err := env.Comments.List(ctx, review.MarkupSubject("item-7"))
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(markup) != 0 {
			t.Errorf("markup subject sees %d checklist comments", len(markup))
		}

		if ok, err := env.Comments.Delete(ctx, item, c1.ID); err != nil || !ok {
			t.Fatalf("Delete() = (%v, %v), want (true, nil)", ok, err)
		}
		c3 := addComment(t, env, item, review.RoleClient, "")
		if _, err := d.ToggleResolved(ctx, item, c3.ID); err != nil {
			t.Fatalf("ToggleResolved() error = %v", err)
		}
		r, _ = env.Comments.Rollup(ctx, item)
		if r != (review.Rollup{CommentCount: 1, HasUnresolved: false}) {
			t.Errorf("Rollup() = %+v, want {1 false}", r)
		}
	})
}

func TestCommentThreads_OrphanedByMarkupDelete(t *testing.T) {
	eachBackend(t, review.Options{}, func(t *testing.T, env *testutil.Env) {
		ctx := context.Background()
		m := addMarkup(t, env, "v1", review.MarkupPoint)
		subject := review.MarkupSubject(m.ID)
		addComment(t, env, subject, review.RoleClient, "")

		if _, err := env.Markups.Delete(ctx, m.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}

		comments, err := env.Comments.List(ctx, subject)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(comments) != 1 {
			t.Errorf("List() returned %d comments, want the orphaned 1", len(comments))
		}
		if c, err := env.Comments.Add(ctx, subject, review.AddCommentInput{
			AuthorID: "u", AuthorName: "U", AuthorRole: review.RoleClient, Content: "late",
		}); err != nil || c != nil {
			t.Errorf("Add() on deleted markup = (%v, %v), want (nil, nil)", c, err)
		}
	})
}

func TestOrganize(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

	comments := []*review.Comment{
		{ID: "a", Position: 1, CreatedAt: at(0)},
		{ID: "a-late", Position: 2, ParentID: "a", CreatedAt: at(9)},
		{ID: "b", Position: 3, CreatedAt: at(2)},
		{ID: "a-early", Position: 4, ParentID: "a", CreatedAt: at(1)},
		{ID: "orphan", Position: 5, ParentID: "gone", CreatedAt: at(3)},
	}

	threads := review.Organize(comments)
	if len(threads) != 2 {
		t.Fatalf("Organize() returned %d threads, want 2", len(threads))
	}
	if threads[0].ID != "a" || threads[1].ID != "b" {
		t.Errorf("thread order = [%s %s], want [a b]", threads[0].ID, threads[1].ID)
	}
	replies := threads[0].Replies
	if len(replies) != 2 || replies[0].ID != "a-early" || replies[1].ID != "a-late" {
		t.Errorf("replies of a = %v, want [a-early a-late]", replies)
	}
	if threads[1].Replies == nil || len(threads[1].Replies) != 0 {
		t.Errorf("replies of b = %v, want empty non-nil slice", threads[1].Replies)
	}

	if got := review.Organize(nil); len(got) != 0 {
		t.Errorf("Organize(nil) = %v, want empty", got)
	}
}
