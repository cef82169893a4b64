package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"draftmark/internal/review"
)

var testTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// backends returns every database implementation under test, migrated and
// empty. PostgreSQL joins when DRAFTMARK_TEST_POSTGRES_URL is set.
func backends(t *testing.T) map[string]review.Database {
	t.Helper()

	sqlite, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	if err := sqlite.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	dbs := map[string]review.Database{
		"memory": NewMemoryDatabase(),
		"sqlite": sqlite,
	}

	if url := os.Getenv("DRAFTMARK_TEST_POSTGRES_URL"); url != "" {
		pg, err := NewPostgresDatabase(context.Background(), url)
		if err != nil {
			t.Fatalf("NewPostgresDatabase() error = %v", err)
		}
		if err := pg.MigrateUp(); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}
		t.Cleanup(func() { pg.Close() })
		dbs["postgres"] = pg
	}
	return dbs
}

func forEachBackend(t *testing.T, fn func(t *testing.T, db review.Database)) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, db)
		})
	}
}

func mustUpdate(t *testing.T, db review.Database, fn func(tx review.Tx) error) {
	t.Helper()
	if err := db.Update(context.Background(), fn); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}

func newMarkup(versionID string, seq int) *review.Markup {
	return &review.Markup{
		ID:             uuid.New().String(),
		VersionID:      versionID,
		X:              10,
		Y:              20,
		Type:           review.MarkupPoint,
		SequenceNumber: seq,
		Color:          "red",
		Size:           12,
		CreatedAt:      testTime,
		CreatedBy:      "client-1",
		UpdatedAt:      testTime,
	}
}

func newFeedback(m *review.Markup) *review.Feedback {
	return &review.Feedback{
		ID:          uuid.New().String(),
		MarkupID:    m.ID,
		VersionID:   m.VersionID,
		ProjectID:   "project-1",
		Title:       "Logo too small",
		Description: "Increase the logo size",
		Category:    review.CategorySize,
		Priority:    review.PriorityHigh,
		Status:      review.StatusPending,
		CreatedAt:   testTime,
		CreatedBy:   "client-1",
		UpdatedAt:   testTime,
	}
}

func listMarkups(t *testing.T, db review.Database, versionID string) []*review.Markup {
	t.Helper()
	var markups []*review.Markup
	err := db.View(context.Background(), func(tx review.Tx) error {
		var err error
		markups, err = tx.ListMarkups(context.Background(), versionID)
		return err
	})
	if err != nil {
		t.Fatalf("ListMarkups() error = %v", err)
	}
	return markups
}

func TestDatabase_Markups(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, db review.Database) {
		version := uuid.New().String()
		a, b, c := newMarkup(version, 1), newMarkup(version, 2), newMarkup(version, 3)

		t.Run("insert and list in sequence order", func(t *testing.T) {
			mustUpdate(t, db, func(tx review.Tx) error {
				for _, m := range []*review.Markup{c, a, b} {
					if err := tx.InsertMarkup(ctx, m); err != nil {
						return err
					}
				}
				return nil
			})

			got := listMarkups(t, db, version)
			if len(got) != 3 {
				t.Fatalf("len(ListMarkups()) = %d, want 3", len(got))
			}
			for i, want := range []*review.Markup{a, b, c} {
				if got[i].ID != want.ID {
					t.Errorf("markups[%d].ID = %s, want %s", i, got[i].ID, want.ID)
				}
			}
			if !got[0].CreatedAt.Equal(testTime) {
				t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, testTime)
			}
			if got[0].FeedbackID != "" {
				t.Errorf("FeedbackID = %q, want empty", got[0].FeedbackID)
			}
		})

		t.Run("get returns nil for unknown id", func(t *testing.T) {
			err := db.View(ctx, func(tx review.Tx) error {
				m, err := tx.GetMarkup(ctx, "missing")
				if err != nil {
					return err
				}
				if m != nil {
					t.Errorf("GetMarkup() = %+v, want nil", m)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("View() error = %v", err)
			}
		})

		t.Run("update leaves sequence and rollup alone", func(t *testing.T) {
			mustUpdate(t, db, func(tx review.Tx) error {
				if err := tx.SetMarkupRollup(ctx, a.ID, review.Rollup{CommentCount: 2, HasUnresolved: true}); err != nil {
					return err
				}
				edited := *a
				edited.X, edited.Color = 55, "blue"
				edited.SequenceNumber = 99
				edited.CommentCount = 0
				return tx.UpdateMarkup(ctx, &edited)
			})

			got := listMarkups(t, db, version)[0]
			if got.X != 55 || got.Color != "blue" {
				t.Errorf("X, Color = %v, %q, want 55, blue", got.X, got.Color)
			}
			if got.SequenceNumber != 1 {
				t.Errorf("SequenceNumber = %d, want 1", got.SequenceNumber)
			}
			if got.CommentCount != 2 || !got.HasUnresolvedComments {
				t.Errorf("Rollup() = %+v, want {2 true}", got.Rollup())
			}
		})

		t.Run("resequence reorders densely", func(t *testing.T) {
			mustUpdate(t, db, func(tx review.Tx) error {
				return tx.ResequenceMarkups(ctx, version, []string{c.ID, a.ID, b.ID}, testTime.Add(time.Minute))
			})

			got := listMarkups(t, db, version)
			for i, want := range []*review.Markup{c, a, b} {
				if got[i].ID != want.ID || got[i].SequenceNumber != i+1 {
					t.Errorf("markups[%d] = %s #%d, want %s #%d", i, got[i].ID, got[i].SequenceNumber, want.ID, i+1)
				}
			}
		})

		t.Run("resequence rejects a foreign id", func(t *testing.T) {
			err := db.Update(ctx, func(tx review.Tx) error {
				return tx.ResequenceMarkups(ctx, version, []string{c.ID, a.ID, "other"}, testTime)
			})
			if err == nil {
				t.Fatal("ResequenceMarkups() expected error for unknown id")
			}
		})
	})
}

func TestDatabase_FeedbackLink(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, db review.Database) {
		t.Run("deleting a markup removes its feedback", func(t *testing.T) {
			m := newMarkup(uuid.New().String(), 1)
			f := newFeedback(m)
			mustUpdate(t, db, func(tx review.Tx) error {
				if err := tx.InsertMarkup(ctx, m); err != nil {
					return err
				}
				if err := tx.InsertFeedback(ctx, f); err != nil {
					return err
				}
				return tx.SetMarkupFeedback(ctx, m.ID, f.ID, testTime)
			})
			mustUpdate(t, db, func(tx review.Tx) error {
				return tx.DeleteMarkup(ctx, m.ID)
			})

			err := db.View(ctx, func(tx review.Tx) error {
				got, err := tx.GetFeedback(ctx, f.ID)
				if err != nil {
					return err
				}
				if got != nil {
					t.Errorf("GetFeedback() = %+v, want nil", got)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("View() error = %v", err)
			}
		})

		t.Run("deleting a feedback clears the markup link", func(t *testing.T) {
			m := newMarkup(uuid.New().String(), 1)
			f := newFeedback(m)
			mustUpdate(t, db, func(tx review.Tx) error {
				if err := tx.InsertMarkup(ctx, m); err != nil {
					return err
				}
				if err := tx.InsertFeedback(ctx, f); err != nil {
					return err
				}
				return tx.SetMarkupFeedback(ctx, m.ID, f.ID, testTime)
			})
			mustUpdate(t, db, func(tx review.Tx) error {
				return tx.DeleteFeedback(ctx, f.ID)
			})

			got := listMarkups(t, db, m.VersionID)
			if len(got) != 1 {
				t.Fatalf("len(ListMarkups()) = %d, want 1", len(got))
			}
			if got[0].FeedbackID != "" {
				t.Errorf("FeedbackID = %q, want empty", got[0].FeedbackID)
			}
		})

		t.Run("a markup owns at most one feedback", func(t *testing.T) {
			m := newMarkup(uuid.New().String(), 1)
			mustUpdate(t, db, func(tx review.Tx) error {
				if err := tx.InsertMarkup(ctx, m); err != nil {
					return err
				}
				return tx.InsertFeedback(ctx, newFeedback(m))
			})
			err := db.Update(ctx, func(tx review.Tx) error {
				return tx.InsertFeedback(ctx, newFeedback(m))
			})
			if err == nil {
				t.Fatal("InsertFeedback() expected error for second feedback on markup")
			}
		})

		t.Run("resolved_at round trips", func(t *testing.T) {
			m := newMarkup(uuid.New().String(), 1)
			f := newFeedback(m)
			mustUpdate(t, db, func(tx review.Tx) error {
				if err := tx.InsertMarkup(ctx, m); err != nil {
					return err
				}
				return tx.InsertFeedback(ctx, f)
			})

			at := testTime.Add(time.Hour)
			f.Status = review.StatusResolved
			f.ResolvedAt = &at
			mustUpdate(t, db, func(tx review.Tx) error {
				return tx.UpdateFeedback(ctx, f)
			})

			err := db.View(ctx, func(tx review.Tx) error {
				got, err := tx.GetFeedback(ctx, f.ID)
				if err != nil {
					return err
				}
				if got.Status != review.StatusResolved {
					t.Errorf("Status = %q, want resolved", got.Status)
				}
				if got.ResolvedAt == nil || !got.ResolvedAt.Equal(at) {
					t.Errorf("ResolvedAt = %v, want %v", got.ResolvedAt, at)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("View() error = %v", err)
			}
		})
	})
}

func TestDatabase_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	forEachBackend(t, func(t *testing.T, db review.Database) {
		version := uuid.New().String()
		err := db.Update(ctx, func(tx review.Tx) error {
			if err := tx.InsertMarkup(ctx, newMarkup(version, 1)); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Update() error = %v, want %v", err, boom)
		}

		if got := listMarkups(t, db, version); len(got) != 0 {
			t.Errorf("len(ListMarkups()) = %d after rollback, want 0", len(got))
		}
	})
}

func TestDatabase_Comments(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, db review.Database) {
		subject := review.ChecklistSubject(uuid.New().String())
		comment := func(pos int, parent string) *review.Comment {
			return &review.Comment{
				ID:          uuid.New().String(),
				SubjectType: subject.Type,
				SubjectID:   subject.ID,
				Position:    pos,
				AuthorID:    "designer-1",
				AuthorName:  "Dana",
				AuthorRole:  review.RoleDesigner,
				Content:     "comment",
				CreatedAt:   testTime.Add(time.Duration(pos) * time.Minute),
				ParentID:    parent,
			}
		}
		top := comment(1, "")
		reply := comment(2, top.ID)
		other := comment(3, "")

		mustUpdate(t, db, func(tx review.Tx) error {
			for _, c := range []*review.Comment{top, reply, other} {
				if err := tx.InsertComment(ctx, c); err != nil {
					return err
				}
			}
			return nil
		})

		list := func() []*review.Comment {
			var comments []*review.Comment
			err := db.View(ctx, func(tx review.Tx) error {
				var err error
				comments, err = tx.ListComments(ctx, subject)
				return err
			})
			if err != nil {
				t.Fatalf("ListComments() error = %v", err)
			}
			return comments
		}

		t.Run("lists in insertion order", func(t *testing.T) {
			got := list()
			if len(got) != 3 {
				t.Fatalf("len(ListComments()) = %d, want 3", len(got))
			}
			if got[1].ParentID != top.ID {
				t.Errorf("comments[1].ParentID = %q, want %q", got[1].ParentID, top.ID)
			}
		})

		t.Run("update persists resolution", func(t *testing.T) {
			at := testTime.Add(time.Hour)
			resolved := *reply
			resolved.IsResolved = true
			resolved.ResolvedAt = &at
			resolved.ResolvedBy = "designer-1"
			mustUpdate(t, db, func(tx review.Tx) error {
				return tx.UpdateComment(ctx, &resolved)
			})

			got := list()[1]
			if !got.IsResolved || got.ResolvedBy != "designer-1" {
				t.Errorf("IsResolved, ResolvedBy = %v, %q, want true, designer-1", got.IsResolved, got.ResolvedBy)
			}
			if got.ResolvedAt == nil || !got.ResolvedAt.Equal(at) {
				t.Errorf("ResolvedAt = %v, want %v", got.ResolvedAt, at)
			}
		})

		t.Run("deleting a top-level comment removes its replies", func(t *testing.T) {
			mustUpdate(t, db, func(tx review.Tx) error {
				return tx.DeleteComments(ctx, subject, []string{top.ID})
			})

			got := list()
			if len(got) != 1 || got[0].ID != other.ID {
				t.Errorf("ListComments() = %d comments, want only %s", len(got), other.ID)
			}
		})

		t.Run("other subjects are untouched", func(t *testing.T) {
			var got []*review.Comment
			err := db.View(ctx, func(tx review.Tx) error {
				var err error
				got, err = tx.ListComments(ctx, review.MarkupSubject(subject.ID))
				return err
			})
			if err != nil {
				t.Fatalf("ListComments() error = %v", err)
			}
			if len(got) != 0 {
				t.Errorf("len(ListComments(markup subject)) = %d, want 0", len(got))
			}
		})
	})
}

func TestDatabase_Operations(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, db review.Database) {
		first, err := db.CreateOperation(ctx, "markup add", `["v1"]`, testTime)
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
		second, err := db.CreateOperation(ctx, "markup rm", `["m1"]`, testTime.Add(time.Second))
		if err != nil {
			t.Fatalf("CreateOperation() error = %v", err)
		}
		if second.ID <= first.ID {
			t.Errorf("operation ids not increasing: %d then %d", first.ID, second.ID)
		}

		if err := db.FinishOperation(ctx, first.ID, "success", testTime.Add(time.Minute)); err != nil {
			t.Fatalf("FinishOperation() error = %v", err)
		}

		ops, err := db.ListOperations(ctx, 1)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 1 || ops[0].ID != second.ID {
			t.Fatalf("ListOperations(1) = %+v, want newest operation %d", ops, second.ID)
		}
		if ops[0].FinishedAt != nil {
			t.Errorf("FinishedAt = %v, want nil for running operation", ops[0].FinishedAt)
		}

		ops, err = db.ListOperations(ctx, 10)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		var finished *review.Operation
		for _, op := range ops {
			if op.ID == first.ID {
				finished = op
			}
		}
		if finished == nil {
			t.Fatal("ListOperations() missing finished operation")
		}
		if finished.Status != "success" || finished.FinishedAt == nil {
			t.Errorf("finished operation = %+v, want status success with FinishedAt", finished)
		}
	})
}

func TestMemoryDatabase_ViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDatabase()

	err := db.View(ctx, func(tx review.Tx) error {
		return tx.InsertMarkup(ctx, newMarkup("v1", 1))
	})
	if !errors.Is(err, errReadOnly) {
		t.Errorf("InsertMarkup() in View error = %v, want %v", err, errReadOnly)
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		dialect string
		query   string
		want    string
	}{
		{"sqlite", "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{"postgres", "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"postgres", "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		if got := rebind(tt.dialect, tt.query); got != tt.want {
			t.Errorf("rebind(%q, %q) = %q, want %q", tt.dialect, tt.query, got, tt.want)
		}
	}
}

func TestSQLiteDSN_ImmediateTransactions(t *testing.T) {
	dsn := sqliteDSN("/data/draftmark.db")
	for _, opt := range []string{"_foreign_keys=on", "_busy_timeout=5000", "_txlock=immediate"} {
		if !strings.Contains(dsn, opt) {
			t.Errorf("sqliteDSN() = %q, missing %s", dsn, opt)
		}
	}
}

// Two handles on one file stand in for two CLI processes that share a
// SQLite database but not a locker.
func TestSQLiteDatabase_SeparateHandlesSerializeWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draftmark.db")

	handles := make([]*SQLDatabase, 2)
	for i := range handles {
		db, err := NewSQLiteDatabase(path)
		if err != nil {
			t.Fatalf("NewSQLiteDatabase() error = %v", err)
		}
		t.Cleanup(func() { db.Close() })
		handles[i] = db
	}
	if err := handles[0].MigrateUp(); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	ctx := context.Background()
	const perHandle = 10
	errs := make(chan error, len(handles)*perHandle)
	var wg sync.WaitGroup
	for _, db := range handles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perHandle {
				errs <- db.Update(ctx, func(tx review.Tx) error {
					existing, err := tx.ListMarkups(ctx, "v1")
					if err != nil {
						return err
					}
					return tx.InsertMarkup(ctx, newMarkup("v1", len(existing)+1))
				})
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	markups := listMarkups(t, handles[0], "v1")
	if len(markups) != len(handles)*perHandle {
		t.Fatalf("got %d markups, want %d", len(markups), len(handles)*perHandle)
	}
	for i, m := range markups {
		if m.SequenceNumber != i+1 {
			t.Errorf("markups[%d].SequenceNumber = %d, want %d", i, m.SequenceNumber, i+1)
		}
	}
}
