package testutil

import (
	"testing"

	"draftmark/internal/archive"
	"draftmark/internal/lock"
	"draftmark/internal/review"
)

// Env is a review.Service wired to deterministic test dependencies.
type Env struct {
	*review.Service
	DB      review.Database
	Backend *archive.MemoryArchive // archive backend behind Service.Archive
	Clock   *StubClock
	IDs     *StubIDGenerator
}

// NewTestService wires a Service over db with a local locker, a memory
// archive, a FixedClock and sequential ids.
func NewTestService(t *testing.T, db review.Database, opts review.Options) *Env {
	t.Helper()

	env := &Env{
		DB:      db,
		Backend: archive.NewMemoryArchive(),
		Clock:   FixedClock(),
		IDs:     NewStubIDGenerator(),
	}
	env.Service = review.NewService(db, lock.NewLocalLocker(), env.Backend,
		review.NopLogger{}, env.Clock, env.IDs, opts)
	return env
}
