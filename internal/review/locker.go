package review

import (
	"context"
	"fmt"
)

// Unlock releases a lock obtained from a Locker.
type Unlock func() error

// Locker provides mutual exclusion per key across every writer sharing the
// same backing store. Lock blocks until the key is free or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// versionKey guards every read-then-write of a version's markup list and
// its feedback links.
func versionKey(versionID string) string {
	return "version:" + versionID
}

// subjectKey guards comment thread mutations of one subject.
func subjectKey(s Subject) string {
	return "subject:" + s.String()
}

// withLock runs fn while holding key.
func (d *deps) withLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := d.locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	defer func() {
		if err := unlock(); err != nil {
			d.logger.Warn("releasing lock failed", "key", key, "error", err)
		}
	}()
	return fn()
}
