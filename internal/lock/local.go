// Package lock provides per-key mutual exclusion for the review stores.
package lock

import (
	"context"
	"sync"

	"draftmark/internal/review"
)

// LocalLocker serializes writers within one process. Entries are reference
// counted and dropped once no goroutine holds or waits on the key.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	held chan struct{} // capacity 1; full while the key is held
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, key string) (review.Unlock, error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{held: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.held <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			<-e.held
			l.release(key, e)
		})
		return nil
	}, nil
}

func (l *LocalLocker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size reports the number of live entries.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Compile-time check that LocalLocker implements review.Locker
var _ review.Locker = (*LocalLocker)(nil)
