// Package keylock serializes work per key so that at most one message per
// user is processed at a time.
package keylock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrLockTimeout is returned when a lock could not be taken before the context ended.
	ErrLockTimeout = errors.New("keylock: timed out waiting for lock")
	// ErrLeaseLost is the cancel cause of a held context whose lock expired or was taken over.
	ErrLeaseLost = errors.New("keylock: lock lease lost")
)

// Locker grants exclusive access to a key. Work done under the lock must use
// the returned held context: it is cancelled when the lock is released or
// lost. release may be called more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (held context.Context, release func(), err error)
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process Locker: one mutex per key, dropped once no caller holds or waits on it.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
	wait  time.Duration
}

// NewLocal creates an in-process locker. wait caps how long Acquire blocks
// when ctx carries no deadline of its own; zero waits for ctx alone.
func NewLocal(wait time.Duration) *Local {
	return &Local{locks: make(map[string]*localEntry), wait: wait}
}

func (l *Local) Acquire(ctx context.Context, key string) (context.Context, func(), error) {
	waitCtx := ctx
	if _, ok := ctx.Deadline(); !ok && l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-waitCtx.Done():
		l.drop(key, entry)
		return nil, nil, errors.Join(ErrLockTimeout, waitCtx.Err())
	}

	held, cancel := context.WithCancel(ctx)
	var once sync.Once
	return held, func() {
		once.Do(func() {
			cancel()
			<-entry.ch
			l.drop(key, entry)
		})
	}, nil
}

// Held reports how many keys currently have holders or waiters.
func (l *Local) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *Local) drop(key string, entry *localEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
