package interview

import (
	"context"
	"sync"
)

// lockTable serializes work per session id. Entries exist only while
// some caller holds or waits for them.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sessionLock)}
}

// acquire blocks until the session's lock is held or ctx is done.
// The returned release func must be called exactly once.
func (t *lockTable) acquire(ctx context.Context, sessionID string) (func(), error) {
	t.mu.Lock()
	l, ok := t.locks[sessionID]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		t.locks[sessionID] = l
	}
	l.refs++
	t.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				t.unref(sessionID, l)
			})
		}, nil
	case <-ctx.Done():
		t.unref(sessionID, l)
		return nil, ctx.Err()
	}
}

func (t *lockTable) unref(sessionID string, l *sessionLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, sessionID)
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
