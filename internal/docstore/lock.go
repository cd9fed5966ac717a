package docstore

import (
	"context"
	"sync"
)

// Locker gives a save exclusive access to one document's parts.
type Locker interface {
	Lock(ctx context.Context, documentID string) (unlock func(), err error)
}

// LocalLocker serializes writers within one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Lock(ctx context.Context, documentID string) (func(), error) {
	sem := l.documentLock(documentID)
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) documentLock(documentID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.locks[documentID]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[documentID] = sem
	}
	return sem
}
