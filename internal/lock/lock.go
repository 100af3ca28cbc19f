// Package lock ensures at most one full migration runs at a time.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLocked is returned by TryLock when another run holds the lock.
var ErrLocked = errors.New("lock: migration already in progress")

// Unlock releases a lock obtained from TryLock.
type Unlock func(ctx context.Context) error

// Locker hands out a single exclusive lock.
type Locker interface {
	TryLock(ctx context.Context) (Unlock, error)
}

// LocalLocker serialises runs within one process.
type LocalLocker struct {
	mu sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

// TryLock implements Locker.
func (l *LocalLocker) TryLock(context.Context) (Unlock, error) {
	if !l.mu.TryLock() {
		return nil, ErrLocked
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}
