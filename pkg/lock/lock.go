package lock

import (
	"context"
	"errors"
)

var ErrInvalidKey = errors.New("invalid lock key")

// Locker serializes work on a key across processes.
// Blocks until lock is acquired or context is cancelled
type Locker interface {
	AcquireLock(ctx context.Context, key string) (Lock, error)
}

// Lock represents an acquired lock that must be released
type Lock interface {
	Release() error
}
