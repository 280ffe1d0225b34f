package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// errBusy is returned by tryLock when another process holds the lock.
var errBusy = errors.New("lock held")

// FileLocker takes advisory locks on <dir>/<key>.lock.
type FileLocker struct {
	dir       string
	pollEvery time.Duration
}

func NewFileLocker(dir string) *FileLocker {
	return &FileLocker{dir: dir, pollEvery: 100 * time.Millisecond}
}

func (l *FileLocker) AcquireLock(ctx context.Context, key string) (Lock, error) {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(l.dir, key+".lock"), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	for {
		err := tryLock(f)
		if err == nil {
			return &fileLock{f: f}, nil
		}
		if !errors.Is(err, errBusy) {
			return nil, errors.Join(fmt.Errorf("lock %s: %w", key, err), f.Close())
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ctx.Err(), f.Close())
		case <-time.After(l.pollEvery):
		}
	}
}

type fileLock struct {
	f *os.File
}

func (l *fileLock) Release() error {
	return errors.Join(unlock(l.f), l.f.Close())
}
