package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockerExclusive(t *testing.T) {
	dir := t.TempDir()
	first := NewFileLocker(dir)
	second := NewFileLocker(dir)
	second.pollEvery = 10 * time.Millisecond

	held, err := first.AcquireLock(context.Background(), "provision")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = second.AcquireLock(ctx, "provision")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, held.Release())

	again, err := second.AcquireLock(context.Background(), "provision")
	require.NoError(t, err)
	assert.NoError(t, again.Release())
}

func TestFileLockerWaits(t *testing.T) {
	l := NewFileLocker(t.TempDir())
	l.pollEvery = 10 * time.Millisecond

	held, err := l.AcquireLock(context.Background(), "k")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = held.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	next, err := l.AcquireLock(ctx, "k")
	require.NoError(t, err)
	assert.NoError(t, next.Release())
}

func TestFileLockerInvalidKey(t *testing.T) {
	l := NewFileLocker(t.TempDir())
	for _, key := range []string{"", "../x", `a\b`} {
		_, err := l.AcquireLock(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestNoOpLocker(t *testing.T) {
	l, err := NewNoOpLocker().AcquireLock(context.Background(), "anything")
	require.NoError(t, err)
	assert.NoError(t, l.Release())
}
