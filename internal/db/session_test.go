package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJournal(t *testing.T) *Journal {
	t.Helper()
	sqlDB, err := NewDB(filepath.Join(t.TempDir(), "state", "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, InitSchema(context.Background(), sqlDB))
	// idempotent
	require.NoError(t, InitSchema(context.Background(), sqlDB))
	return NewJournal(sqlDB)
}

func TestJournalLifecycle(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)

	require.NoError(t, j.SessionStarted(ctx, 100, []string{"--wf-tcp=80", "--wf-udp=443"}, "spawn"))
	require.NoError(t, j.SessionEnded(ctx, 100))
	require.NoError(t, j.SessionStarted(ctx, 200, nil, "recover"))

	sessions, err := j.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	recovered, spawned := sessions[0], sessions[1]
	assert.Equal(t, 200, recovered.Pid)
	assert.Equal(t, "recover", recovered.Origin)
	assert.Empty(t, recovered.Args)
	assert.Nil(t, recovered.EndedAt)

	assert.Equal(t, 100, spawned.Pid)
	assert.Equal(t, []string{"--wf-tcp=80", "--wf-udp=443"}, spawned.Args)
	require.NotNil(t, spawned.EndedAt)
	assert.False(t, spawned.EndedAt.Before(spawned.StartedAt))
}

func TestJournalReusedPIDClosesOpenSession(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)

	require.NoError(t, j.SessionStarted(ctx, 42, nil, "spawn"))
	require.NoError(t, j.SessionStarted(ctx, 42, nil, "spawn"))

	sessions, err := j.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	var open int
	for _, s := range sessions {
		if s.EndedAt == nil {
			open++
		}
	}
	assert.Equal(t, 1, open)
}

func TestJournalEndUnknownPID(t *testing.T) {
	j := newJournal(t)
	assert.NoError(t, j.SessionEnded(context.Background(), 12345))
}

func TestListSessionsLimit(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)
	for pid := 1; pid <= 5; pid++ {
		require.NoError(t, j.SessionStarted(ctx, pid, nil, "spawn"))
	}

	sessions, err := j.ListSessions(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
}

func TestJournalRecoverKeepsOpenSession(t *testing.T) {
	ctx := context.Background()
	j := newJournal(t)

	require.NoError(t, j.SessionStarted(ctx, 7, []string{"--wf-tcp=80"}, "spawn"))
	require.NoError(t, j.SessionStarted(ctx, 7, nil, "recover"))
	require.NoError(t, j.SessionStarted(ctx, 7, nil, "recover"))

	sessions, err := j.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "spawn", sessions[0].Origin)
	assert.Nil(t, sessions[0].EndedAt)

	require.NoError(t, j.SessionEnded(ctx, 7))
	require.NoError(t, j.SessionStarted(ctx, 7, nil, "recover"))

	sessions, err = j.ListSessions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}
