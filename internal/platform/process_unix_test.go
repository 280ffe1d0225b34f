//go:build unix

package platform

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeWorker(t *testing.T, name string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh available")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho started \"$@\"\nwhile :; do sleep 1; done\n"), 0o755))
	return path
}

func TestSpawnKill(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns processes")
	}

	p := NewProcess()
	exe := fakeWorker(t, "worker-test.sh")
	logPath := filepath.Join(t.TempDir(), "worker.log")

	pid, err := p.Spawn(exe, []string{"--wf-tcp=80"}, logPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Kill(pid) })

	assert.True(t, p.Alive(pid))

	require.Eventually(t, func() bool {
		data, _ := os.ReadFile(logPath)
		return strings.Contains(string(data), "started --wf-tcp=80")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, p.Kill(pid))
	require.Eventually(t, func() bool { return !p.Alive(pid) }, 5*time.Second, 20*time.Millisecond)

	// killing a gone process is fine
	assert.NoError(t, p.Kill(pid))
}

func TestFindByName(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns processes")
	}
	if _, err := os.Stat("/proc/self/comm"); err != nil {
		t.Skip("no procfs")
	}

	p := NewProcess()
	exe := fakeWorker(t, "winws-find.exe")

	pid, err := p.Spawn(exe, nil, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Kill(pid) })

	require.Eventually(t, func() bool {
		pids, err := p.FindByName(context.Background(), "winws-find.exe")
		return err == nil && len(pids) == 1 && pids[0] == pid
	}, 5*time.Second, 20*time.Millisecond)

	pids, err := p.FindByName(context.Background(), "no-such-worker.exe")
	require.NoError(t, err)
	assert.Empty(t, pids)
}

func TestAliveInvalidPID(t *testing.T) {
	p := NewProcess()
	assert.False(t, p.Alive(0))
	assert.False(t, p.Alive(-1))
}
