// Package supervisor tracks the single worker process by pid.
//
// The supervisor never owns the process: the tracked pid is only a key into
// the OS process table and may go stale at any time.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/maxdollinger/zapret.io/internal/metrics"
)

type Config struct {
	// Executable is the absolute path of the worker binary.
	Executable string
	// LogPath receives worker output, empty discards it.
	LogPath  string
	Control  ProcessControl
	Teardown Teardowner
	Journal  Journal
	Metrics  *metrics.Metrics
}

type Supervisor struct {
	pid   atomic.Int64
	state atomic.Int32

	executable string
	logPath    string
	control    ProcessControl
	teardown   Teardowner
	journal    Journal
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func New(cfg Config) *Supervisor {
	return &Supervisor{
		executable: cfg.Executable,
		logPath:    cfg.LogPath,
		control:    cfg.Control,
		teardown:   cfg.Teardown,
		journal:    cfg.Journal,
		metrics:    cfg.Metrics,
		logger:     slog.Default(),
	}
}

// PID returns the tracked pid, 0 when nothing is tracked.
func (s *Supervisor) PID() int {
	return int(s.pid.Load())
}

func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Start launches the worker and tracks its pid, replacing any tracked pid.
func (s *Supervisor) Start(ctx context.Context, extraArgs []string, tcpPorts, udpPorts string) (int, error) {
	if _, err := os.Stat(s.executable); err != nil {
		s.logger.WarnContext(ctx, "worker executable missing", "path", s.executable, "error", err)
		return 0, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(s.executable))
	}

	prev := s.State()
	s.state.Store(int32(StateStarting))

	s.teardownDriver(ctx)

	args := Args(extraArgs, tcpPorts, udpPorts)
	s.logger.InfoContext(ctx, "starting worker", "path", s.executable, "args", args)

	pid, err := s.control.Spawn(s.executable, args, s.logPath)
	if err != nil {
		s.state.Store(int32(prev))
		s.logger.ErrorContext(ctx, "worker launch failed", "error", err)
		return 0, fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}

	if old := s.pid.Swap(int64(pid)); old != 0 && int(old) != pid {
		s.logger.WarnContext(ctx, "replacing tracked worker", "old_pid", old, "pid", pid)
	}
	s.state.Store(int32(StateRunning))
	s.metrics.Worker(metrics.EventStart)
	s.metrics.WorkerRunning(true)
	s.record(ctx, pid, args, OriginSpawn)

	s.logger.InfoContext(ctx, "worker started", "pid", pid)
	return pid, nil
}

// Stop kills the tracked worker and then tears the driver down.
// With nothing tracked only the teardown runs and Stop succeeds.
func (s *Supervisor) Stop(ctx context.Context) error {
	pid := s.pid.Load()
	if pid == 0 {
		s.logger.DebugContext(ctx, "no worker tracked")
		s.teardownDriver(ctx)
		return nil
	}

	s.state.Store(int32(StateStopping))
	s.logger.InfoContext(ctx, "stopping worker", "pid", pid)

	if err := s.control.Kill(int(pid)); err != nil {
		s.state.Store(int32(StateRunning))
		s.logger.ErrorContext(ctx, "worker kill failed", "pid", pid, "error", err)
		return fmt.Errorf("%w: pid %d: %v", ErrTerminationFailed, pid, err)
	}

	// a concurrent Start may already track a new pid
	if s.pid.CompareAndSwap(pid, 0) {
		s.state.Store(int32(StateIdle))
		s.metrics.WorkerRunning(false)
	}
	s.metrics.Worker(metrics.EventStop)

	if s.journal != nil {
		if err := s.journal.SessionEnded(ctx, int(pid)); err != nil {
			s.logger.WarnContext(ctx, "journal session end", "pid", pid, "error", err)
		}
	}

	if s.teardown != nil {
		if err := s.teardown.Teardown(ctx); err != nil {
			return fmt.Errorf("worker stopped, driver teardown failed: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "worker stopped", "pid", pid)
	return nil
}

// IsRunning reports whether the tracked pid is alive.
func (s *Supervisor) IsRunning() bool {
	pid := s.pid.Load()
	if pid == 0 {
		return false
	}
	return s.control.Alive(int(pid))
}

// RecoverOrphan adopts the first process named like the worker executable.
// It cannot tell a worker started by a previous run from an unrelated
// process with the same image name.
func (s *Supervisor) RecoverOrphan(ctx context.Context) (int, bool) {
	name := filepath.Base(s.executable)

	pids, err := s.control.FindByName(ctx, name)
	if err != nil {
		s.logger.WarnContext(ctx, "process table scan failed", "name", name, "error", err)
		return 0, false
	}
	if len(pids) == 0 {
		return 0, false
	}

	pid := pids[0]
	if len(pids) > 1 {
		s.logger.WarnContext(ctx, "multiple worker processes found, adopting first", "pids", pids)
	}

	s.pid.Store(int64(pid))
	s.state.Store(int32(StateRunning))
	s.metrics.Worker(metrics.EventRecover)
	s.metrics.WorkerRunning(true)
	s.record(ctx, pid, nil, OriginRecover)

	s.logger.InfoContext(ctx, "recovered worker", "pid", pid)
	return pid, true
}

func (s *Supervisor) teardownDriver(ctx context.Context) {
	if s.teardown == nil {
		return
	}
	if err := s.teardown.Teardown(ctx); err != nil {
		s.logger.WarnContext(ctx, "driver teardown failed", "error", err)
	}
}

func (s *Supervisor) record(ctx context.Context, pid int, args []string, origin string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.SessionStarted(ctx, pid, args, origin); err != nil {
		s.logger.WarnContext(ctx, "journal session start", "pid", pid, "error", err)
	}
}
