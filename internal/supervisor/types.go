package supervisor

import "context"

type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// ProcessControl is the OS process table seen through pids.
type ProcessControl interface {
	// Spawn starts path detached from the caller without a console window
	// and without a shell. Output goes to logPath when it is not empty.
	Spawn(path string, args []string, logPath string) (int, error)

	// Kill forcibly terminates pid. A pid that no longer exists is not an error.
	Kill(pid int) error

	// Alive reports whether pid exists. Lookup failures count as not alive.
	Alive(pid int) bool

	// FindByName lists pids whose image name equals name, in table order.
	FindByName(ctx context.Context, name string) ([]int, error)
}

// Teardowner clears stale packet filter driver state.
type Teardowner interface {
	Teardown(ctx context.Context) error
}

// Journal records worker sessions.
type Journal interface {
	SessionStarted(ctx context.Context, pid int, args []string, origin string) error
	SessionEnded(ctx context.Context, pid int) error
}

// Session origins.
const (
	OriginSpawn   = "spawn"
	OriginRecover = "recover"
)
