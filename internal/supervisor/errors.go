package supervisor

import "errors"

var (
	ErrNotFound          = errors.New("worker executable not found")
	ErrLaunchFailed      = errors.New("failed to launch worker")
	ErrTerminationFailed = errors.New("failed to terminate worker")
)
