// Package platform implements process control on top of the native OS APIs.
package platform

import (
	"log/slog"
	"os"
)

// Process controls OS processes by pid. It never keeps handles open
// between calls.
type Process struct {
	self   int
	logger *slog.Logger
}

func NewProcess() *Process {
	return &Process{
		self:   os.Getpid(),
		logger: slog.Default(),
	}
}

func openLog(logPath string) (*os.File, error) {
	if logPath == "" {
		return nil, nil
	}
	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
