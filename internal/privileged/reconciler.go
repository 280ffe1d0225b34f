// Package privileged reconciles host state the worker depends on but does
// not own: the WinDivert kernel driver service and the TCP timestamp option.
package privileged

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	ErrPrivilegedResource = errors.New("privileged resource operation failed")

	errServiceAbsent = errors.New("service not installed")
)

// DriverService is the service name the packet filter driver registers.
const DriverService = "WinDivert"

type Reconciler struct {
	service string
	logger  *slog.Logger
}

func New() *Reconciler {
	return &Reconciler{
		service: DriverService,
		logger:  slog.Default(),
	}
}

type serviceManager interface {
	// OpenService fails with errServiceAbsent when name is not installed.
	OpenService(name string) (driverService, error)
	Close() error
}

type driverService interface {
	Stop() error
	Delete() error
	Close() error
}

// teardown stops and deletes the driver service. Only a failed delete is
// reported, earlier steps are logged and skipped. An absent service is success.
func (r *Reconciler) teardown(ctx context.Context, connect func() (serviceManager, error)) error {
	m, err := connect()
	if err != nil {
		r.logger.WarnContext(ctx, "connect service manager failed, skipping driver teardown", "error", err)
		return nil
	}
	defer m.Close()

	s, err := m.OpenService(r.service)
	if err != nil {
		if errors.Is(err, errServiceAbsent) {
			r.logger.DebugContext(ctx, "driver service not installed", "service", r.service)
			return nil
		}
		r.logger.WarnContext(ctx, "open driver service failed, skipping teardown", "service", r.service, "error", err)
		return nil
	}
	defer s.Close()

	if err := s.Stop(); err != nil && !errors.Is(err, errServiceAbsent) {
		r.logger.WarnContext(ctx, "driver service stop failed", "service", r.service, "error", err)
	}

	if err := s.Delete(); err != nil && !errors.Is(err, errServiceAbsent) {
		return fmt.Errorf("%w: delete service %s: %v", ErrPrivilegedResource, r.service, err)
	}

	r.logger.InfoContext(ctx, "driver service removed", "service", r.service)
	return nil
}

// timestampsEnabled scans `netsh interface tcp show global` output.
func timestampsEnabled(output string) bool {
	for _, line := range strings.Split(strings.ToLower(output), "\n") {
		if strings.Contains(line, "rfc 1323") && strings.Contains(line, "enabled") {
			return true
		}
	}
	return false
}
