//go:build windows

package privileged

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// Teardown stops and deletes the driver service through the service control manager.
func (r *Reconciler) Teardown(ctx context.Context) error {
	return r.teardown(ctx, connectSCM)
}

type scm struct {
	m *mgr.Mgr
}

func connectSCM() (serviceManager, error) {
	h, err := windows.OpenSCManager(nil, nil, windows.SC_MANAGER_CONNECT)
	if err != nil {
		return nil, err
	}
	return &scm{m: &mgr.Mgr{Handle: h}}, nil
}

func (c *scm) OpenService(name string) (driverService, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	h, err := windows.OpenService(c.m.Handle, p, windows.SERVICE_STOP|windows.SERVICE_QUERY_STATUS|windows.DELETE)
	if err != nil {
		return nil, classify(err)
	}
	return &service{s: &mgr.Service{Name: name, Handle: h}}, nil
}

func (c *scm) Close() error {
	return c.m.Disconnect()
}

type service struct {
	s *mgr.Service
}

func (s *service) Stop() error {
	_, err := s.s.Control(svc.Stop)
	return classify(err)
}

func (s *service) Delete() error {
	return classify(s.s.Delete())
}

func (s *service) Close() error {
	return s.s.Close()
}

func classify(err error) error {
	if err != nil && absent(err) {
		return fmt.Errorf("%w: %v", errServiceAbsent, err)
	}
	return err
}

func absent(err error) bool {
	return errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST) ||
		errors.Is(err, windows.ERROR_SERVICE_NOT_ACTIVE) ||
		errors.Is(err, windows.ERROR_SERVICE_MARKED_FOR_DELETE)
}

func (r *Reconciler) Elevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

func (r *Reconciler) TCPTimestampsEnabled(ctx context.Context) (bool, error) {
	out, err := netsh(ctx, "interface", "tcp", "show", "global")
	if err != nil {
		return false, fmt.Errorf("%w: query tcp globals: %v", ErrPrivilegedResource, err)
	}
	return timestampsEnabled(string(out)), nil
}

func (r *Reconciler) EnableTCPTimestamps(ctx context.Context) error {
	if _, err := netsh(ctx, "interface", "tcp", "set", "global", "timestamps=enabled"); err != nil {
		return fmt.Errorf("%w: enable tcp timestamps: %v", ErrPrivilegedResource, err)
	}
	r.logger.InfoContext(ctx, "tcp timestamps enabled")
	return nil
}

func netsh(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "netsh", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
	return cmd.Output()
}
