//go:build !windows

package privileged

import "context"

// Teardown is a no-op, the driver only exists on Windows.
func (r *Reconciler) Teardown(ctx context.Context) error {
	r.logger.DebugContext(ctx, "no driver service on this platform", "service", r.service)
	return nil
}

func (r *Reconciler) Elevated() bool {
	return true
}

func (r *Reconciler) TCPTimestampsEnabled(context.Context) (bool, error) {
	return true, nil
}

func (r *Reconciler) EnableTCPTimestamps(context.Context) error {
	return nil
}
