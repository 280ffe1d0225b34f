package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func NewProbeCommand(opts *Options) *cobra.Command {
	var enableTimestamps bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check elevation and the TCP timestamp option",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()
				r := app.Reconciler

				if r.Elevated() {
					ok(out, "elevated:        yes")
				} else {
					fail(out, "elevated:        no")
				}

				enabled, err := r.TCPTimestampsEnabled(ctx)
				if err != nil {
					return err
				}
				if enabled {
					ok(out, "tcp timestamps:  enabled")
					return nil
				}

				if !enableTimestamps {
					warn(out, "tcp timestamps:  disabled, rerun with --enable-timestamps")
					return nil
				}

				if err := r.EnableTCPTimestamps(ctx); err != nil {
					return err
				}
				fmt.Fprintln(out, "tcp timestamps:  enabled now")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&enableTimestamps, "enable-timestamps", false, "enable the TCP timestamp option when it is off")
	return cmd
}
