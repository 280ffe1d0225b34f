package commands

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxdollinger/zapret.io/pkg/utils"
)

func NewLogsCommand(opts *Options) *cobra.Command {
	var (
		follow bool
		tail   bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the worker output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			cmd.SetContext(ctx)

			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				tailOpts := utils.TailOptions{FromEnd: tail}
				if !follow {
					tailOpts.Idle = 200 * time.Millisecond
				}
				return utils.TailPoll(ctx, app.Store.WorkerLogPath(), cmd.OutOrStdout(), tailOpts)
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new output until interrupted")
	cmd.Flags().BoolVar(&tail, "new", false, "skip output written before the command started")
	return cmd
}
