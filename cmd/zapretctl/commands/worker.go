package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxdollinger/zapret.io/internal/config"
	"github.com/maxdollinger/zapret.io/internal/manifest"
	"github.com/maxdollinger/zapret.io/internal/strategy"
)

type startFlags struct {
	tcp          string
	udp          string
	strategyFile string
	force        bool
}

func (f *startFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tcp, "tcp", "", "TCP ports for --wf-tcp (default from config)")
	cmd.Flags().StringVar(&f.udp, "udp", "", "UDP ports for --wf-udp (default from config)")
	cmd.Flags().StringVar(&f.strategyFile, "strategy-file", "", "file with worker arguments, whitespace separated")
	cmd.Flags().BoolVar(&f.force, "force", false, "stop an already running worker first")
}

// startWorker adopts or refuses a running worker, then launches a new one.
func startWorker(ctx context.Context, app *App, flags startFlags, extra []string, out io.Writer) (int, error) {
	cfg := app.Config
	tcp, udp := cfg.Ports.TCP, cfg.Ports.UDP
	if flags.tcp != "" {
		tcp = flags.tcp
	}
	if flags.udp != "" {
		udp = flags.udp
	}
	if err := config.ValidatePorts(tcp); err != nil {
		return 0, fmt.Errorf("tcp ports: %w", err)
	}
	if err := config.ValidatePorts(udp); err != nil {
		return 0, fmt.Errorf("udp ports: %w", err)
	}

	if pid, found := app.Supervisor.RecoverOrphan(ctx); found {
		if !flags.force {
			return 0, fmt.Errorf("%w: pid %d", ErrAlreadyRunning, pid)
		}
		if err := app.Supervisor.Stop(ctx); err != nil {
			return 0, err
		}
	}

	if !app.Reconciler.Elevated() {
		warn(out, "not running elevated, the driver will fail to load")
	}

	userArgs, err := readStrategy(flags.strategyFile)
	if err != nil {
		return 0, err
	}

	args, err := strategy.Build(strategy.Options{
		Filters:    cfg.Filters,
		FiltersDir: app.Store.Dir(manifest.CategoryFilters),
		ListMode:   cfg.ListMode,
		ListsDir:   app.Store.Dir(manifest.CategoryLists),
		Strategy:   append(userArgs, extra...),
	})
	if err != nil {
		return 0, err
	}

	return app.Supervisor.Start(ctx, args, tcp, udp)
}

func readStrategy(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy: %w", err)
	}
	return strings.Fields(string(data)), nil
}

func NewStartCommand(opts *Options) *cobra.Command {
	var flags startFlags

	cmd := &cobra.Command{
		Use:   "start [-- worker args...]",
		Short: "Start the worker in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				pid, err := startWorker(ctx, app, flags, args, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				ok(cmd.OutOrStdout(), "worker started, pid %d", pid)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func NewStopCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the worker and remove the driver service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				pid, _ := app.Supervisor.RecoverOrphan(ctx)
				if err := app.Supervisor.Stop(ctx); err != nil {
					return err
				}
				if pid == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no worker running")
					return nil
				}
				ok(cmd.OutOrStdout(), "worker %d stopped", pid)
				return nil
			})
		},
	}
}

func NewRecoverCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Find a worker left over from a previous run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				pid, found := app.Supervisor.RecoverOrphan(ctx)
				if !found {
					fmt.Fprintln(cmd.OutOrStdout(), "no worker found")
					return nil
				}
				ok(cmd.OutOrStdout(), "adopted worker pid %d", pid)
				return nil
			})
		},
	}
}

func NewStatusCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show worker, asset and host state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()

				if pid, found := app.Supervisor.RecoverOrphan(ctx); found && app.Supervisor.IsRunning() {
					ok(out, "worker:          running (pid %d)", pid)
				} else {
					fail(out, "worker:          stopped")
				}

				if app.Provisioner.Verify(ctx, app.Manifest, app.Store.LoadLedger(ctx)) {
					ok(out, "assets:          verified")
				} else {
					warn(out, "assets:          missing or stale")
				}

				fmt.Fprintf(out, "elevated:        %s\n", yesNo(app.Reconciler.Elevated()))
				enabled, err := app.Reconciler.TCPTimestampsEnabled(ctx)
				if err != nil {
					warn(out, "tcp timestamps:  unknown (%v)", err)
				} else {
					fmt.Fprintf(out, "tcp timestamps:  %s\n", yesNo(enabled))
				}
				fmt.Fprintf(out, "root:            %s\n", app.Store.Root())
				return nil
			})
		},
	}
}

func NewRunCommand(opts *Options) *cobra.Command {
	var (
		flags    startFlags
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run [-- worker args...]",
		Short: "Provision assets, run the worker in the foreground and stop it on exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				return runSession(ctx, app, flags, interval, args, cmd.OutOrStdout())
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&interval, "check-interval", 2*time.Second, "worker liveness check interval")
	return cmd
}

func runSession(ctx context.Context, app *App, flags startFlags, interval time.Duration, extra []string, out io.Writer) error {
	if addr := app.Config.Metrics.Addr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.Metrics.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				warn(out, "metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := provisionWithProgress(ctx, app, out); err != nil {
		return err
	}

	pid, err := startWorker(ctx, app, flags, extra, out)
	if err != nil {
		return err
	}
	ok(out, "worker running, pid %d, press Ctrl+C to stop", pid)

	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := app.Supervisor.Stop(context.WithoutCancel(ctx)); err != nil {
				return err
			}
			ok(out, "worker stopped")
			return nil
		case <-ticker.C:
			if !app.Supervisor.IsRunning() {
				// clears the handle and the driver
				stopErr := app.Supervisor.Stop(context.WithoutCancel(ctx))
				if stopErr != nil {
					return fmt.Errorf("%w: pid %d: %v", ErrWorkerExited, pid, stopErr)
				}
				return fmt.Errorf("%w: pid %d, see %s", ErrWorkerExited, pid, app.Store.WorkerLogPath())
			}
		}
	}
}
