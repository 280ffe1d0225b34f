// Package commands implements the zapretctl subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maxdollinger/zapret.io/internal/config"
	"github.com/maxdollinger/zapret.io/internal/db"
	"github.com/maxdollinger/zapret.io/internal/manifest"
	"github.com/maxdollinger/zapret.io/internal/metrics"
	"github.com/maxdollinger/zapret.io/internal/platform"
	"github.com/maxdollinger/zapret.io/internal/privileged"
	"github.com/maxdollinger/zapret.io/internal/provision"
	"github.com/maxdollinger/zapret.io/internal/store"
	"github.com/maxdollinger/zapret.io/internal/supervisor"
	"github.com/maxdollinger/zapret.io/pkg/lock"
)

var (
	ErrAssetsStale     = errors.New("assets missing or stale, run zapretctl download")
	ErrAlreadyRunning  = errors.New("worker already running")
	ErrJournalDisabled = errors.New("session journal is disabled")
	ErrWorkerExited    = errors.New("worker exited unexpectedly")
)

// Options holds the persistent flags and the loaded configuration.
type Options struct {
	ConfigPath string
	Verbose    bool

	// LogOutput receives log records, stderr when nil.
	LogOutput io.Writer

	cfg *config.Config
}

// Setup loads the configuration and installs the default logger.
func (o *Options) Setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return err
	}
	o.cfg = cfg

	out := o.LogOutput
	if out == nil {
		out = os.Stderr
	}
	slog.SetDefault(newLogger(out, cfg.Logging, o.Verbose))
	return nil
}

func newLogger(w io.Writer, cfg config.LoggingConfig, verbose bool) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// App wires the components for one command invocation.
type App struct {
	Config      *config.Config
	Store       *store.Store
	Manifest    manifest.Manifest
	Metrics     *metrics.Metrics
	Reconciler  *privileged.Reconciler
	Provisioner *provision.Provisioner
	Supervisor  *supervisor.Supervisor
	// Journal is nil when the journal is disabled.
	Journal *db.Journal

	closers []func() error
}

func (o *Options) App(ctx context.Context) (*App, error) {
	if o.cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	cfg := o.cfg

	m := manifest.Default()
	if cfg.ManifestFile != "" {
		loaded, err := manifest.Load(cfg.ManifestFile)
		if err != nil {
			return nil, err
		}
		m = loaded
	}

	app := &App{
		Config:     cfg,
		Store:      store.New(cfg.RootDir),
		Manifest:   m,
		Metrics:    metrics.New(),
		Reconciler: privileged.New(),
	}

	var journal supervisor.Journal
	if cfg.Journal.Enabled {
		sqlDB, err := db.NewDB(cfg.JournalPath())
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, sqlDB.Close)

		if err := db.InitSchema(ctx, sqlDB); err != nil {
			return nil, errors.Join(err, app.Close())
		}
		app.Journal = db.NewJournal(sqlDB)
		journal = app.Journal
	}

	app.Provisioner = provision.New(app.Store, provision.Config{
		Timeout:   cfg.Download.Timeout,
		UserAgent: cfg.Download.UserAgent,
		Teardown:  app.Reconciler,
		Metrics:   app.Metrics,
		Locker:    lock.NewFileLocker(cfg.RootDir),
	})

	app.Supervisor = supervisor.New(supervisor.Config{
		Executable: app.Store.WorkerPath(),
		LogPath:    app.Store.WorkerLogPath(),
		Control:    platform.NewProcess(),
		Teardown:   app.Reconciler,
		Journal:    journal,
		Metrics:    app.Metrics,
	})

	return app, nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// withApp runs fn with a wired App and closes it afterwards.
func withApp(cmd *cobra.Command, opts *Options, fn func(ctx context.Context, app *App) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := opts.App(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close: %w", cerr))
		}
	}()

	return fn(ctx, app)
}
