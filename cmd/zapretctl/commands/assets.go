package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maxdollinger/zapret.io/internal/manifest"
	"github.com/maxdollinger/zapret.io/internal/provision"
	"github.com/maxdollinger/zapret.io/internal/store"
)

func NewVerifyCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every asset is present and matches the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				ledger := app.Store.LoadLedger(ctx)
				if !app.Provisioner.Verify(ctx, app.Manifest, ledger) {
					return ErrAssetsStale
				}
				ok(cmd.OutOrStdout(), "all %d assets verified", app.Manifest.Len())
				return nil
			})
		},
	}
}

func NewDownloadCommand(opts *Options) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download missing or stale assets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()
				if dryRun {
					batch := app.Provisioner.Plan(ctx, app.Manifest, app.Store.LoadLedger(ctx))
					for _, a := range batch.Items {
						fmt.Fprintf(out, "%-8s %s\n", a.Category, a.Name)
					}
					fmt.Fprintf(out, "%d of %d assets need downloading\n", batch.Len(), app.Manifest.Len())
					return nil
				}
				return provisionWithProgress(ctx, app, out)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only print what would be downloaded")
	return cmd
}

// provisionWithProgress runs the batch in the background and renders its events.
func provisionWithProgress(ctx context.Context, app *App, out io.Writer) error {
	started := time.Now()
	sink := make(chan provision.Event, 64)
	results := app.Provisioner.Run(ctx, app.Manifest, sink)

	for {
		select {
		case ev := <-sink:
			renderEvent(out, ev)
		case res := <-results:
			for drained := false; !drained; {
				select {
				case ev := <-sink:
					renderEvent(out, ev)
				default:
					drained = true
				}
			}
			if res.Err != nil {
				return res.Err
			}
			fmt.Fprintf(out, "ledger holds %d entries, took %s\n", len(res.Ledger), time.Since(started).Round(time.Millisecond))
			return nil
		}
	}
}

func NewAssetsCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "assets",
		Short: "List the manifest with on-disk state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				ledger := app.Store.LoadLedger(ctx)
				tbl := newTable(cmd.OutOrStdout())
				tbl.AppendHeader([]any{"Category", "Name", "Size", "State"})

				var total uint64
				assets := app.Manifest.Assets()
				for i, e := range app.Store.Inspect(app.Manifest) {
					size := "-"
					if e.Present {
						size = humanize.Bytes(uint64(e.Size))
						total += uint64(e.Size)
					}
					tbl.AppendRow([]any{e.Category, e.Name, size, assetState(app.Store, assets[i], e, ledger)})
				}

				tbl.AppendFooter([]any{"", fmt.Sprintf("%d assets", len(assets)), humanize.Bytes(total), ""})
				tbl.Render()
				return nil
			})
		},
	}
}

func assetState(s *store.Store, a manifest.Asset, e store.Entry, ledger store.Ledger) string {
	if !e.Present {
		return "missing"
	}
	if !a.TrackHash {
		return "present"
	}
	want, ok := ledger[a.Name]
	if !ok {
		return "unverified"
	}
	got, err := store.ComputeDigest(s.Path(a))
	if err != nil {
		return "unreadable"
	}
	if got.Encoded() != want {
		return "stale"
	}
	return "verified"
}
