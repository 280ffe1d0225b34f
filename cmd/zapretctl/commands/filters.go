package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func NewFiltersCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Manage WinDivert filter fragments",
	}

	cmd.AddCommand(newFiltersListCommand(opts))
	cmd.AddCommand(newFiltersAddCommand(opts))
	cmd.AddCommand(newFiltersRemoveCommand(opts))
	cmd.AddCommand(newFiltersShowCommand(opts))
	return cmd
}

func newFiltersListCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured and stored filter fragments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(_ context.Context, app *App) error {
				files, err := app.Store.ListFilters()
				if err != nil {
					return err
				}
				stored := make(map[string]bool, len(files))
				for _, f := range files {
					stored[f] = true
				}

				tbl := newTable(cmd.OutOrStdout())
				tbl.AppendHeader([]any{"File", "Name", "Active", "Stored"})

				configured := make(map[string]bool)
				for _, f := range app.Config.Filters {
					configured[f.Filename] = true
					tbl.AppendRow([]any{f.Filename, f.Name, yesNo(f.Active), yesNo(stored[f.Filename])})
				}
				for _, f := range files {
					if !configured[f] {
						tbl.AppendRow([]any{f, "", "no", "yes"})
					}
				}

				tbl.Render()
				return nil
			})
		},
	}
}

func newFiltersAddCommand(opts *Options) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "add FILE",
		Short: "Store a filter fragment read from --from or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				var (
					content []byte
					err     error
				)
				if from != "" {
					content, err = os.ReadFile(from)
				} else {
					content, err = io.ReadAll(cmd.InOrStdin())
				}
				if err != nil {
					return fmt.Errorf("read filter content: %w", err)
				}

				if err := app.Store.SaveFilter(ctx, args[0], content); err != nil {
					return err
				}
				ok(cmd.OutOrStdout(), "filter %s saved", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "read the fragment from this file")
	return cmd
}

func newFiltersRemoveCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm FILE",
		Aliases: []string{"remove"},
		Short:   "Delete a stored filter fragment",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if err := app.Store.DeleteFilter(ctx, args[0]); err != nil {
					return err
				}
				ok(cmd.OutOrStdout(), "filter %s deleted", args[0])
				return nil
			})
		},
	}
}

func newFiltersShowCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show FILE",
		Short: "Print a stored filter fragment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(_ context.Context, app *App) error {
				content, err := app.Store.LoadFilter(args[0])
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(content)
				return err
			})
		},
	}
}
