package commands

import (
	"context"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maxdollinger/zapret.io/pkg/utils"
)

func NewHistoryCommand(opts *Options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent worker sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				if app.Journal == nil {
					return ErrJournalDisabled
				}

				sessions, err := app.Journal.ListSessions(ctx, limit)
				if err != nil {
					return err
				}

				tbl := newTable(cmd.OutOrStdout())
				tbl.AppendHeader([]any{"Session", "PID", "Origin", "Started", "Duration", "Args"})
				for _, s := range sessions {
					duration := "running"
					if s.EndedAt != nil {
						duration = s.EndedAt.Sub(s.StartedAt).String()
					}
					tbl.AppendRow([]any{
						utils.ShortID(s.ID),
						s.Pid,
						s.Origin,
						humanize.Time(s.StartedAt),
						duration,
						strings.Join(s.Args, " "),
					})
				}
				tbl.Render()
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions to show")
	return cmd
}
