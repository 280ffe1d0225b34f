package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/maxdollinger/zapret.io/internal/provision"
)

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	return tbl
}

func ok(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen).Fprintf(w, format+"\n", args...)
}

func warn(w io.Writer, format string, args ...any) {
	color.New(color.FgYellow).Fprintf(w, format+"\n", args...)
}

func fail(w io.Writer, format string, args ...any) {
	color.New(color.FgRed).Fprintf(w, format+"\n", args...)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func renderEvent(w io.Writer, ev provision.Event) {
	switch e := ev.(type) {
	case provision.BatchStart:
		if e.Total == 0 {
			ok(w, "all assets up to date")
			return
		}
		fmt.Fprintf(w, "downloading %d assets\n", e.Total)
	case provision.ItemProgress:
		fmt.Fprintf(w, "[%d/%d] %-8s %s\n", e.Current, e.Total, e.Phase, e.Name)
	case provision.BatchError:
		fail(w, "download failed: %s", e.Message)
	case provision.BatchComplete:
		ok(w, "done")
	}
}
