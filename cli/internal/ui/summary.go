package ui

import (
	"fmt"
	"io"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/cli/internal/execution"
	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// RunSummary describes one finished code run for the terminal.
type RunSummary struct {
	File     string
	Language protocol.Language
	Result   execution.Result
}

// RunSummaryView renders the run metrics as a table followed by the
// program output.
func RunSummaryView(summary RunSummary) string {
	status := IconSuccess + " " + summary.Result.Status
	if !summary.Result.Success {
		status = IconError + " " + summary.Result.Status
	}

	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgHiCyan, text.Bold}
	t.SetTitle("Run Summary")
	t.AppendHeader(prettytable.Row{"Metric", "Value"})
	t.AppendRows([]prettytable.Row{
		{"File", summary.File},
		{"Language", string(summary.Language)},
		{"Status", status},
		{"Duration", formatDuration(summary.Result.Duration)},
	})

	return fmt.Sprintf("%s\n\n%s\n", t.Render(), summary.Result.Output())
}

func RenderRunSummary(w io.Writer, summary RunSummary) {
	fmt.Fprintln(w, RunSummaryView(summary))
}
