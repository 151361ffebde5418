package report

import (
	"io"

	"jobs-etl/internal/uploader"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderSummary prints one row per outcome followed by the run totals.
func RenderSummary(out io.Writer, outcomes []uploader.Outcome) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"#", "Title", "Job URL", "Outcome"})

	for _, o := range outcomes {
		t.AppendRow(table.Row{o.Index, o.Title, o.URL, o.String()})
	}

	s := uploader.Summarize(outcomes)
	t.AppendFooter(table.Row{"", "Total", s.Total, ""})
	t.AppendFooter(table.Row{"", "Inserted", s.Inserted, ""})
	t.AppendFooter(table.Row{"", "Skipped", s.Skipped, ""})
	t.AppendFooter(table.Row{"", "Failed", s.Failed, ""})

	t.SetStyle(table.StyleRounded)
	t.Render()
}
