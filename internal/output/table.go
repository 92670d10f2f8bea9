package output

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/notifyd/notifyd/internal/health"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatReadiness renders a readiness report as a table.
func (f *TableFormatter) FormatReadiness(report health.Readiness) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Dependency", "Status", "Latency", "Message"})

	for _, name := range dependencyNames(report) {
		rec := report.Dependencies[name]
		t.AppendRow(table.Row{
			name,
			string(rec.Status),
			responseTime(rec),
			rec.Message,
		})
	}

	t.AppendFooter(table.Row{"", summary(report), "", ""})
	return t.Render(), nil
}
