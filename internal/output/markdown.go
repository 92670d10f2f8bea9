package output

import (
	"fmt"
	"strings"

	"github.com/notifyd/notifyd/internal/health"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatReadiness renders a readiness report as Markdown.
func (f *MarkdownFormatter) FormatReadiness(report health.Readiness) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Dependency health\n\n")
	sb.WriteString("| Dependency | Status | Latency | Message |\n")
	sb.WriteString("|------------|--------|---------|---------|\n")

	for _, name := range dependencyNames(report) {
		rec := report.Dependencies[name]
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeMarkdownCell(name),
			escapeMarkdownCell(string(rec.Status)),
			responseTime(rec),
			escapeMarkdownCell(rec.Message),
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Readiness**: %s\n", summary(report)))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
