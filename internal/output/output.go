package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notifyd/notifyd/internal/health"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders readiness reports.
type Formatter interface {
	FormatReadiness(report health.Readiness) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// FormatReadiness renders report using the requested format.
func FormatReadiness(format Format, report health.Readiness) (string, error) {
	return NewFormatter(format).FormatReadiness(report)
}

// dependencyNames returns the report's dependency names in a stable order.
func dependencyNames(report health.Readiness) []string {
	names := make([]string, 0, len(report.Dependencies))
	for name := range report.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func responseTime(rec health.Record) string {
	if rec.ResponseTimeMS == nil {
		return "-"
	}
	return fmt.Sprintf("%.1fms", *rec.ResponseTimeMS)
}

func summary(report health.Readiness) string {
	healthy := 0
	for _, rec := range report.Dependencies {
		if rec.Healthy {
			healthy++
		}
	}
	return fmt.Sprintf("%s (%d/%d healthy)", report.Status, healthy, len(report.Dependencies))
}
