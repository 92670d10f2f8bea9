package output

import (
	"encoding/json"

	"github.com/notifyd/notifyd/internal/health"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatReadiness renders a readiness report as JSON.
func (f *JSONFormatter) FormatReadiness(report health.Readiness) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
