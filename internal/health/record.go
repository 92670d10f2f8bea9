// Package health tracks the health of external dependencies: memoized probes,
// background reconnect monitors and the liveness/readiness aggregation served
// to orchestrators.
package health

import "time"

// Status is the coarse health classification of a dependency.
type Status string

const (
	StatusHealthy Status = "healthy"
	// StatusDegraded and StatusTimeout are reserved; probes never produce them.
	StatusDegraded     Status = "degraded"
	StatusUnhealthy    Status = "unhealthy"
	StatusTimeout      Status = "timeout"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Record is the result of one dependency check. Records are values and are
// replaced wholesale, never mutated.
type Record struct {
	Healthy        bool      `json:"healthy"`
	Status         Status    `json:"status"`
	Message        string    `json:"message"`
	ResponseTimeMS *float64  `json:"response_time_ms"`
	CheckedAt      time.Time `json:"checked_at"`
}

// newRecord is the only constructor, so Healthy always matches Status.
func newRecord(status Status, message string, responseTimeMS *float64, checkedAt time.Time) Record {
	return Record{
		Healthy:        status == StatusHealthy,
		Status:         status,
		Message:        message,
		ResponseTimeMS: responseTimeMS,
		CheckedAt:      checkedAt,
	}
}
