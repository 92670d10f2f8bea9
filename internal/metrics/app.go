package metrics

import (
	"time"

	"github.com/notifyd/notifyd/internal/observability"
)

// Control-plane metric names following Prometheus conventions
const (
	RateLimitChecksTotal      = "ratelimit_checks_total"
	RateLimitStoreErrorsTotal = "ratelimit_store_errors_total"

	HealthCheckTotal       = "health_check_total"
	HealthCheckDuration    = "health_check_duration_ms"
	HealthTransitionsTotal = "health_transitions_total"
	ReadinessDegraded      = "readiness_degraded"

	MonitorFailuresTotal = "monitor_failures_total"
	MonitorRunning       = "monitor_running"

	ServerStartTime = "app_server_start_time_seconds"
)

// Rate limit check outcomes
const (
	RateLimitAllowed  = "allowed"
	RateLimitDenied   = "denied"
	RateLimitFailOpen = "fail_open"
)

// RecordRateLimitCheck counts one limiter decision.
func RecordRateLimitCheck(result string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		RateLimitChecksTotal,
		1,
		map[string]string{"result": result},
	)
}

// RecordRateLimitStoreError counts a shared store failure seen by the limiter.
// op is "read" or "write".
func RecordRateLimitStoreError(op string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		RateLimitStoreErrorsTotal,
		1,
		map[string]string{"op": op},
	)
}

// RecordHealthCheck records a fresh (non-cached) dependency probe.
func RecordHealthCheck(checkName string, status string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		HealthCheckTotal,
		1,
		map[string]string{
			"check":  checkName,
			"status": status,
		},
	)

	_ = observability.TelemetrySystem.Histogram(
		HealthCheckDuration,
		duration,
		map[string]string{
			"check": checkName,
		},
	)
}

// RecordHealthTransition counts a healthy<->unhealthy flip. direction is "down" or "up".
func RecordHealthTransition(checkName string, direction string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		HealthTransitionsTotal,
		1,
		map[string]string{
			"check":     checkName,
			"direction": direction,
		},
	)
}

// SetReadinessDegraded publishes the last computed readiness state as 0/1.
func SetReadinessDegraded(degraded bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	value := 0.0
	if degraded {
		value = 1
	}
	_ = observability.TelemetrySystem.Gauge(ReadinessDegraded, value, nil)
}

// RecordMonitorFailure counts a failed reconnect attempt.
func RecordMonitorFailure(dependency string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		MonitorFailuresTotal,
		1,
		map[string]string{"dependency": dependency},
	)
}

// SetMonitorRunning publishes whether the reconnect loop for dependency is active.
func SetMonitorRunning(dependency string, running bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	value := 0.0
	if running {
		value = 1
	}
	_ = observability.TelemetrySystem.Gauge(
		MonitorRunning,
		value,
		map[string]string{"dependency": dependency},
	)
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
}
