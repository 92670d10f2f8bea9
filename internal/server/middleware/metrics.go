package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/notifyd/notifyd/internal/observability"
	"github.com/notifyd/notifyd/internal/ratelimit"
)

// Outcomes attached to every request metric.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeUnavailable = "unavailable"
	OutcomeClientError = "client_error"
	OutcomeServerError = "server_error"
)

// statusRecorder captures the status code and response size.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.written += int64(n)
	return n, err
}

// requestOutcome classifies a response status. 429 and 503 get their own
// outcome so rejected traffic and degraded readiness can be told apart from
// ordinary failures.
func requestOutcome(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return OutcomeRateLimited
	case status == http.StatusServiceUnavailable:
		return OutcomeUnavailable
	case status >= 500:
		return OutcomeServerError
	case status >= 400:
		return OutcomeClientError
	default:
		return OutcomeOK
	}
}

// getEndpointPattern prefers the chi route pattern and maps anything else to
// a fixed set of labels to keep cardinality bounded.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if routePattern := rctx.RoutePattern(); routePattern != "" {
			return routePattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case path == "/version", path == "/metrics", path == "/":
		return path
	case strings.HasPrefix(path, "/admin/"):
		return "/admin/*"
	default:
		return "/unknown"
	}
}

// RequestMetrics records request count, latency and sizes labelled by route
// and outcome, then logs the completed request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		var requestSize int64
		if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
			if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
				requestSize = size
			}
		}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		endpoint := getEndpointPattern(r)
		outcome := requestOutcome(rec.status)

		emitRequestMetrics(r.Method, endpoint, rec.status, outcome, duration, requestSize, rec.written)

		if observability.ServerLogger == nil {
			return
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("endpoint", endpoint),
			zap.Int("status", rec.status),
			zap.String("outcome", outcome),
			zap.Duration("duration", duration),
			zap.Int64("request_size", requestSize),
			zap.Int64("response_size", rec.written),
			zap.String("request_id", GetRequestID(r.Context())),
		}
		switch {
		case outcome == OutcomeRateLimited:
			fields = append(fields,
				zap.String("client_key", ratelimit.ClientKey(r)),
				zap.String("retry_after", rec.Header().Get("Retry-After")),
			)
			observability.ServerLogger.Warn("HTTP request rate limited", fields...)
		case isExempt(r.URL.Path, DefaultExemptPrefixes):
			// Orchestrator probes and scrapes.
			observability.ServerLogger.Debug("HTTP request completed", fields...)
		default:
			observability.ServerLogger.Info("HTTP request completed", fields...)
		}
	})
}

func emitRequestMetrics(method, endpoint string, status int, outcome string, duration time.Duration, requestSize, responseSize int64) {
	if observability.TelemetrySystem == nil {
		return
	}

	labels := map[string]string{
		"method":   method,
		"endpoint": endpoint,
		"status":   strconv.Itoa(status),
		"outcome":  outcome,
	}
	_ = observability.TelemetrySystem.Counter("http_requests_total", 1, labels)
	_ = observability.TelemetrySystem.Histogram("http_request_duration_ms", duration, labels)

	sizeLabels := map[string]string{"method": method, "endpoint": endpoint}
	_ = observability.TelemetrySystem.Gauge("http_request_size_bytes", float64(requestSize), sizeLabels)
	_ = observability.TelemetrySystem.Gauge("http_response_size_bytes", float64(responseSize), sizeLabels)

	if outcome == OutcomeOK {
		return
	}
	_ = observability.TelemetrySystem.Counter("http_errors_total", 1, map[string]string{
		"method":     method,
		"endpoint":   endpoint,
		"status":     strconv.Itoa(status),
		"error_type": outcome,
	})
}
