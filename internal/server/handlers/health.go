package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/notifyd/notifyd/internal/health"
)

// HealthReporter is implemented by *health.Orchestrator.
type HealthReporter interface {
	Liveness() health.LivenessReport
	Readiness(ctx context.Context) health.Readiness
}

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	reporter HealthReporter
}

// NewHealthHandlers builds handlers backed by reporter.
func NewHealthHandlers(reporter HealthReporter) *HealthHandlers {
	return &HealthHandlers{reporter: reporter}
}

// Liveness answers 200 while the process runs. Dependencies are not consulted.
func (h *HealthHandlers) Liveness(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.reporter == nil {
		writeJSON(w, http.StatusOK, health.LivenessReport{Status: "alive"})
		return
	}
	writeJSON(w, http.StatusOK, h.reporter.Liveness())
}

// Readiness answers 200 with the dependency breakdown, including when degraded.
func (h *HealthHandlers) Readiness(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.reporter == nil {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "health reporter not initialized")
		envelope = envelope.WithDetails(map[string]interface{}{"probe": "ready"})
		respondWithError(w, r, envelope)
		return
	}
	writeJSON(w, http.StatusOK, h.reporter.Readiness(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
