// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"log/slog"
	"net/http"
)

// HealthCheck is one dependency consulted by the readiness probe.
type HealthCheck struct {
	Name  string
	Ready func(ctx context.Context) bool
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checks []HealthCheck
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Livez answers as long as the process serves HTTP.
func (h *HealthHandler) Livez(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

// Readyz answers 503 with the failing checks while a dependency is down.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	var failing []string
	for _, c := range h.checks {
		if !c.Ready(r.Context()) {
			failing = append(failing, c.Name)
		}
	}
	if len(failing) > 0 {
		slog.WarnContext(r.Context(), "service not ready", "failing_checks", failing)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failing": failing})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
