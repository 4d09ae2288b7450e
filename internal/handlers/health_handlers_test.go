// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func check(name string, ok bool) HealthCheck {
	return HealthCheck{Name: name, Ready: func(context.Context) bool { return ok }}
}

func TestHealthHandler_Livez(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(check("store", false)).Livez(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestHealthHandler_Readyz(t *testing.T) {
	tests := []struct {
		name        string
		checks      []HealthCheck
		wantStatus  int
		wantFailing []any
	}{
		{"all ready", []HealthCheck{check("store", true), check("nats", true)}, http.StatusOK, nil},
		{"no checks", nil, http.StatusOK, nil},
		{"store down", []HealthCheck{check("store", false), check("nats", true)}, http.StatusServiceUnavailable, []any{"store"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.checks...).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantFailing == nil {
				assert.Equal(t, "ready", body["status"])
				return
			}
			assert.Equal(t, tt.wantFailing, body["failing"])
		})
	}
}
