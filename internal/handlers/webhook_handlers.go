// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/constants"
)

// WebhookHandler receives signed call provider webhooks.
type WebhookHandler struct {
	lifecycle *service.MeetingLifecycleService
	validator domain.WebhookValidator
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(lifecycle *service.MeetingLifecycleService, validator domain.WebhookValidator) *WebhookHandler {
	return &WebhookHandler{
		lifecycle: lifecycle,
		validator: validator,
	}
}

// HandlerReady reports whether the handler can process webhooks.
func (h *WebhookHandler) HandlerReady() bool {
	return h.validator != nil && h.lifecycle != nil && h.lifecycle.ServiceReady()
}

var _ http.Handler = (*WebhookHandler)(nil)

// ServeHTTP verifies the signature over the raw body, decodes the event and applies it.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.HandlerReady() {
		slog.ErrorContext(ctx, "webhook handler not initialized", logging.PriorityCritical())
		writeError(w, domain.NewUnavailableError("service not initialized"))
		return
	}

	captured, ok := middleware.CapturedWebhookFromContext(ctx)
	if !ok {
		var err error
		if captured, err = middleware.CaptureWebhook(w, r, middleware.MaxWebhookBodyBytes); err != nil {
			slog.WarnContext(ctx, "error reading webhook body", logging.ErrKey, err)
			writeError(w, domain.NewValidationError("Failed to read request body", err))
			return
		}
	}

	if err := h.validator.ValidateSignature(captured.Body, captured.Signature, captured.APIKey); err != nil {
		slog.WarnContext(ctx, "webhook rejected", logging.ErrKey, err)
		writeError(w, err)
		return
	}

	event, err := models.ParseWebhookEvent(captured.Body)
	if err != nil {
		slog.WarnContext(ctx, "invalid webhook payload", logging.ErrKey, err)
		writeError(w, domain.NewValidationError(payloadMessage(err), err))
		return
	}

	result, err := h.lifecycle.HandleEvent(ctx, event)
	if err != nil {
		writeError(w, err)
		return
	}

	for _, o := range result.Outcomes {
		if !o.OK() && !o.Skipped {
			slog.WarnContext(ctx, "side effect failed", "effect", string(o.Effect), logging.ErrKey, o.Err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": result.Status})
}

// payloadMessage is the caller-facing text of a payload error.
func payloadMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrMissingMeetingID):
		return "Missing meetingId"
	case errors.Is(err, models.ErrMissingMessageFields):
		return "Missing userId, channelId or text"
	case errors.Is(err, models.ErrMissingRecordingURL):
		return "Missing recording URL"
	}
	return "Invalid payload"
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeConflict:
		return http.StatusConflict
	case domain.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": domain.ErrorMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(constants.ContentTypeHeader, "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
