// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/constants"
)

// MaxWebhookBodyBytes bounds the body of a webhook request. Provider events are
// small JSON documents.
const MaxWebhookBodyBytes = 1 << 20

// CapturedWebhook is a webhook request as received, before anything decodes it.
// The signature covers Body byte for byte.
type CapturedWebhook struct {
	Body      []byte
	Signature string
	APIKey    string
}

type capturedWebhookKey struct{}

// CaptureWebhook reads at most limit bytes of the request body and leaves a fresh
// copy on r for later readers. A body over the limit yields *http.MaxBytesError.
func CaptureWebhook(w http.ResponseWriter, r *http.Request, limit int64) (CapturedWebhook, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	_ = r.Body.Close()
	if err != nil {
		return CapturedWebhook{}, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return CapturedWebhook{
		Body:      body,
		Signature: r.Header.Get(constants.SignatureHeader),
		APIKey:    r.Header.Get(constants.APIKeyHeader),
	}, nil
}

// WebhookCaptureMiddleware captures POSTs to the webhook routes into the request
// context. Other requests pass through untouched.
func WebhookCaptureMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || !constants.IsWebhookPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			captured, err := CaptureWebhook(w, r, MaxWebhookBodyBytes)
			if err != nil {
				status, msg := http.StatusBadRequest, "Failed to read request body"
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					status, msg = http.StatusRequestEntityTooLarge, "Request body too large"
				}
				slog.WarnContext(r.Context(), "webhook body rejected", logging.ErrKey, err, "status", status)
				w.Header().Set(constants.ContentTypeHeader, "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
				return
			}

			ctx := context.WithValue(r.Context(), capturedWebhookKey{}, captured)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CapturedWebhookFromContext returns the webhook captured for this request, if any.
func CapturedWebhookFromContext(ctx context.Context) (CapturedWebhook, bool) {
	captured, ok := ctx.Value(capturedWebhookKey{}).(CapturedWebhook)
	return captured, ok
}
