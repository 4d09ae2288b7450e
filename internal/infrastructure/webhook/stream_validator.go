// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
)

// StreamWebhookValidator handles validation of call provider webhook signatures
type StreamWebhookValidator struct {
	apiKey    string
	apiSecret string
}

// NewStreamWebhookValidator creates a new validator for the given credentials
func NewStreamWebhookValidator(apiKey, apiSecret string) *StreamWebhookValidator {
	return &StreamWebhookValidator{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// Sign returns the lowercase hex HMAC-SHA256 of body keyed by the API secret.
func (v *StreamWebhookValidator) Sign(body []byte) string {
	h := hmac.New(sha256.New, []byte(v.apiSecret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateSignature checks the API key and signature headers against the raw body.
// Missing headers are a validation error; a wrong key or signature is unauthorized.
func (v *StreamWebhookValidator) ValidateSignature(body []byte, signature, apiKey string) error {
	if v.apiSecret == "" || v.apiKey == "" {
		return domain.NewUnavailableError("webhook credentials not configured")
	}

	if signature == "" || apiKey == "" {
		return domain.NewValidationError("Missing signature or API key")
	}

	if !hmac.Equal([]byte(apiKey), []byte(v.apiKey)) {
		return domain.NewUnauthorizedError("Invalid API key")
	}

	// Compare signatures using constant-time comparison
	provided := strings.ToLower(strings.TrimSpace(signature))
	if !hmac.Equal([]byte(provided), []byte(v.Sign(body))) {
		return domain.NewUnauthorizedError("Invalid signature")
	}

	return nil
}
