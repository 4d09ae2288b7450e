// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
)

func sign(secret, body string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}

func TestStreamWebhookValidator_ValidateSignature(t *testing.T) {
	const (
		key    = "stream-key"
		secret = "stream-secret"
		body   = `{"type":"call.session_started","call":{"custom":{"meetingId":"m-1"}}}`
	)
	validator := NewStreamWebhookValidator(key, secret)

	tests := []struct {
		name      string
		validator *StreamWebhookValidator
		body      string
		signature string
		apiKey    string
		wantType  domain.ErrorType
		wantOK    bool
	}{
		{
			name:      "valid signature",
			validator: validator,
			body:      body,
			signature: sign(secret, body),
			apiKey:    key,
			wantOK:    true,
		},
		{
			name:      "uppercase hex is accepted",
			validator: validator,
			body:      body,
			signature: strings.ToUpper(sign(secret, body)),
			apiKey:    key,
			wantOK:    true,
		},
		{
			name:      "missing signature",
			validator: validator,
			body:      body,
			apiKey:    key,
			wantType:  domain.ErrorTypeValidation,
		},
		{
			name:      "missing api key",
			validator: validator,
			body:      body,
			signature: sign(secret, body),
			wantType:  domain.ErrorTypeValidation,
		},
		{
			name:      "wrong api key",
			validator: validator,
			body:      body,
			signature: sign(secret, body),
			apiKey:    "other-key",
			wantType:  domain.ErrorTypeUnauthorized,
		},
		{
			name:      "signed with another secret",
			validator: validator,
			body:      body,
			signature: sign("other-secret", body),
			apiKey:    key,
			wantType:  domain.ErrorTypeUnauthorized,
		},
		{
			name:      "body tampered after signing",
			validator: validator,
			body:      body + " ",
			signature: sign(secret, body),
			apiKey:    key,
			wantType:  domain.ErrorTypeUnauthorized,
		},
		{
			name:      "credentials not configured",
			validator: NewStreamWebhookValidator("", ""),
			body:      body,
			signature: sign(secret, body),
			apiKey:    key,
			wantType:  domain.ErrorTypeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validator.ValidateSignature([]byte(tt.body), tt.signature, tt.apiKey)
			if tt.wantOK {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tt.wantType, domain.GetErrorType(err))
		})
	}
}

func TestStreamWebhookValidator_Sign(t *testing.T) {
	v := NewStreamWebhookValidator("k", "s")
	assert.Equal(t, sign("s", "payload"), v.Sign([]byte("payload")))
}
