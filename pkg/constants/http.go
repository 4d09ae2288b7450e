// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Constants for the HTTP request headers
const (
	// RequestIDHeader is the header name for the request ID
	RequestIDHeader string = "X-REQUEST-ID"

	// SignatureHeader carries the hex HMAC-SHA256 of a call provider webhook body
	SignatureHeader string = "x-signature"

	// APIKeyHeader carries the call provider API key on webhooks
	APIKeyHeader string = "x-api-key"

	// ContentTypeHeader is the standard content type header
	ContentTypeHeader string = "Content-Type"
)

// Headers set on JetStream job messages
const (
	// EventNameHeader names the job event carried by a message
	EventNameHeader string = "X-Event-Name"

	// MeetingIDHeader repeats the job's meeting id so it is visible without decoding
	MeetingIDHeader string = "X-Meeting-Id"
)

// contextRequestID is the type for the request ID context key
type contextRequestID string

// RequestIDContextID is the context ID for the request ID
const RequestIDContextID contextRequestID = "X-REQUEST-ID"

// Webhook routes of the call provider.
const (
	StreamWebhookPath = "/webhooks/stream"
	// LegacyWebhookPath is kept for providers still configured with the old endpoint.
	LegacyWebhookPath = "/api/webhook"
)

// IsWebhookPath reports whether path receives signed provider webhooks.
func IsWebhookPath(path string) bool {
	return path == StreamWebhookPath || path == LegacyWebhookPath
}

// Health routes, excluded from request logging.
const (
	LivezPath  = "/livez"
	ReadyzPath = "/readyz"
)
