// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/httpclient"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/webhook"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/constants"
)

const (
	testAPIKey    = "key-123"
	testAPISecret = "secret-456"
)

type webhookMocks struct {
	meetings *mocks.MockMeetingRepository
	agents   *mocks.MockAgentRepository
	ai       *mocks.MockAIBackend
	chat     *mocks.MockChatService
	jobs     *mocks.MockJobPublisher
}

func setupWebhookHandler() (*WebhookHandler, *webhookMocks, *webhook.StreamWebhookValidator) {
	m := &webhookMocks{
		meetings: new(mocks.MockMeetingRepository),
		agents:   new(mocks.MockAgentRepository),
		ai:       new(mocks.MockAIBackend),
		chat:     new(mocks.MockChatService),
		jobs:     new(mocks.MockJobPublisher),
	}
	bridge := service.NewChatBridgeService(m.meetings, m.agents, m.chat, new(mocks.MockChatCompleter), nil)
	lifecycle := service.NewMeetingLifecycleService(m.meetings, m.agents, m.ai, m.chat, m.jobs, bridge)
	validator := webhook.NewStreamWebhookValidator(testAPIKey, testAPISecret)
	return NewWebhookHandler(lifecycle, validator), m, validator
}

func signedRequest(v *webhook.StreamWebhookValidator, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, constants.StreamWebhookPath, strings.NewReader(body))
	req.Header.Set(constants.SignatureHeader, v.Sign([]byte(body)))
	req.Header.Set(constants.APIKeyHeader, testAPIKey)
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const sessionStarted = `{"type":"call.session_started","call":{"cid":"default:m-1","custom":{"meetingId":"m-1"}}}`

func TestWebhookHandler_Authentication(t *testing.T) {
	tests := []struct {
		name       string
		signature  string
		apiKey     string
		wantStatus int
		wantError  string
	}{
		{"missing signature", "", testAPIKey, http.StatusBadRequest, "Missing signature or API key"},
		{"missing api key", "abc", "", http.StatusBadRequest, "Missing signature or API key"},
		{"wrong api key", "abc", "other", http.StatusUnauthorized, "Invalid API key"},
		{"wrong signature", "abc", testAPIKey, http.StatusUnauthorized, "Invalid signature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m, _ := setupWebhookHandler()
			req := httptest.NewRequest(http.MethodPost, constants.StreamWebhookPath, strings.NewReader(sessionStarted))
			req.Header.Set(constants.SignatureHeader, tt.signature)
			req.Header.Set(constants.APIKeyHeader, tt.apiKey)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decodeBody(t, rec)["error"])
			m.meetings.AssertNotCalled(t, "ActivateMeeting", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestWebhookHandler_Payload(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"not json", `{`, http.StatusBadRequest, "Invalid payload"},
		{"no meeting id", `{"type":"call.session_started","call":{"custom":{}}}`, http.StatusBadRequest, "Missing meetingId"},
		{"chat without text", `{"type":"message.new","channel_id":"m-1","user":{"id":"u-1"}}`, http.StatusBadRequest, "Missing userId, channelId or text"},
		{"recording without url", `{"type":"call.recording_ready","call_cid":"default:m-1"}`, http.StatusBadRequest, "Missing recording URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, v := setupWebhookHandler()
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, signedRequest(v, tt.body))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decodeBody(t, rec)["error"])
		})
	}
}

func TestWebhookHandler_SessionStarted(t *testing.T) {
	started := time.Now()
	meeting := &models.Meeting{ID: "m-1", AgentID: "a-1", Status: models.MeetingStatusActive, StartedAt: &started}
	agent := &models.Agent{ID: "a-1", Name: "Ada"}

	tests := []struct {
		name       string
		setup      func(m *webhookMocks)
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name: "first start",
			setup: func(m *webhookMocks) {
				m.meetings.On("ActivateMeeting", mock.Anything, "m-1", mock.Anything).Return(meeting, true, nil)
				m.agents.On("GetAgent", mock.Anything, "a-1").Return(agent, nil)
				m.ai.On("StartAgent", mock.Anything, mock.Anything).Return(nil)
				m.chat.On("EnsureChannel", mock.Anything, "m-1", "a-1", []string{"a-1"}).Return(assert.AnError)
			},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": service.StatusSuccess},
		},
		{
			name: "duplicate start",
			setup: func(m *webhookMocks) {
				m.meetings.On("ActivateMeeting", mock.Anything, "m-1", mock.Anything).Return(nil, false, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"status": service.StatusAlreadyActive},
		},
		{
			name: "agent backend rejects",
			setup: func(m *webhookMocks) {
				m.meetings.On("ActivateMeeting", mock.Anything, "m-1", mock.Anything).Return(meeting, true, nil)
				m.agents.On("GetAgent", mock.Anything, "a-1").Return(agent, nil)
				m.ai.On("StartAgent", mock.Anything, mock.Anything).
					Return(&httpclient.StatusError{Service: "ai-backend", StatusCode: http.StatusConflict, Detail: "Agent already running"})
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]string{"error": "Failed to start AI agent: Agent already running"},
		},
		{
			name: "store unavailable",
			setup: func(m *webhookMocks) {
				m.meetings.On("ActivateMeeting", mock.Anything, "m-1", mock.Anything).
					Return(nil, false, domain.NewUnavailableError("meeting store is not ready"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"error": "meeting store is not ready"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m, v := setupWebhookHandler()
			tt.setup(m)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, signedRequest(v, sessionStarted))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get(constants.ContentTypeHeader))
			assert.Equal(t, tt.wantBody, decodeBody(t, rec))
			m.meetings.AssertExpectations(t)
			m.ai.AssertExpectations(t)
			m.chat.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_ChatMeetingNotFound(t *testing.T) {
	h, m, v := setupWebhookHandler()
	m.meetings.On("GetMeeting", mock.Anything, "m-404").Return(nil, domain.NewNotFoundError("meeting not found"))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, signedRequest(v, `{"type":"message.new","channel_id":"m-404","user":{"id":"u-1"},"message":{"text":"hi"}}`))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Meeting not found", decodeBody(t, rec)["error"])
}

func TestWebhookHandler_UsesCapturedBody(t *testing.T) {
	h, m, v := setupWebhookHandler()
	body := `{"type":"call.session_participant_left","call_cid":"default:m-1"}`
	server := middleware.WebhookCaptureMiddleware()(h)
	rec := httptest.NewRecorder()

	server.ServeHTTP(rec, signedRequest(v, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.StatusSuccess, decodeBody(t, rec)["status"])
	m.meetings.AssertExpectations(t)
}

func TestWebhookHandler_NotReady(t *testing.T) {
	h := NewWebhookHandler(&service.MeetingLifecycleService{}, nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, constants.StreamWebhookPath, strings.NewReader(sessionStarted)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, h.HandlerReady())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("x"), http.StatusBadRequest},
		{domain.NewUnauthorizedError("x"), http.StatusUnauthorized},
		{domain.NewNotFoundError("x"), http.StatusNotFound},
		{domain.NewConflictError("x"), http.StatusConflict},
		{domain.NewUnavailableError("x"), http.StatusServiceUnavailable},
		{domain.NewInternalError("x"), http.StatusInternalServerError},
		{assert.AnError, http.StatusInternalServerError},
		{domain.NewValidationError("x", &http.MaxBytesError{Limit: 1}), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
