// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/httpclient"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"It went well."}}]}`))
	}))
	defer srv.Close()

	client := NewChatClient("sk-test", srv.URL, "")
	reply, err := client.Complete(context.Background(), []models.ChatTurn{
		{Role: models.RoleSystem, Content: "ground"},
		{Role: models.RoleUser, Content: "How did it go?"},
	})

	require.NoError(t, err)
	assert.Equal(t, "It went well.", reply)
	assert.Equal(t, DefaultChatModel, got["model"])
	assert.Equal(t, 1.0, got["temperature"])
	assert.Equal(t, 1.0, got["top_p"])
	assert.Len(t, got["messages"], 2)
}

func TestOpenAIClient_Summarize(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"# Report"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: DefaultSummaryModel})
	report, err := client.Summarize(context.Background(), "system", "user")

	require.NoError(t, err)
	assert.Equal(t, "# Report", report)
	assert.Equal(t, DefaultSummaryModel, got.Model)
	assert.Nil(t, got.Temperature)
	assert.Equal(t, []models.ChatTurn{
		{Role: models.RoleSystem, Content: "system"},
		{Role: models.RoleUser, Content: "user"},
	}, got.Messages)
}

func TestOpenAIClient_Errors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := NewChatClient("", "http://unused.invalid", "").Complete(context.Background(), nil)
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		_, err := NewChatClient("sk", srv.URL, "").Complete(context.Background(), nil)
		assert.ErrorIs(t, err, ErrEmptyCompletion)
	})

	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
		}))
		defer srv.Close()

		client := NewOpenAIClient(OpenAIConfig{APIKey: "sk", BaseURL: srv.URL, InitialBackoff: time.Millisecond})
		_, err := client.Complete(context.Background(), nil)

		assert.Equal(t, http.StatusUnauthorized, httpclient.StatusCode(err))
		assert.Contains(t, err.Error(), "Incorrect API key")
	})
}
