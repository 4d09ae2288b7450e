// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package llm adapts hosted language models to the chat bridge and the
// summarization job.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/httpclient"
)

const (
	// DefaultOpenAIBaseURL is the public OpenAI API
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultChatModel answers chat questions about a completed meeting
	DefaultChatModel = "chatgpt-4o-latest"
	// DefaultSummaryModel writes the post-meeting data report
	DefaultSummaryModel = "gpt-4o"
)

// ErrEmptyCompletion is returned when the model answered without any content.
var ErrEmptyCompletion = errors.New("model returned no content")

// OpenAIConfig holds the configuration for an OpenAI-compatible endpoint
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Optional sampling parameters; nil leaves the provider default
	Temperature *float64
	TopP        *float64
	Timeout     time.Duration
	// Optional: override retry delays for testing
	InitialBackoff time.Duration
}

// OpenAIClient calls the chat completions endpoint.
type OpenAIClient struct {
	http   *httpclient.Client
	config OpenAIConfig
}

var (
	_ domain.ChatCompleter = (*OpenAIClient)(nil)
	_ domain.Summarizer    = (*OpenAIClient)(nil)
)

// NewOpenAIClient creates a client for one model.
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultOpenAIBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultChatModel
	}
	return &OpenAIClient{
		http: httpclient.New(httpclient.Config{
			Service:        "openai",
			BaseURL:        config.BaseURL,
			Timeout:        config.Timeout,
			InitialBackoff: config.InitialBackoff,
		}),
		config: config,
	}
}

// NewChatClient returns the chat bridge model: chatgpt-4o-latest with temperature and top_p 1.
func NewChatClient(apiKey, baseURL, model string) *OpenAIClient {
	if model == "" {
		model = DefaultChatModel
	}
	one := 1.0
	return NewOpenAIClient(OpenAIConfig{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       model,
		Temperature: &one,
		TopP:        &one,
	})
}

type completionRequest struct {
	Model       string            `json:"model"`
	Messages    []models.ChatTurn `json:"messages"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.config.Model
}

// Complete returns the first choice of a chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, turns []models.ChatTurn) (string, error) {
	if c.config.APIKey == "" {
		return "", domain.NewUnavailableError("openai API key not configured")
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.config.APIKey)

	var resp completionResponse
	err := c.http.DoJSON(ctx, http.MethodPost, "/chat/completions", completionRequest{
		Model:       c.config.Model,
		Messages:    turns,
		Temperature: c.config.Temperature,
		TopP:        c.config.TopP,
	}, &resp, header)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// Summarize runs a single system plus user exchange.
func (c *OpenAIClient) Summarize(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.Complete(ctx, []models.ChatTurn{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleUser, Content: userPrompt},
	})
}
