// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
)

const (
	DefaultVertexLocation = "us-central1"
	DefaultVertexModel    = "gemini-1.5-flash"
)

// VertexSummarizer generates data reports with a Gemini model on Vertex AI.
type VertexSummarizer struct {
	client *genai.Client
	model  string
}

var _ domain.Summarizer = (*VertexSummarizer)(nil)

// NewVertexSummarizer creates a Vertex AI client for project.
func NewVertexSummarizer(ctx context.Context, projectID, location, model string) (*VertexSummarizer, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT not set")
	}
	if location == "" {
		location = DefaultVertexLocation
	}
	if model == "" {
		model = DefaultVertexModel
	}
	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}
	return &VertexSummarizer{client: client, model: model}, nil
}

// Model returns the configured model name.
func (v *VertexSummarizer) Model() string {
	return v.model
}

// Summarize sends the report instructions as the system instruction.
func (v *VertexSummarizer) Summarize(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	// A model handle is cheap; one per call keeps the system instruction local.
	model := v.client.GenerativeModel(v.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return responseText(resp)
}

// Close closes the Vertex AI client
func (v *VertexSummarizer) Close() error {
	return v.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyCompletion
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return sb.String(), nil
}
