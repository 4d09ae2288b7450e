// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
)

// AIBackend is the service that joins calls as an AI participant and records transcripts.
type AIBackend interface {
	StartAgent(ctx context.Context, req models.StartAgentRequest) error
	StopAgent(ctx context.Context, meetingID string) error
	GetTranscript(ctx context.Context, meetingID string) (*models.TranscriptResult, error)
}

// TranscriptDownloader fetches a transcript document by reference.
type TranscriptDownloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// ChatService is the companion chat of a meeting.
type ChatService interface {
	EnsureChannel(ctx context.Context, channelID, createdByID string, members []string) error
	RecentMessages(ctx context.Context, channelID string, limit int) ([]models.ChatMessage, error)
	UpsertUser(ctx context.Context, user models.ChatUser) error
	SendMessage(ctx context.Context, channelID, text string, author models.ChatUser) error
}

// ChatCompleter produces the next assistant turn of a conversation.
type ChatCompleter interface {
	Complete(ctx context.Context, turns []models.ChatTurn) (string, error)
}

// Summarizer generates the post-meeting data report.
type Summarizer interface {
	Summarize(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// WebhookValidator authenticates a call provider webhook against its raw body.
type WebhookValidator interface {
	ValidateSignature(body []byte, signature, apiKey string) error
}
