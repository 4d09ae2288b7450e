// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
)

// MockAIBackend implements domain.AIBackend for testing
type MockAIBackend struct {
	mock.Mock
}

func (m *MockAIBackend) StartAgent(ctx context.Context, req models.StartAgentRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockAIBackend) StopAgent(ctx context.Context, meetingID string) error {
	args := m.Called(ctx, meetingID)
	return args.Error(0)
}

func (m *MockAIBackend) GetTranscript(ctx context.Context, meetingID string) (*models.TranscriptResult, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TranscriptResult), args.Error(1)
}

// MockTranscriptDownloader implements domain.TranscriptDownloader for testing
type MockTranscriptDownloader struct {
	mock.Mock
}

func (m *MockTranscriptDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockChatService implements domain.ChatService for testing
type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) EnsureChannel(ctx context.Context, channelID, createdByID string, members []string) error {
	args := m.Called(ctx, channelID, createdByID, members)
	return args.Error(0)
}

func (m *MockChatService) RecentMessages(ctx context.Context, channelID string, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, channelID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

func (m *MockChatService) UpsertUser(ctx context.Context, user models.ChatUser) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockChatService) SendMessage(ctx context.Context, channelID, text string, author models.ChatUser) error {
	args := m.Called(ctx, channelID, text, author)
	return args.Error(0)
}

// MockChatCompleter implements domain.ChatCompleter for testing
type MockChatCompleter struct {
	mock.Mock
}

func (m *MockChatCompleter) Complete(ctx context.Context, turns []models.ChatTurn) (string, error) {
	args := m.Called(ctx, turns)
	return args.String(0), args.Error(1)
}

// MockSummarizer implements domain.Summarizer for testing
type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Summarize(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}

// MockJobPublisher implements domain.JobPublisher for testing
type MockJobPublisher struct {
	mock.Mock
}

func (m *MockJobPublisher) PublishProcessingJob(ctx context.Context, job models.ProcessingJob, dedupID string) error {
	args := m.Called(ctx, job, dedupID)
	return args.Error(0)
}
