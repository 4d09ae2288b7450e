// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
)

// MockMeetingRepository implements domain.MeetingRepository for testing
type MockMeetingRepository struct {
	mock.Mock
}

func (m *MockMeetingRepository) CreateMeeting(ctx context.Context, meeting *models.Meeting) error {
	args := m.Called(ctx, meeting)
	return args.Error(0)
}

func (m *MockMeetingRepository) GetMeeting(ctx context.Context, meetingID string) (*models.Meeting, error) {
	args := m.Called(ctx, meetingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Meeting), args.Error(1)
}

func (m *MockMeetingRepository) ListMeetingsByStatus(ctx context.Context, status models.MeetingStatus) ([]*models.Meeting, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Meeting), args.Error(1)
}

func (m *MockMeetingRepository) transition(args mock.Arguments) (*models.Meeting, bool, error) {
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Meeting), args.Bool(1), args.Error(2)
}

func (m *MockMeetingRepository) ActivateMeeting(ctx context.Context, meetingID string, startedAt time.Time) (*models.Meeting, bool, error) {
	return m.transition(m.Called(ctx, meetingID, startedAt))
}

func (m *MockMeetingRepository) BeginProcessing(ctx context.Context, meetingID string, endedAt time.Time, transcript *string) (*models.Meeting, bool, error) {
	return m.transition(m.Called(ctx, meetingID, endedAt, transcript))
}

func (m *MockMeetingRepository) CancelMeeting(ctx context.Context, meetingID string, at time.Time) (*models.Meeting, bool, error) {
	return m.transition(m.Called(ctx, meetingID, at))
}

func (m *MockMeetingRepository) SetRecordingURL(ctx context.Context, meetingID, url string) error {
	args := m.Called(ctx, meetingID, url)
	return args.Error(0)
}

func (m *MockMeetingRepository) CompleteMeeting(ctx context.Context, meetingID, summary string) error {
	args := m.Called(ctx, meetingID, summary)
	return args.Error(0)
}

func (m *MockMeetingRepository) IsReady(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

// MockAgentRepository implements domain.AgentRepository for testing
type MockAgentRepository struct {
	mock.Mock
}

func (m *MockAgentRepository) CreateAgent(ctx context.Context, agent *models.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

func (m *MockAgentRepository) GetAgent(ctx context.Context, agentID string) (*models.Agent, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) ListAgents(ctx context.Context, ids []string) ([]*models.Agent, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Agent), args.Error(1)
}

// MockUserRepository implements domain.UserRepository for testing
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) ListUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}
