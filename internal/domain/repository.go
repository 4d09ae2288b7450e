// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
)

// MeetingRepository defines the storage operations of the meeting lifecycle.
// Every status transition is a single conditional write: the returned bool is
// false when the meeting is missing or its current status rejects the transition,
// and in that case nothing was written.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting *models.Meeting) error
	GetMeeting(ctx context.Context, meetingID string) (*models.Meeting, error)
	ListMeetingsByStatus(ctx context.Context, status models.MeetingStatus) ([]*models.Meeting, error)

	// ActivateMeeting sets status=active and startedAt when the status allows a start.
	ActivateMeeting(ctx context.Context, meetingID string, startedAt time.Time) (*models.Meeting, bool, error)
	// BeginProcessing sets status=processing, endedAt and the serialized transcript when active.
	BeginProcessing(ctx context.Context, meetingID string, endedAt time.Time, transcript *string) (*models.Meeting, bool, error)
	// CancelMeeting sets status=cancelled when the meeting is upcoming or active.
	CancelMeeting(ctx context.Context, meetingID string, at time.Time) (*models.Meeting, bool, error)

	// SetRecordingURL stores the recording location regardless of status.
	SetRecordingURL(ctx context.Context, meetingID, url string) error
	// CompleteMeeting stores the summary and status=completed in one write.
	CompleteMeeting(ctx context.Context, meetingID, summary string) error

	IsReady(ctx context.Context) bool
}

// AgentRepository provides read access to AI agents.
type AgentRepository interface {
	CreateAgent(ctx context.Context, agent *models.Agent) error
	GetAgent(ctx context.Context, agentID string) (*models.Agent, error)
	// ListAgents returns the agents among ids that exist; missing ids are skipped.
	ListAgents(ctx context.Context, ids []string) ([]*models.Agent, error)
}

// UserRepository provides read access to users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	// ListUsers returns the users among ids that exist; missing ids are skipped.
	ListUsers(ctx context.Context, ids []string) ([]*models.User, error)
}
