// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
)

// NatsMeetingRepository is the NATS KV store repository for meetings.
type NatsMeetingRepository struct {
	base *NatsBaseRepository[models.Meeting]
	now  func() time.Time
}

// NewNatsMeetingRepository creates a new NATS KV store repository for meetings.
func NewNatsMeetingRepository(meetings INatsKeyValue) *NatsMeetingRepository {
	return &NatsMeetingRepository{
		base: NewNatsBaseRepository[models.Meeting](meetings, "meeting"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

var _ domain.MeetingRepository = (*NatsMeetingRepository)(nil)

// IsReady checks if the NATS KV store is ready.
func (s *NatsMeetingRepository) IsReady(ctx context.Context) bool {
	return s.base.IsReady()
}

// CreateMeeting stores a new meeting. A blank status defaults to upcoming.
func (s *NatsMeetingRepository) CreateMeeting(ctx context.Context, meeting *models.Meeting) error {
	if meeting == nil {
		return domain.NewValidationError("meeting is required")
	}
	if err := checkKey("meeting", meeting.ID); err != nil {
		return err
	}
	if meeting.Status == "" {
		meeting.Status = models.MeetingStatusUpcoming
	}
	if !meeting.Status.IsValid() {
		return domain.NewValidationError("unknown meeting status '" + string(meeting.Status) + "'")
	}
	now := s.now()
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = now
	}
	meeting.UpdatedAt = now

	return s.base.Create(ctx, meeting.ID, meeting)
}

// GetMeeting returns the meeting or a NotFound error.
func (s *NatsMeetingRepository) GetMeeting(ctx context.Context, meetingID string) (*models.Meeting, error) {
	if err := checkKey("meeting", meetingID); err != nil {
		return nil, domain.NewNotFoundError("meeting not found", err)
	}
	return s.base.Get(ctx, meetingID)
}

// ListMeetingsByStatus scans the bucket for meetings in the given status.
func (s *NatsMeetingRepository) ListMeetingsByStatus(ctx context.Context, status models.MeetingStatus) ([]*models.Meeting, error) {
	return s.base.ListEntities(ctx, func(m *models.Meeting) bool {
		return m.Status == status
	})
}

// transition runs a guarded status change. A missing meeting is reported as not
// applied so that webhooks for unknown calls are acknowledged rather than retried.
func (s *NatsMeetingRepository) transition(ctx context.Context, meetingID string, apply func(*models.Meeting) bool) (*models.Meeting, bool, error) {
	if !validKey(meetingID) {
		return nil, false, nil
	}
	meeting, applied, err := s.base.Mutate(ctx, meetingID, apply)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			slog.DebugContext(ctx, "transition on missing meeting", "meeting_id", meetingID)
			return nil, false, nil
		}
		return nil, false, err
	}
	return meeting, applied, nil
}

// ActivateMeeting moves the meeting to active unless it is already active or past it.
func (s *NatsMeetingRepository) ActivateMeeting(ctx context.Context, meetingID string, startedAt time.Time) (*models.Meeting, bool, error) {
	return s.transition(ctx, meetingID, func(m *models.Meeting) bool {
		if !m.Status.CanActivate() {
			return false
		}
		m.Activate(startedAt)
		return true
	})
}

// BeginProcessing moves an active meeting to processing and stores the transcript.
func (s *NatsMeetingRepository) BeginProcessing(ctx context.Context, meetingID string, endedAt time.Time, transcript *string) (*models.Meeting, bool, error) {
	return s.transition(ctx, meetingID, func(m *models.Meeting) bool {
		if !m.Status.CanBeginProcessing() {
			return false
		}
		m.BeginProcessing(endedAt, transcript)
		return true
	})
}

// CancelMeeting cancels an upcoming or active meeting.
func (s *NatsMeetingRepository) CancelMeeting(ctx context.Context, meetingID string, at time.Time) (*models.Meeting, bool, error) {
	return s.transition(ctx, meetingID, func(m *models.Meeting) bool {
		if !m.Status.CanCancel() {
			return false
		}
		m.Cancel(at)
		return true
	})
}

// SetRecordingURL stores the recording location whatever the status is.
func (s *NatsMeetingRepository) SetRecordingURL(ctx context.Context, meetingID, url string) error {
	if err := checkKey("meeting", meetingID); err != nil {
		return domain.NewNotFoundError("meeting not found", err)
	}
	_, _, err := s.base.Mutate(ctx, meetingID, func(m *models.Meeting) bool {
		m.SetRecordingURL(url, s.now())
		return true
	})
	return err
}

// CompleteMeeting writes the summary and the completed status in one revision.
func (s *NatsMeetingRepository) CompleteMeeting(ctx context.Context, meetingID, summary string) error {
	if err := checkKey("meeting", meetingID); err != nil {
		return domain.NewNotFoundError("meeting not found", err)
	}
	_, _, err := s.base.Mutate(ctx, meetingID, func(m *models.Meeting) bool {
		m.Complete(summary, s.now())
		return true
	})
	return err
}
