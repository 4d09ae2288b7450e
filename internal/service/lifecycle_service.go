// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
)

// MeetingLifecycleService drives a meeting through its statuses in response to
// call provider events. Every status change is a conditional write in the
// repository; the calls around it are best-effort.
type MeetingLifecycleService struct {
	MeetingRepository domain.MeetingRepository
	AgentRepository   domain.AgentRepository
	AIBackend         domain.AIBackend
	ChatService       domain.ChatService
	JobPublisher      domain.JobPublisher
	ChatBridge        *ChatBridgeService
	clock             clock
}

// NewMeetingLifecycleService creates a new MeetingLifecycleService.
func NewMeetingLifecycleService(
	meetingRepository domain.MeetingRepository,
	agentRepository domain.AgentRepository,
	aiBackend domain.AIBackend,
	chatService domain.ChatService,
	jobPublisher domain.JobPublisher,
	chatBridge *ChatBridgeService,
) *MeetingLifecycleService {
	return &MeetingLifecycleService{
		MeetingRepository: meetingRepository,
		AgentRepository:   agentRepository,
		AIBackend:         aiBackend,
		ChatService:       chatService,
		JobPublisher:      jobPublisher,
		ChatBridge:        chatBridge,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *MeetingLifecycleService) ServiceReady() bool {
	return s.MeetingRepository != nil &&
		s.AgentRepository != nil &&
		s.AIBackend != nil &&
		s.ChatService != nil &&
		s.JobPublisher != nil &&
		s.ChatBridge != nil && s.ChatBridge.ServiceReady()
}

// HandleEvent applies a verified webhook event.
func (s *MeetingLifecycleService) HandleEvent(ctx context.Context, event models.WebhookEvent) (*EventResult, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized")
	}

	ctx = logging.AppendCtx(ctx, slog.String("event_type", string(event.Kind())))
	if id := event.MeetingID(); id != "" {
		ctx = logging.AppendCtx(ctx, slog.String("meeting_id", id))
	}

	switch e := event.(type) {
	case models.SessionStartedEvent:
		return s.handleSessionStarted(ctx, e)
	case models.SessionEndedEvent:
		return s.handleSessionEnded(ctx, e)
	case models.ParticipantLeftEvent:
		slog.InfoContext(ctx, "participant left call")
		return success(), nil
	case models.TranscriptionReadyEvent:
		// The transcript used for the summary comes from the AI backend at session end.
		slog.InfoContext(ctx, "provider transcription ready, ignored", "transcript_url", e.TranscriptURL)
		return success(), nil
	case models.RecordingReadyEvent:
		return s.handleRecordingReady(ctx, e)
	case models.MessageNewEvent:
		return s.ChatBridge.HandleMessage(ctx, e)
	case models.UnsupportedEvent:
		slog.DebugContext(ctx, "unsupported event type acknowledged")
		return success(), nil
	}

	slog.WarnContext(ctx, "unhandled event")
	return success(), nil
}

func (s *MeetingLifecycleService) handleSessionStarted(ctx context.Context, e models.SessionStartedEvent) (*EventResult, error) {
	meeting, applied, err := s.MeetingRepository.ActivateMeeting(ctx, e.Meeting, s.clock.now())
	if err != nil {
		slog.ErrorContext(ctx, "error activating meeting", logging.ErrKey, err)
		return nil, err
	}
	if !applied {
		slog.InfoContext(ctx, "meeting already active or not found, ignoring duplicate start")
		return &EventResult{Status: StatusAlreadyActive}, nil
	}

	agent, err := s.AgentRepository.GetAgent(ctx, meeting.AgentID)
	if err != nil {
		slog.ErrorContext(ctx, "error getting meeting agent", logging.ErrKey, err, "agent_id", meeting.AgentID)
		return nil, notFoundAs(err, "Agent not found")
	}
	ctx = logging.AppendCtx(ctx, slog.String("agent_id", agent.ID))

	err = s.AIBackend.StartAgent(ctx, models.StartAgentRequest{
		CallID:            meeting.ID,
		AgentName:         agent.Name,
		AgentInstructions: agent.Persona(),
		AgentID:           agent.ID,
	})
	if err != nil {
		// The meeting stays active; a retried start event is an idempotent no-op.
		slog.ErrorContext(ctx, "failed to start AI agent", logging.ErrKey, err)
		return nil, domain.NewInternalError("Failed to start AI agent: "+remoteDetail(err), err)
	}
	slog.InfoContext(ctx, "AI agent started")

	provision := domain.Attempt(ctx, domain.EffectProvisionChat, func(ctx context.Context) error {
		return s.ChatService.EnsureChannel(ctx, meeting.ID, agent.ID, []string{agent.ID})
	})
	return success(provision), nil
}

func (s *MeetingLifecycleService) handleSessionEnded(ctx context.Context, e models.SessionEndedEvent) (*EventResult, error) {
	var result *models.TranscriptResult
	fetch := domain.Attempt(ctx, domain.EffectFetchTranscript, func(ctx context.Context) error {
		var err error
		result, err = s.AIBackend.GetTranscript(ctx, e.Meeting)
		return err
	})

	stop := domain.Attempt(ctx, domain.EffectStopAgent, func(ctx context.Context) error {
		return s.AIBackend.StopAgent(ctx, e.Meeting)
	})

	var entries []models.TranscriptEntry
	var total int
	var stored *string
	if result != nil {
		entries, total = result.Transcript, result.TotalEntries
		if text, err := models.SerializeTranscript(entries); err == nil {
			stored = &text
		} else {
			slog.WarnContext(ctx, "transcript could not be serialized", logging.ErrKey, err)
		}
	}

	_, applied, err := s.MeetingRepository.BeginProcessing(ctx, e.Meeting, s.clock.now(), stored)
	if err != nil {
		slog.ErrorContext(ctx, "error moving meeting to processing", logging.ErrKey, err)
		return nil, err
	}
	if !applied {
		slog.InfoContext(ctx, "meeting not active, summarization not enqueued")
		return success(fetch, stop, domain.Skip(domain.EffectEnqueueSummary)), nil
	}
	slog.InfoContext(ctx, "meeting moved to processing", "transcript_entries", len(entries))

	enqueue := domain.Attempt(ctx, domain.EffectEnqueueSummary, func(ctx context.Context) error {
		job, err := models.NewProcessingJob(e.Meeting, entries, total)
		if err != nil {
			return err
		}
		return s.JobPublisher.PublishProcessingJob(ctx, job, e.Meeting)
	})
	if !enqueue.OK() {
		slog.ErrorContext(ctx, "meeting left in processing without a summarization job, replay required",
			logging.ErrKey, enqueue.Err, logging.PriorityCritical())
	}
	return success(fetch, stop, enqueue), nil
}

func (s *MeetingLifecycleService) handleRecordingReady(ctx context.Context, e models.RecordingReadyEvent) (*EventResult, error) {
	if err := s.MeetingRepository.SetRecordingURL(ctx, e.Meeting, e.RecordingURL); err != nil {
		if t := domain.GetErrorType(err); t == domain.ErrorTypeNotFound || t == domain.ErrorTypeValidation {
			slog.WarnContext(ctx, "recording for unknown meeting ignored", logging.ErrKey, err)
			return success(), nil
		}
		slog.ErrorContext(ctx, "error saving recording url", logging.ErrKey, err)
		return nil, err
	}
	slog.InfoContext(ctx, "recording url saved")
	return success(), nil
}

// CancelMeeting cancels an upcoming or active meeting. The AI agent of an active
// meeting is asked to leave, best-effort.
func (s *MeetingLifecycleService) CancelMeeting(ctx context.Context, meetingID string) (*EventResult, error) {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return nil, domain.NewUnavailableError("service not initialized")
	}
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", meetingID))

	meeting, applied, err := s.MeetingRepository.CancelMeeting(ctx, meetingID, s.clock.now())
	if err != nil {
		return nil, err
	}
	if !applied {
		if _, err := s.MeetingRepository.GetMeeting(ctx, meetingID); err != nil {
			return nil, notFoundAs(err, "Meeting not found")
		}
		return nil, domain.NewConflictError("meeting is neither upcoming nor active")
	}
	slog.InfoContext(ctx, "meeting cancelled")

	// Only a started meeting has an agent in the call.
	if meeting.StartedAt == nil {
		return success(domain.Skip(domain.EffectStopAgent)), nil
	}
	stop := domain.Attempt(ctx, domain.EffectStopAgent, func(ctx context.Context) error {
		return s.AIBackend.StopAgent(ctx, meetingID)
	})
	return success(stop), nil
}
