// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/llm"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/concurrent"
)

// Summarization pipeline steps, in order.
const (
	StepFetchTranscript = "fetch-transcript"
	StepParseTranscript = "parse-transcript"
	StepAddSpeakers     = "add-speakers"
	StepGenerateSummary = "generate-summary"
	StepSaveSummary     = "save-summary"
)

const (
	reportSystemPrefix = "Generate a data report, according to the following prompt: "
	reportUserPrefix   = "Generate the data report for the following transcript:"
)

// StepRetry bounds the retries of one pipeline step within a single job delivery.
type StepRetry struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultStepRetry returns the step retry policy used by the worker.
func DefaultStepRetry() StepRetry {
	return StepRetry{MaxTries: 3, InitialInterval: time.Second, MaxInterval: 10 * time.Second}
}

// SummarizationService turns a processing job into the meeting's data report.
type SummarizationService struct {
	MeetingRepository domain.MeetingRepository
	AgentRepository   domain.AgentRepository
	UserRepository    domain.UserRepository
	Summarizer        domain.Summarizer
	Downloader        domain.TranscriptDownloader
	JobPublisher      domain.JobPublisher
	// Budget trims the transcript to the summary model's window; nil keeps everything.
	Budget *llm.TokenBudget
	Retry  StepRetry
	pool   *concurrent.WorkerPool
}

// NewSummarizationService creates a new SummarizationService.
func NewSummarizationService(
	meetingRepository domain.MeetingRepository,
	agentRepository domain.AgentRepository,
	userRepository domain.UserRepository,
	summarizer domain.Summarizer,
	downloader domain.TranscriptDownloader,
	jobPublisher domain.JobPublisher,
	budget *llm.TokenBudget,
) *SummarizationService {
	return &SummarizationService{
		MeetingRepository: meetingRepository,
		AgentRepository:   agentRepository,
		UserRepository:    userRepository,
		Summarizer:        summarizer,
		Downloader:        downloader,
		JobPublisher:      jobPublisher,
		Budget:            budget,
		Retry:             DefaultStepRetry(),
		pool:              concurrent.NewWorkerPool(2),
	}
}

// ServiceReady checks if the service is ready for use.
func (s *SummarizationService) ServiceReady() bool {
	return s.MeetingRepository != nil &&
		s.AgentRepository != nil &&
		s.UserRepository != nil &&
		s.Summarizer != nil &&
		s.Downloader != nil
}

// IsPermanent reports whether retrying a job that failed with err cannot help.
func IsPermanent(err error) bool {
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeValidation, domain.ErrorTypeNotFound:
		return true
	}
	return false
}

// runStep retries op with exponential backoff. Validation and NotFound errors stop at once.
func runStep[T any](ctx context.Context, retry StepRetry, name string, op func(ctx context.Context) (T, error)) (T, error) {
	ctx = logging.AppendCtx(ctx, slog.String("step", name))
	start := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retry.InitialInterval
	b.MaxInterval = retry.MaxInterval

	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && IsPermanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(max(retry.MaxTries, 1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.WarnContext(ctx, "job step failed, retrying", logging.ErrKey, err, "backoff", next.String())
		}),
	)
	if err != nil {
		return v, fmt.Errorf("step %s: %w", name, err)
	}
	slog.DebugContext(ctx, "job step completed", "duration", time.Since(start).String())
	return v, nil
}

// Process runs the pipeline for one job. The meeting ends up completed with its
// summary, or stays in processing and the error says whether a retry can help.
func (s *SummarizationService) Process(ctx context.Context, job models.ProcessingJob) error {
	if !s.ServiceReady() {
		slog.ErrorContext(ctx, "service not initialized", logging.PriorityCritical())
		return domain.NewUnavailableError("service not initialized")
	}

	meeting, err := runStep(ctx, s.Retry, "load-meeting", func(ctx context.Context) (*models.Meeting, error) {
		return s.MeetingRepository.GetMeeting(ctx, job.MeetingID)
	})
	if err != nil {
		return err
	}
	if meeting.Status == models.MeetingStatusCompleted {
		slog.InfoContext(ctx, "meeting already completed, job skipped")
		return nil
	}

	raw, err := runStep(ctx, s.Retry, StepFetchTranscript, func(ctx context.Context) ([]byte, error) {
		return s.fetchTranscript(ctx, job)
	})
	if err != nil {
		return err
	}

	entries, err := runStep(ctx, s.Retry, StepParseTranscript, func(context.Context) ([]models.TranscriptEntry, error) {
		entries, err := models.ParseTranscript(raw)
		if err != nil {
			return nil, domain.NewValidationError("transcript is not JSON or JSONL", err)
		}
		return entries, nil
	})
	if err != nil {
		return err
	}

	annotated, err := runStep(ctx, s.Retry, StepAddSpeakers, func(ctx context.Context) ([]models.SpeakerEntry, error) {
		names, err := s.speakerNames(ctx, models.SpeakerIDs(entries))
		if err != nil {
			return nil, err
		}
		return models.AnnotateSpeakers(entries, names), nil
	})
	if err != nil {
		return err
	}

	summary, err := runStep(ctx, s.Retry, StepGenerateSummary, func(ctx context.Context) (string, error) {
		return s.generateSummary(ctx, meeting, annotated)
	})
	if err != nil {
		return err
	}

	_, err = runStep(ctx, s.Retry, StepSaveSummary, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.MeetingRepository.CompleteMeeting(ctx, job.MeetingID, summary)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "meeting summary saved", "transcript_entries", len(entries), "summary_length", len(summary))
	return nil
}

// fetchTranscript prefers the transcript carried by the job, then its reference.
// A reference is either an http(s) location or the serialized transcript itself.
func (s *SummarizationService) fetchTranscript(ctx context.Context, job models.ProcessingJob) ([]byte, error) {
	if len(job.Transcript) > 0 {
		return json.Marshal(job.Transcript)
	}
	ref := strings.TrimSpace(job.TranscriptURL)
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return s.Downloader.Download(ctx, ref)
	case ref != "":
		return []byte(ref), nil
	}
	return []byte(job.TranscriptText), nil
}

// speakerNames looks users and agents up in parallel. Users win over agents on a shared id.
func (s *SummarizationService) speakerNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var users []*models.User
	var agents []*models.Agent
	err := s.pool.Run(ctx,
		func(ctx context.Context) error {
			var err error
			users, err = s.UserRepository.ListUsers(ctx, ids)
			return err
		},
		func(ctx context.Context) error {
			var err error
			agents, err = s.AgentRepository.ListAgents(ctx, ids)
			return err
		},
	)
	if err != nil {
		return nil, err
	}

	for _, a := range agents {
		names[a.ID] = a.Name
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

func (s *SummarizationService) generateSummary(ctx context.Context, meeting *models.Meeting, entries []models.SpeakerEntry) (string, error) {
	var template string
	agent, err := s.AgentRepository.GetAgent(ctx, meeting.AgentID)
	switch {
	case err == nil:
		template = agent.ReportTemplate
	case domain.GetErrorType(err) == domain.ErrorTypeNotFound:
		slog.WarnContext(ctx, "meeting agent not found, summarizing without a report template", "agent_id", meeting.AgentID)
	default:
		return "", err
	}

	systemPrompt := strings.TrimSpace(reportSystemPrefix + template)
	transcript, err := s.fitTranscript(ctx, systemPrompt, entries)
	if err != nil {
		return "", err
	}
	return s.Summarizer.Summarize(ctx, systemPrompt, reportUserPrefix+transcript)
}

// fitTranscript serializes the longest prefix of entries that fits the budget.
func (s *SummarizationService) fitTranscript(ctx context.Context, systemPrompt string, entries []models.SpeakerEntry) (string, error) {
	if s.Budget != nil && len(entries) > 0 {
		parts := make([]string, len(entries))
		for i, e := range entries {
			b, err := json.Marshal(e)
			if err != nil {
				return "", err
			}
			parts[i] = string(b)
		}
		reserved := s.Budget.Count(systemPrompt) + s.Budget.Count(reportUserPrefix)
		if n := s.Budget.FitPrefix(reserved, parts); n < len(entries) {
			slog.WarnContext(ctx, "transcript trimmed to the model budget", "kept_entries", n, "total_entries", len(entries))
			entries = entries[:n]
		}
	}
	if entries == nil {
		entries = []models.SpeakerEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Replay enqueues summarization again for a meeting parked in processing.
func (s *SummarizationService) Replay(ctx context.Context, meetingID string) error {
	if s.JobPublisher == nil || s.MeetingRepository == nil {
		return domain.NewUnavailableError("service not initialized")
	}
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", meetingID))

	meeting, err := s.MeetingRepository.GetMeeting(ctx, meetingID)
	if err != nil {
		return notFoundAs(err, "Meeting not found")
	}
	if meeting.Status != models.MeetingStatusProcessing {
		return domain.NewConflictError(fmt.Sprintf("meeting is %s, not processing", meeting.Status))
	}

	job := models.ProcessingJob{MeetingID: meeting.ID, Transcript: []models.TranscriptEntry{}}
	if meeting.TranscriptURL != nil {
		job.TranscriptURL = *meeting.TranscriptURL
	}
	// A fresh id so the stream does not drop it as a duplicate of the original job.
	dedupID := meeting.ID + "-replay-" + uuid.NewString()
	if err := s.JobPublisher.PublishProcessingJob(ctx, job, dedupID); err != nil {
		return err
	}
	slog.InfoContext(ctx, "summarization replay enqueued")
	return nil
}
