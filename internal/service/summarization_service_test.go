// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/store/storetest"
)

type summarizationFixture struct {
	svc        *SummarizationService
	meetings   *store.NatsMeetingRepository
	summarizer *mocks.MockSummarizer
	downloader *mocks.MockTranscriptDownloader
	jobs       *mocks.MockJobPublisher
}

func fastRetry() StepRetry {
	return StepRetry{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func setupSummarization(t *testing.T, status models.MeetingStatus) *summarizationFixture {
	t.Helper()
	ctx := context.Background()

	meetings := store.NewNatsMeetingRepository(storetest.NewMemoryKV())
	agents := store.NewNatsAgentRepository(storetest.NewMemoryKV())
	users := store.NewNatsUserRepository(storetest.NewMemoryKV())

	require.NoError(t, meetings.CreateMeeting(ctx, &models.Meeting{ID: "m-1", Name: "Screening", UserID: "u-1", AgentID: "a-1", Status: status}))
	require.NoError(t, agents.CreateAgent(ctx, &models.Agent{ID: "a-1", Name: "Ada", ReportTemplate: "Score the candidate out of 10."}))
	require.NoError(t, users.CreateUser(ctx, &models.User{ID: "u-1", Name: "Grace"}))

	f := &summarizationFixture{
		meetings:   meetings,
		summarizer: new(mocks.MockSummarizer),
		downloader: new(mocks.MockTranscriptDownloader),
		jobs:       new(mocks.MockJobPublisher),
	}
	f.svc = NewSummarizationService(meetings, agents, users, f.summarizer, f.downloader, f.jobs, nil)
	f.svc.Retry = fastRetry()
	return f
}

func TestSummarizationService_Process(t *testing.T) {
	ctx := context.Background()
	job, err := models.NewProcessingJob("m-1", []models.TranscriptEntry{
		{SpeakerID: "u-1", Text: "I have five years of Go."},
		{SpeakerID: "a-1", Text: "Tell me about channels."},
		{SpeakerID: "x-9", Text: "(noise)"},
	}, 3)
	require.NoError(t, err)

	f := setupSummarization(t, models.MeetingStatusProcessing)
	var userPrompt string
	f.summarizer.On("Summarize", mock.Anything,
		"Generate a data report, according to the following prompt: Score the candidate out of 10.", mock.Anything).
		Run(func(args mock.Arguments) { userPrompt = args.String(2) }).
		Return("Score: 8/10", nil)

	require.NoError(t, f.svc.Process(ctx, job))

	require.True(t, strings.HasPrefix(userPrompt, reportUserPrefix))
	var annotated []models.SpeakerEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(userPrompt, reportUserPrefix)), &annotated))
	require.Len(t, annotated, 3)
	assert.Equal(t, "Grace", annotated[0].User.Name)
	assert.Equal(t, "Ada", annotated[1].User.Name)
	assert.Equal(t, models.UnknownSpeaker, annotated[2].User.Name)

	meeting, err := f.meetings.GetMeeting(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusCompleted, meeting.Status)
	require.NotNil(t, meeting.Summary)
	assert.Equal(t, "Score: 8/10", *meeting.Summary)
}

func TestSummarizationService_TranscriptSources(t *testing.T) {
	jsonl := "{\"speaker_id\":\"u-1\",\"text\":\"a\"}\n{\"speaker_id\":\"u-1\",\"text\":\"b\"}\n"

	tests := []struct {
		name    string
		job     models.ProcessingJob
		setup   func(f *summarizationFixture)
		entries int
	}{
		{
			name: "downloaded JSONL",
			job:  models.ProcessingJob{MeetingID: "m-1", TranscriptURL: "https://files.example.com/t.jsonl"},
			setup: func(f *summarizationFixture) {
				f.downloader.On("Download", mock.Anything, "https://files.example.com/t.jsonl").Return([]byte(jsonl), nil)
			},
			entries: 2,
		},
		{
			name:    "inline stored transcript",
			job:     models.ProcessingJob{MeetingID: "m-1", TranscriptURL: `[{"speaker_id":"u-1","text":"a"}]`},
			entries: 1,
		},
		{
			name:    "transcript text only",
			job:     models.ProcessingJob{MeetingID: "m-1", TranscriptText: `[{"speaker_id":"u-1","text":"a"}]`},
			entries: 1,
		},
		{
			name:    "empty transcript still completes",
			job:     models.ProcessingJob{MeetingID: "m-1", TranscriptText: "[]"},
			entries: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupSummarization(t, models.MeetingStatusProcessing)
			if tt.setup != nil {
				tt.setup(f)
			}
			var userPrompt string
			f.summarizer.On("Summarize", mock.Anything, mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { userPrompt = args.String(2) }).
				Return("report", nil)

			require.NoError(t, f.svc.Process(context.Background(), tt.job))

			var annotated []models.SpeakerEntry
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(userPrompt, reportUserPrefix)), &annotated))
			assert.Len(t, annotated, tt.entries)
			f.downloader.AssertExpectations(t)
		})
	}
}

func TestSummarizationService_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("summarizer retried within the step", func(t *testing.T) {
		f := setupSummarization(t, models.MeetingStatusProcessing)
		f.summarizer.On("Summarize", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("overloaded")).Twice()
		f.summarizer.On("Summarize", mock.Anything, mock.Anything, mock.Anything).Return("report", nil).Once()

		require.NoError(t, f.svc.Process(ctx, models.ProcessingJob{MeetingID: "m-1", TranscriptText: "[]"}))
		f.summarizer.AssertNumberOfCalls(t, "Summarize", 3)
	})

	t.Run("exhausted retries leave the meeting processing", func(t *testing.T) {
		f := setupSummarization(t, models.MeetingStatusProcessing)
		f.summarizer.On("Summarize", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("overloaded"))

		err := f.svc.Process(ctx, models.ProcessingJob{MeetingID: "m-1", TranscriptText: "[]"})

		require.Error(t, err)
		assert.False(t, IsPermanent(err))
		assert.Contains(t, err.Error(), StepGenerateSummary)
		meeting, _ := f.meetings.GetMeeting(ctx, "m-1")
		assert.Equal(t, models.MeetingStatusProcessing, meeting.Status)
		assert.Nil(t, meeting.Summary)
	})

	t.Run("unparseable transcript is permanent", func(t *testing.T) {
		f := setupSummarization(t, models.MeetingStatusProcessing)

		err := f.svc.Process(ctx, models.ProcessingJob{MeetingID: "m-1", TranscriptText: "not json"})

		assert.True(t, IsPermanent(err))
		f.summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown meeting is permanent", func(t *testing.T) {
		f := setupSummarization(t, models.MeetingStatusProcessing)

		err := f.svc.Process(ctx, models.ProcessingJob{MeetingID: "m-404"})

		assert.True(t, IsPermanent(err))
	})

	t.Run("completed meeting is skipped", func(t *testing.T) {
		f := setupSummarization(t, models.MeetingStatusCompleted)

		require.NoError(t, f.svc.Process(ctx, models.ProcessingJob{MeetingID: "m-1"}))
		f.summarizer.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSummarizationService_Replay(t *testing.T) {
	ctx := context.Background()

	t.Run("re-enqueues a processing meeting with its stored transcript", func(t *testing.T) {
		f := setupSummarization(t, models.MeetingStatusActive)
		stored := `[{"speaker_id":"u-1","text":"a"}]`
		_, applied, err := f.meetings.BeginProcessing(ctx, "m-1", fixedNow, &stored)
		require.NoError(t, err)
		require.True(t, applied)

		f.jobs.On("PublishProcessingJob", mock.Anything, mock.MatchedBy(func(job models.ProcessingJob) bool {
			return job.MeetingID == "m-1" && job.TranscriptURL == stored
		}), mock.MatchedBy(func(id string) bool {
			return strings.HasPrefix(id, "m-1-replay-")
		})).Return(nil)

		require.NoError(t, f.svc.Replay(ctx, "m-1"))
		f.jobs.AssertExpectations(t)
	})

	t.Run("only processing meetings", func(t *testing.T) {
		f := setupSummarization(t, models.MeetingStatusCompleted)

		err := f.svc.Replay(ctx, "m-1")

		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
	})

	t.Run("unknown meeting", func(t *testing.T) {
		f := setupSummarization(t, models.MeetingStatusProcessing)

		err := f.svc.Replay(ctx, "m-404")

		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})
}
