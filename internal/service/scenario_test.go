// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/store/storetest"
)

// TestInterviewScenario walks one meeting from a duplicated start through the
// summary to a chat reply grounded in it.
func TestInterviewScenario(t *testing.T) {
	ctx := context.Background()

	meetings := store.NewNatsMeetingRepository(storetest.NewMemoryKV())
	agents := store.NewNatsAgentRepository(storetest.NewMemoryKV())
	users := store.NewNatsUserRepository(storetest.NewMemoryKV())
	require.NoError(t, meetings.CreateMeeting(ctx, &models.Meeting{ID: "m-1", Name: "Screening", UserID: "u-1", AgentID: "a-1"}))
	require.NoError(t, agents.CreateAgent(ctx, &models.Agent{
		ID: "a-1", Name: "Ada", Instructions: "Interview for a Go role.", ReportTemplate: "Score the candidate.",
	}))
	require.NoError(t, users.CreateUser(ctx, &models.User{ID: "u-1", Name: "Grace"}))

	ai := new(mocks.MockAIBackend)
	chat := new(mocks.MockChatService)
	jobs := new(mocks.MockJobPublisher)
	completer := new(mocks.MockChatCompleter)
	summarizer := new(mocks.MockSummarizer)

	bridge := NewChatBridgeService(meetings, agents, chat, completer, nil)
	lifecycle := NewMeetingLifecycleService(meetings, agents, ai, chat, jobs, bridge)
	summarization := NewSummarizationService(meetings, agents, users, summarizer, new(mocks.MockTranscriptDownloader), jobs, nil)
	summarization.Retry = fastRetry()

	// Both start deliveries race; only one wins the transition.
	ai.On("StartAgent", mock.Anything, mock.MatchedBy(func(r models.StartAgentRequest) bool {
		return r.CallID == "m-1" && r.AgentInstructions == "Interview for a Go role."
	})).Return(nil).Once()
	chat.On("EnsureChannel", mock.Anything, "m-1", "a-1", []string{"a-1"}).Return(nil).Once()

	statuses := make([]string, 2)
	var wg sync.WaitGroup
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := lifecycle.HandleEvent(ctx, models.SessionStartedEvent{Meeting: "m-1"})
			if assert.NoError(t, err) {
				statuses[i] = res.Status
			}
		}(i)
	}
	wg.Wait()
	assert.ElementsMatch(t, []string{StatusSuccess, StatusAlreadyActive}, statuses)

	// Session end: transcript fetched, agent stopped, job enqueued.
	ai.On("GetTranscript", mock.Anything, "m-1").Return(&models.TranscriptResult{
		Transcript: []models.TranscriptEntry{
			{SpeakerID: "a-1", Text: "Why Go?"},
			{SpeakerID: "u-1", Text: "Simple concurrency."},
		},
		TotalEntries: 2,
	}, nil).Once()
	ai.On("StopAgent", mock.Anything, "m-1").Return(nil).Once()
	var job models.ProcessingJob
	jobs.On("PublishProcessingJob", mock.Anything, mock.Anything, "m-1").
		Run(func(args mock.Arguments) { job = args.Get(1).(models.ProcessingJob) }).
		Return(nil).Once()

	res, err := lifecycle.HandleEvent(ctx, models.SessionEndedEvent{Meeting: "m-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)

	meeting, err := meetings.GetMeeting(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusProcessing, meeting.Status)
	require.NotNil(t, meeting.TranscriptURL)

	// A duplicate end is acknowledged without another job.
	ai.On("GetTranscript", mock.Anything, "m-1").Return(nil, assert.AnError).Once()
	ai.On("StopAgent", mock.Anything, "m-1").Return(assert.AnError).Once()
	res, err = lifecycle.HandleEvent(ctx, models.SessionEndedEvent{Meeting: "m-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)

	// The worker runs the job.
	summarizer.On("Summarize", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, `"name":"Grace"`) && strings.Contains(p, `"name":"Ada"`)
	})).Return("Candidate scored 9/10.", nil).Once()
	require.NoError(t, summarization.Process(ctx, job))

	meeting, err = meetings.GetMeeting(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusCompleted, meeting.Status)
	require.NotNil(t, meeting.Summary)
	assert.Equal(t, "Candidate scored 9/10.", *meeting.Summary)

	// The candidate asks about the meeting in its channel.
	chat.On("RecentMessages", mock.Anything, "m-1", mock.Anything).Return([]models.ChatMessage{
		{Text: "How did I do?", User: models.ChatUser{ID: "u-1"}},
	}, nil).Once()
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(turns []models.ChatTurn) bool {
		return len(turns) >= 2 &&
			turns[0].Role == "system" && strings.Contains(turns[0].Content, "Candidate scored 9/10.") &&
			turns[len(turns)-1].Content == "How did I do?"
	})).Return("You scored 9 out of 10.", nil).Once()
	chat.On("UpsertUser", mock.Anything, mock.MatchedBy(func(u models.ChatUser) bool { return u.ID == "a-1" })).Return(nil).Once()
	chat.On("SendMessage", mock.Anything, "m-1", "You scored 9 out of 10.", mock.Anything).Return(nil).Once()

	res, err = lifecycle.HandleEvent(ctx, models.MessageNewEvent{ChannelID: "m-1", UserID: "u-1", Text: "How did I do?"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)

	ai.AssertExpectations(t)
	chat.AssertExpectations(t)
	jobs.AssertExpectations(t)
	summarizer.AssertExpectations(t)
	completer.AssertExpectations(t)
}
