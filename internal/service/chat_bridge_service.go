// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/llm"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/utils"
)

const chatSystemPromptTemplate = `You are an AI assistant that helps the user to revisit a recently completed meeting.
Below is a data report of the meeting. Use it to answer his/her questions:
{{summary}}

The following data are your uploaded trained data:
{{instructions}}

The client may ask questions about the meeting, request clarifications, or ask for follow-up actions.
Always base your responses on the meeting summary above.

You also have access to the recent conversation history between you and the user. Use the context of previous messages to provide relevant, coherent, and helpful responses. If the user's question refers to something discussed earlier, make sure to take that into account and maintain continuity in the conversation.

If the summary does not contain enough information to answer a question, politely let the user know.

Be concise, helpful, and focus on providing accurate information from the meeting and the ongoing conversation.`

// ChatSystemPrompt grounds the assistant in the meeting summary and the agent's instructions.
func ChatSystemPrompt(summary, instructions string) string {
	return strings.NewReplacer("{{summary}}", summary, "{{instructions}}", instructions).
		Replace(chatSystemPromptTemplate)
}

// ChatBridgeService answers questions about a completed meeting in its chat channel.
type ChatBridgeService struct {
	MeetingRepository domain.MeetingRepository
	AgentRepository   domain.AgentRepository
	ChatService       domain.ChatService
	Completer         domain.ChatCompleter
	// Budget trims history to the model's window; nil keeps everything.
	Budget *llm.TokenBudget
}

// NewChatBridgeService creates a new ChatBridgeService.
func NewChatBridgeService(
	meetingRepository domain.MeetingRepository,
	agentRepository domain.AgentRepository,
	chatService domain.ChatService,
	completer domain.ChatCompleter,
	budget *llm.TokenBudget,
) *ChatBridgeService {
	return &ChatBridgeService{
		MeetingRepository: meetingRepository,
		AgentRepository:   agentRepository,
		ChatService:       chatService,
		Completer:         completer,
		Budget:            budget,
	}
}

// ServiceReady checks if the service is ready for use.
func (s *ChatBridgeService) ServiceReady() bool {
	return s.MeetingRepository != nil &&
		s.AgentRepository != nil &&
		s.ChatService != nil &&
		s.Completer != nil
}

// HandleMessage replies to a chat message as the meeting's agent.
func (s *ChatBridgeService) HandleMessage(ctx context.Context, e models.MessageNewEvent) (*EventResult, error) {
	meeting, err := s.MeetingRepository.GetMeeting(ctx, e.ChannelID)
	if err != nil {
		if t := domain.GetErrorType(err); t != domain.ErrorTypeNotFound && t != domain.ErrorTypeValidation {
			slog.ErrorContext(ctx, "error getting meeting", logging.ErrKey, err)
			return nil, err
		}
		return nil, domain.NewNotFoundError("Meeting not found", err)
	}
	if meeting.Status != models.MeetingStatusCompleted {
		slog.DebugContext(ctx, "chat message for meeting that is not completed", "status", meeting.Status)
		return nil, domain.NewNotFoundError("Meeting not found")
	}

	agent, err := s.AgentRepository.GetAgent(ctx, meeting.AgentID)
	if err != nil {
		slog.ErrorContext(ctx, "error getting meeting agent", logging.ErrKey, err, "agent_id", meeting.AgentID)
		return nil, notFoundAs(err, "Agent not found")
	}

	if e.UserID == agent.ID {
		slog.DebugContext(ctx, "message authored by the agent, no reply")
		return success(), nil
	}

	recent, err := s.ChatService.RecentMessages(ctx, e.ChannelID, constants.ChatHistoryLimit)
	if err != nil {
		slog.ErrorContext(ctx, "error loading chat history", logging.ErrKey, err)
		return nil, domain.NewInternalError("failed to load chat history", err)
	}

	turns := s.Budget.FitTurns(
		models.ChatTurn{Role: models.RoleSystem, Content: ChatSystemPrompt(utils.Deref(meeting.Summary), agent.Instructions)},
		historyTurns(recent, agent.ID),
		models.ChatTurn{Role: models.RoleUser, Content: e.Text},
	)

	reply, err := s.Completer.Complete(ctx, turns)
	if err != nil {
		slog.ErrorContext(ctx, "chat completion failed", logging.ErrKey, err)
		return nil, domain.NewInternalError("Error from OpenAI", err)
	}

	author := models.ChatUser{
		ID:    agent.ID,
		Name:  agent.Name,
		Image: utils.InitialsAvatarURL(agent.Name),
	}
	if err := s.ChatService.UpsertUser(ctx, author); err != nil {
		slog.ErrorContext(ctx, "error upserting agent chat user", logging.ErrKey, err)
		return nil, domain.NewInternalError("failed to post reply", err)
	}
	if err := s.ChatService.SendMessage(ctx, e.ChannelID, reply, author); err != nil {
		slog.ErrorContext(ctx, "error sending reply", logging.ErrKey, err)
		return nil, domain.NewInternalError("failed to post reply", err)
	}

	slog.InfoContext(ctx, "chat reply posted", "history_turns", len(turns)-2)
	return success(), nil
}

// historyTurns keeps the non-blank messages, the agent's as assistant turns.
func historyTurns(messages []models.ChatMessage, agentID string) []models.ChatTurn {
	if len(messages) > constants.ChatHistoryLimit {
		messages = messages[len(messages)-constants.ChatHistoryLimit:]
	}
	turns := make([]models.ChatTurn, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		role := models.RoleUser
		if m.User.ID == agentID {
			role = models.RoleAssistant
		}
		turns = append(turns, models.ChatTurn{Role: role, Content: m.Text})
	}
	return turns
}
