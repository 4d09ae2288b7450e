// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// StartAgentRequest asks the AI backend to join a call.
type StartAgentRequest struct {
	CallID            string `json:"call_id"`
	AgentName         string `json:"agent_name"`
	AgentInstructions string `json:"agent_instructions"`
	AgentID           string `json:"agent_id"`
}

// TranscriptResult is the AI backend's transcript of a call.
type TranscriptResult struct {
	Transcript   []TranscriptEntry `json:"transcript"`
	TotalEntries int               `json:"total_entries"`
}

// Chat roles understood by the conversational model.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one message of a model conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatUser is an identity in the meeting chat.
type ChatUser struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// ChatMessage is a message read back from a chat channel.
type ChatMessage struct {
	ID     string   `json:"id"`
	Text   string   `json:"text"`
	User   ChatUser `json:"user"`
	Silent bool     `json:"silent,omitempty"`
}
