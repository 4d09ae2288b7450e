// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingStatusUpcoming   MeetingStatus = "upcoming"
	MeetingStatusActive     MeetingStatus = "active"
	MeetingStatusCompleted  MeetingStatus = "completed"
	MeetingStatusProcessing MeetingStatus = "processing"
	MeetingStatusCancelled  MeetingStatus = "cancelled"
)

// activationBlocked lists the statuses a session start must never leave.
var activationBlocked = []MeetingStatus{
	MeetingStatusActive,
	MeetingStatusCompleted,
	MeetingStatusCancelled,
	MeetingStatusProcessing,
}

// ActivationBlockedStatuses returns the statuses that reject a session start.
func ActivationBlockedStatuses() []MeetingStatus {
	out := make([]MeetingStatus, len(activationBlocked))
	copy(out, activationBlocked)
	return out
}

// CanActivate reports whether a session start may move a meeting in this status to active.
func (s MeetingStatus) CanActivate() bool {
	for _, blocked := range activationBlocked {
		if s == blocked {
			return false
		}
	}
	return true
}

// CanBeginProcessing reports whether a session end may move the meeting to processing.
func (s MeetingStatus) CanBeginProcessing() bool {
	return s == MeetingStatusActive
}

// CanCancel reports whether the meeting may still be cancelled.
func (s MeetingStatus) CanCancel() bool {
	return s == MeetingStatusUpcoming || s == MeetingStatusActive
}

// IsTerminal reports whether no further lifecycle transition applies.
func (s MeetingStatus) IsTerminal() bool {
	return s == MeetingStatusCompleted || s == MeetingStatusCancelled
}

// IsValid reports whether s is one of the known statuses.
func (s MeetingStatus) IsValid() bool {
	switch s {
	case MeetingStatusUpcoming, MeetingStatusActive, MeetingStatusCompleted,
		MeetingStatusProcessing, MeetingStatusCancelled:
		return true
	}
	return false
}

// Meeting is a scheduled interview session between a user and an AI agent.
// The id is shared with the call provider's session identifier.
type Meeting struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	UserID        string        `json:"userId"`
	AgentID       string        `json:"agentId"`
	Status        MeetingStatus `json:"status"`
	StartedAt     *time.Time    `json:"startedAt,omitempty"`
	EndedAt       *time.Time    `json:"endedAt,omitempty"`
	TranscriptURL *string       `json:"transcriptUrl,omitempty"`
	RecordingURL  *string       `json:"recordingUrl,omitempty"`
	Summary       *string       `json:"summary,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Activate applies the session-start mutation. Callers must have checked CanActivate.
func (m *Meeting) Activate(at time.Time) {
	m.Status = MeetingStatusActive
	m.StartedAt = &at
	m.UpdatedAt = at
}

// BeginProcessing applies the session-end mutation. A nil transcript is stored as null.
func (m *Meeting) BeginProcessing(at time.Time, transcript *string) {
	m.Status = MeetingStatusProcessing
	m.EndedAt = &at
	m.TranscriptURL = transcript
	m.UpdatedAt = at
}

// Complete stores the summary together with the completed status.
func (m *Meeting) Complete(summary string, at time.Time) {
	m.Summary = &summary
	m.Status = MeetingStatusCompleted
	m.UpdatedAt = at
}

// Cancel moves the meeting to cancelled.
func (m *Meeting) Cancel(at time.Time) {
	m.Status = MeetingStatusCancelled
	m.UpdatedAt = at
}

// SetRecordingURL records where the call recording can be downloaded.
func (m *Meeting) SetRecordingURL(url string, at time.Time) {
	m.RecordingURL = &url
	m.UpdatedAt = at
}
