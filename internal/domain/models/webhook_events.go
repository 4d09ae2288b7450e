// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EventKind is the webhook `type` discriminator.
type EventKind string

const (
	EventSessionStarted     EventKind = "call.session_started"
	EventParticipantLeft    EventKind = "call.session_participant_left"
	EventSessionEnded       EventKind = "call.session_ended"
	EventTranscriptionReady EventKind = "call.transcription_ready"
	EventRecordingReady     EventKind = "call.recording_ready"
	EventMessageNew         EventKind = "message.new"
)

var (
	// ErrInvalidPayload is returned when the body is not a JSON webhook envelope.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrMissingMeetingID is returned when the event carries no usable meeting identifier.
	ErrMissingMeetingID = errors.New("missing meetingId")
	// ErrMissingMessageFields is returned for chat events lacking author, channel or text.
	ErrMissingMessageFields = errors.New("missing userId, channelId or text")
	// ErrMissingRecordingURL is returned for recording events without a download url.
	ErrMissingRecordingURL = errors.New("missing recording url")
)

// WebhookEvent is a verified, parsed call provider notification. The concrete
// types below are the only implementations.
type WebhookEvent interface {
	Kind() EventKind
	MeetingID() string
	isWebhookEvent()
}

// SessionStartedEvent signals that the call session for a meeting has begun.
type SessionStartedEvent struct {
	Meeting string
}

// ParticipantLeftEvent signals that someone left the call.
type ParticipantLeftEvent struct {
	Meeting string
}

// SessionEndedEvent signals that the call session has finished.
type SessionEndedEvent struct {
	Meeting string
}

// TranscriptionReadyEvent carries the provider's own transcript location.
type TranscriptionReadyEvent struct {
	Meeting       string
	TranscriptURL string
}

// RecordingReadyEvent carries the location of the call recording.
type RecordingReadyEvent struct {
	Meeting      string
	RecordingURL string
}

// MessageNewEvent is a chat message posted in a meeting's channel.
type MessageNewEvent struct {
	ChannelID string
	UserID    string
	Text      string
}

// UnsupportedEvent is any event type this service does not act on.
type UnsupportedEvent struct {
	Type string
}

func (SessionStartedEvent) Kind() EventKind     { return EventSessionStarted }
func (ParticipantLeftEvent) Kind() EventKind    { return EventParticipantLeft }
func (SessionEndedEvent) Kind() EventKind       { return EventSessionEnded }
func (TranscriptionReadyEvent) Kind() EventKind { return EventTranscriptionReady }
func (RecordingReadyEvent) Kind() EventKind     { return EventRecordingReady }
func (MessageNewEvent) Kind() EventKind         { return EventMessageNew }
func (e UnsupportedEvent) Kind() EventKind      { return EventKind(e.Type) }

func (e SessionStartedEvent) MeetingID() string     { return e.Meeting }
func (e ParticipantLeftEvent) MeetingID() string    { return e.Meeting }
func (e SessionEndedEvent) MeetingID() string       { return e.Meeting }
func (e TranscriptionReadyEvent) MeetingID() string { return e.Meeting }
func (e RecordingReadyEvent) MeetingID() string     { return e.Meeting }
func (e MessageNewEvent) MeetingID() string         { return e.ChannelID }
func (UnsupportedEvent) MeetingID() string          { return "" }

func (SessionStartedEvent) isWebhookEvent()     {}
func (ParticipantLeftEvent) isWebhookEvent()    {}
func (SessionEndedEvent) isWebhookEvent()       {}
func (TranscriptionReadyEvent) isWebhookEvent() {}
func (RecordingReadyEvent) isWebhookEvent()     {}
func (MessageNewEvent) isWebhookEvent()         {}
func (UnsupportedEvent) isWebhookEvent()        {}

type webhookEnvelope struct {
	Type string `json:"type"`
	Call *struct {
		CID    string         `json:"cid"`
		Custom map[string]any `json:"custom"`
	} `json:"call"`
	CallCID       string `json:"call_cid"`
	CallRecording *struct {
		URL string `json:"url"`
	} `json:"call_recording"`
	CallTranscription *struct {
		URL string `json:"url"`
	} `json:"call_transcription"`
	ChannelID string `json:"channel_id"`
	User      *struct {
		ID string `json:"id"`
	} `json:"user"`
	Message *struct {
		Text string `json:"text"`
	} `json:"message"`
}

// customMeetingID reads call.custom.meetingId, the id stamped on the call when it was created.
func (e *webhookEnvelope) customMeetingID() string {
	if e.Call == nil || e.Call.Custom == nil {
		return ""
	}
	id, _ := e.Call.Custom["meetingId"].(string)
	return strings.TrimSpace(id)
}

// cidMeetingID reads the id part of a "<type>:<id>" call cid.
func (e *webhookEnvelope) cidMeetingID() string {
	cid := e.CallCID
	if cid == "" && e.Call != nil {
		cid = e.Call.CID
	}
	_, id, found := strings.Cut(cid, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(id)
}

// ParseWebhookEvent turns a raw webhook body into a typed event. It must only be
// called after the signature has been verified.
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	}

	switch EventKind(env.Type) {
	case EventSessionStarted:
		id := env.customMeetingID()
		if id == "" {
			return nil, ErrMissingMeetingID
		}
		return SessionStartedEvent{Meeting: id}, nil

	case EventSessionEnded:
		id := env.customMeetingID()
		if id == "" {
			return nil, ErrMissingMeetingID
		}
		return SessionEndedEvent{Meeting: id}, nil

	case EventParticipantLeft:
		id := env.cidMeetingID()
		if id == "" {
			return nil, ErrMissingMeetingID
		}
		return ParticipantLeftEvent{Meeting: id}, nil

	case EventTranscriptionReady:
		evt := TranscriptionReadyEvent{Meeting: env.cidMeetingID()}
		if env.CallTranscription != nil {
			evt.TranscriptURL = env.CallTranscription.URL
		}
		return evt, nil

	case EventRecordingReady:
		id := env.cidMeetingID()
		if id == "" {
			return nil, ErrMissingMeetingID
		}
		if env.CallRecording == nil || env.CallRecording.URL == "" {
			return nil, ErrMissingRecordingURL
		}
		return RecordingReadyEvent{Meeting: id, RecordingURL: env.CallRecording.URL}, nil

	case EventMessageNew:
		evt := MessageNewEvent{ChannelID: strings.TrimSpace(env.ChannelID)}
		if env.User != nil {
			evt.UserID = env.User.ID
		}
		if env.Message != nil {
			evt.Text = env.Message.Text
		}
		if evt.UserID == "" || evt.ChannelID == "" || evt.Text == "" {
			return nil, ErrMissingMessageFields
		}
		return evt, nil
	}

	return UnsupportedEvent{Type: env.Type}, nil
}
