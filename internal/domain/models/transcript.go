// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
)

// maxTranscriptLine bounds a single JSONL line; transcript chunks are short sentences.
const maxTranscriptLine = 1 << 20

// Transcript entry members the service reads. Every other member is carried as is.
const (
	speakerIDMember = "speaker_id"
	textMember      = "text"
	userMember      = "user"
)

// TranscriptEntry is one utterance in a call transcript. Members other than the
// speaker id and text (type, timestamps, speaker labels) are kept verbatim in
// Extra, so the stored transcript matches what the AI backend returned.
type TranscriptEntry struct {
	SpeakerID string                     `json:"speaker_id" msgpack:"speaker_id"`
	Text      string                     `json:"text" msgpack:"text"`
	Extra     map[string]json.RawMessage `json:"-" msgpack:"extra,omitempty"`
}

// UnmarshalJSON accepts any JSON object. A speaker id or text that is not a
// string is kept as its literal JSON text.
func (e *TranscriptEntry) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}

	entry := TranscriptEntry{
		SpeakerID: takeString(members, speakerIDMember),
		Text:      takeString(members, textMember),
	}
	if len(members) > 0 {
		entry.Extra = members
	}
	*e = entry
	return nil
}

// MarshalJSON writes the entry back with its extra members.
func (e TranscriptEntry) MarshalJSON() ([]byte, error) {
	members, err := e.members()
	if err != nil {
		return nil, err
	}
	return json.Marshal(members)
}

func (e TranscriptEntry) members() (map[string]json.RawMessage, error) {
	members := make(map[string]json.RawMessage, len(e.Extra)+2)
	for k, v := range e.Extra {
		members[k] = v
	}
	for k, v := range map[string]string{speakerIDMember: e.SpeakerID, textMember: e.Text} {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		members[k] = raw
	}
	return members, nil
}

// takeString removes key from members and returns it as a string.
func takeString(members map[string]json.RawMessage, key string) string {
	raw, ok := members[key]
	if !ok {
		return ""
	}
	delete(members, key)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if trimmed := bytes.TrimSpace(raw); !bytes.Equal(trimmed, []byte("null")) {
		return string(trimmed)
	}
	return ""
}

// SpeakerName is the display identity attached to a transcript entry.
type SpeakerName struct {
	Name string `json:"name"`
}

// SpeakerEntry is a transcript entry annotated with the speaker's name.
type SpeakerEntry struct {
	TranscriptEntry
	User SpeakerName `json:"user"`
}

// MarshalJSON writes the entry members plus the user annotation.
func (e SpeakerEntry) MarshalJSON() ([]byte, error) {
	members, err := e.TranscriptEntry.members()
	if err != nil {
		return nil, err
	}
	user, err := json.Marshal(e.User)
	if err != nil {
		return nil, err
	}
	members[userMember] = user
	return json.Marshal(members)
}

// UnknownSpeaker labels entries whose speaker id matches no user or agent.
const UnknownSpeaker = "Unknown"

// ParseTranscript accepts either a JSON array of entries or line-delimited JSON.
func ParseTranscript(raw []byte) ([]TranscriptEntry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []TranscriptEntry{}, nil
	}

	if trimmed[0] == '[' {
		var entries []TranscriptEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("invalid transcript array: %w", err)
		}
		return entries, nil
	}

	entries := []TranscriptEntry{}
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), maxTranscriptLine)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var entry TranscriptEntry
		if err := json.Unmarshal(text, &entry); err != nil {
			return nil, fmt.Errorf("invalid transcript line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	return entries, nil
}

// SerializeTranscript renders entries in the persisted form stored on the meeting record.
func SerializeTranscript(entries []TranscriptEntry) (string, error) {
	if entries == nil {
		entries = []TranscriptEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SpeakerIDs returns the distinct speaker ids in first-seen order.
func SpeakerIDs(entries []TranscriptEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.SpeakerID == "" {
			continue
		}
		if _, ok := seen[e.SpeakerID]; ok {
			continue
		}
		seen[e.SpeakerID] = struct{}{}
		ids = append(ids, e.SpeakerID)
	}
	return ids
}

// AnnotateSpeakers attaches display names. Ids missing from names become UnknownSpeaker.
func AnnotateSpeakers(entries []TranscriptEntry, names map[string]string) []SpeakerEntry {
	out := make([]SpeakerEntry, 0, len(entries))
	for _, e := range entries {
		name, ok := names[e.SpeakerID]
		if !ok || name == "" {
			name = UnknownSpeaker
		}
		out = append(out, SpeakerEntry{TranscriptEntry: e, User: SpeakerName{Name: name}})
	}
	return out
}
