// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTranscript(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     []TranscriptEntry
		wantErr  bool
		errMatch string
	}{
		{
			name: "json array",
			raw:  `[{"speaker_id":"u1","text":"hello"},{"speaker_id":"a1","text":"hi there"}]`,
			want: []TranscriptEntry{{SpeakerID: "u1", Text: "hello"}, {SpeakerID: "a1", Text: "hi there"}},
		},
		{
			name: "jsonl with blank lines",
			raw:  "{\"speaker_id\":\"u1\",\"text\":\"one\",\"start_ts\":10}\n\n{\"speaker_id\":\"u2\",\"text\":\"two\"}\n",
			want: []TranscriptEntry{
				{SpeakerID: "u1", Text: "one", Extra: map[string]json.RawMessage{"start_ts": json.RawMessage(`10`)}},
				{SpeakerID: "u2", Text: "two"},
			},
		},
		{
			name: "empty",
			raw:  "   ",
			want: []TranscriptEntry{},
		},
		{
			name: "fractional timestamps and unknown members",
			raw:  `[{"speaker_id":"u1","text":"hi","start_ts":1.5,"speaker":"Grace"}]`,
			want: []TranscriptEntry{{
				SpeakerID: "u1",
				Text:      "hi",
				Extra: map[string]json.RawMessage{
					"start_ts": json.RawMessage(`1.5`),
					"speaker":  json.RawMessage(`"Grace"`),
				},
			}},
		},
		{
			name: "non-string speaker id keeps its literal",
			raw:  `[{"speaker_id":42,"text":null}]`,
			want: []TranscriptEntry{{SpeakerID: "42"}},
		},
		{
			name:    "entry that is not an object",
			raw:     `["hello"]`,
			wantErr: true,
		},
		{
			name:     "broken jsonl line",
			raw:      "{\"speaker_id\":\"u1\",\"text\":\"one\"}\nnot-json",
			wantErr:  true,
			errMatch: "line 2",
		},
		{
			name:    "broken array",
			raw:     `[{"speaker_id":`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTranscript([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMatch != "" {
					assert.Contains(t, err.Error(), tt.errMatch)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSerializeTranscript(t *testing.T) {
	s, err := SerializeTranscript(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", s)

	s, err = SerializeTranscript([]TranscriptEntry{{SpeakerID: "u1", Text: "hello"}})
	require.NoError(t, err)
	back, err := ParseTranscript([]byte(s))
	require.NoError(t, err)
	assert.Equal(t, "hello", back[0].Text)
}

func TestSerializeTranscript_KeepsUnknownMembers(t *testing.T) {
	raw := `[{"speaker_id":"u-1","speaker":"Grace","text":"Hi","timestamp":"2025-01-01T00:00:00Z","start_ts":1.5,"stop_ts":2.25}]`

	entries, err := ParseTranscript([]byte(raw))
	require.NoError(t, err)
	stored, err := SerializeTranscript(entries)
	require.NoError(t, err)

	assert.JSONEq(t, raw, stored)
}

func TestSpeakerIDsAndAnnotate(t *testing.T) {
	entries := []TranscriptEntry{
		{SpeakerID: "u1", Text: "a"},
		{SpeakerID: "agent-1", Text: "b"},
		{SpeakerID: "u1", Text: "c"},
		{SpeakerID: "ghost", Text: "d"},
		{Text: "no speaker"},
	}
	assert.Equal(t, []string{"u1", "agent-1", "ghost"}, SpeakerIDs(entries))

	annotated := AnnotateSpeakers(entries, map[string]string{"u1": "Ada", "agent-1": "Interviewer"})
	require.Len(t, annotated, 5)
	assert.Equal(t, "Ada", annotated[0].User.Name)
	assert.Equal(t, "Interviewer", annotated[1].User.Name)
	assert.Equal(t, UnknownSpeaker, annotated[3].User.Name)
	assert.Equal(t, UnknownSpeaker, annotated[4].User.Name)

	data, err := json.Marshal(annotated[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"speaker_id":"u1","text":"a","user":{"name":"Ada"}}`, string(data))

	withExtra := AnnotateSpeakers([]TranscriptEntry{{
		SpeakerID: "u1",
		Text:      "a",
		Extra:     map[string]json.RawMessage{"start_ts": json.RawMessage(`0.5`)},
	}}, map[string]string{"u1": "Ada"})
	data, err = json.Marshal(withExtra)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"speaker_id":"u1","text":"a","start_ts":0.5,"user":{"name":"Ada"}}]`, string(data))
}
