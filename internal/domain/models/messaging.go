// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Job and stream names for the summarization pipeline.
const (
	// ProcessingJobEvent is the event name carried in the job headers.
	ProcessingJobEvent = "meetings/processing"
	// ProcessingJobSubject is the NATS subject processing jobs are published on.
	ProcessingJobSubject = "interview.meetings.processing"
	// JobStreamName is the JetStream stream that persists jobs until they are acked.
	JobStreamName = "INTERVIEW_JOBS"
	// ProcessingJobConsumer is the durable consumer name of the summarization worker.
	ProcessingJobConsumer = "meetings-processing-worker"
)

// Content types for job payloads.
const (
	ContentTypeMsgpack = "application/msgpack"
	ContentTypeJSON    = "application/json"
)

// ProcessingJob asks the worker to summarize a meeting's transcript and complete it.
type ProcessingJob struct {
	MeetingID         string            `json:"meetingId" msgpack:"meetingId"`
	Transcript        []TranscriptEntry `json:"transcript" msgpack:"transcript"`
	TranscriptText    string            `json:"transcriptText" msgpack:"transcriptText"`
	TranscriptEntries int               `json:"transcriptEntries" msgpack:"transcriptEntries"`
	// TranscriptURL is set instead of Transcript when the job is replayed from a stored reference.
	TranscriptURL string `json:"transcriptUrl,omitempty" msgpack:"transcriptUrl,omitempty"`
}

// NewProcessingJob builds the job for a meeting that just entered processing.
// A nil transcript (fetch failed) produces an empty job transcript.
func NewProcessingJob(meetingID string, transcript []TranscriptEntry, totalEntries int) (ProcessingJob, error) {
	if transcript == nil {
		transcript = []TranscriptEntry{}
	}
	text, err := SerializeTranscript(transcript)
	if err != nil {
		return ProcessingJob{}, err
	}
	return ProcessingJob{
		MeetingID:         meetingID,
		Transcript:        transcript,
		TranscriptText:    text,
		TranscriptEntries: totalEntries,
	}, nil
}

// EncodeProcessingJob renders a job for the wire.
func EncodeProcessingJob(job ProcessingJob) ([]byte, error) {
	return msgpack.Marshal(job)
}

// DecodeProcessingJob reads a job in either wire format.
func DecodeProcessingJob(contentType string, data []byte) (ProcessingJob, error) {
	var job ProcessingJob
	var err error
	switch contentType {
	case ContentTypeJSON:
		err = json.Unmarshal(data, &job)
	default:
		err = msgpack.Unmarshal(data, &job)
	}
	if err != nil {
		return ProcessingJob{}, fmt.Errorf("decoding processing job: %w", err)
	}
	if job.MeetingID == "" {
		return ProcessingJob{}, fmt.Errorf("decoding processing job: %w", ErrMissingMeetingID)
	}
	return job, nil
}
