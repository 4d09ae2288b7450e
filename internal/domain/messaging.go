// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Header(key string) string
	Respond(data []byte) error
	HasReply() bool
}

// AckableMessage is a message from a durable stream that must be settled.
type AckableMessage interface {
	Message
	Ack() error
	NakWithDelay(delay time.Duration) error
	Term() error
	// Delivery is the 1-based delivery attempt of this message.
	Delivery() uint64
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// JobPublisher enqueues background jobs.
type JobPublisher interface {
	// PublishProcessingJob enqueues summarization. Publishes that share a dedupID
	// within the stream's duplicate window are stored once.
	PublishProcessingJob(ctx context.Context, job models.ProcessingJob, dedupID string) error
}
