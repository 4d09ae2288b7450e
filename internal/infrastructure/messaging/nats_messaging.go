// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/constants"
)

// INatsConn is the part of a NATS connection used for readiness checks.
type INatsConn interface {
	IsConnected() bool
}

// JetStreamPublisher publishes messages into a stream and waits for the ack.
type JetStreamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// MessageBuilder is the builder for the message and sends it to the NATS server.
type MessageBuilder struct {
	NatsConn  INatsConn
	JetStream JetStreamPublisher
}

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(natsConn INatsConn, js JetStreamPublisher) *MessageBuilder {
	return &MessageBuilder{
		NatsConn:  natsConn,
		JetStream: js,
	}
}

var _ domain.JobPublisher = (*MessageBuilder)(nil)

// IsReady reports whether the underlying connection is up.
func (m *MessageBuilder) IsReady() bool {
	return m.NatsConn != nil && m.NatsConn.IsConnected()
}

// publish sends the message to the stream. The dedupID becomes the Nats-Msg-Id,
// so the server stores a message once per duplicate window.
func (m *MessageBuilder) publish(ctx context.Context, msg *nats.Msg, dedupID string) error {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	var opts []jetstream.PublishOpt
	if dedupID != "" {
		opts = append(opts, jetstream.WithMsgID(dedupID))
	}

	ack, err := m.JetStream.PublishMsg(ctx, msg, opts...)
	if err != nil {
		slog.ErrorContext(ctx, "error publishing message to JetStream", logging.ErrKey, err, "subject", msg.Subject)
		return domain.NewUnavailableError("failed to publish job", err)
	}
	if ack != nil && ack.Duplicate {
		slog.InfoContext(ctx, "duplicate job dropped by the stream", "subject", msg.Subject, "msg_id", dedupID)
		return nil
	}
	slog.DebugContext(ctx, "published message to JetStream", "subject", msg.Subject, "msg_id", dedupID)
	return nil
}

// PublishProcessingJob enqueues the summarization of a meeting.
func (m *MessageBuilder) PublishProcessingJob(ctx context.Context, job models.ProcessingJob, dedupID string) error {
	data, err := models.EncodeProcessingJob(job)
	if err != nil {
		slog.ErrorContext(ctx, "error encoding processing job", logging.ErrKey, err)
		return domain.NewInternalError("failed to encode processing job", err)
	}

	msg := nats.NewMsg(models.ProcessingJobSubject)
	msg.Data = data
	msg.Header.Set(constants.ContentTypeHeader, models.ContentTypeMsgpack)
	msg.Header.Set(constants.EventNameHeader, models.ProcessingJobEvent)
	msg.Header.Set(constants.MeetingIDHeader, job.MeetingID)

	return m.publish(ctx, msg, dedupID)
}
