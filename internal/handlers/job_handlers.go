// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/constants"
)

// defaultRedeliveryDelay is used when no backoff schedule is configured.
const defaultRedeliveryDelay = 30 * time.Second

// JobHandler settles summarization jobs pulled from the job stream.
type JobHandler struct {
	summarization *service.SummarizationService
	maxDeliver    uint64
	backoff       []time.Duration
}

// NewJobHandler creates a JobHandler. maxDeliver and backoff must match the
// consumer so the last delivery is recognized.
func NewJobHandler(summarization *service.SummarizationService, maxDeliver int, backoff []time.Duration) *JobHandler {
	if maxDeliver <= 0 {
		maxDeliver = 1
	}
	return &JobHandler{
		summarization: summarization,
		maxDeliver:    uint64(maxDeliver),
		backoff:       backoff,
	}
}

var _ domain.MessageHandler = (*JobHandler)(nil)

// HandlerReady implements [domain.MessageHandler] interface
func (h *JobHandler) HandlerReady() bool {
	return h.summarization != nil && h.summarization.ServiceReady()
}

// HandleMessage implements [domain.MessageHandler] interface. A job is acked once
// the meeting is completed, terminated when no retry can help, and otherwise
// nak'ed for a delayed redelivery.
func (h *JobHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	ctx = logging.AppendCtx(ctx, slog.String("subject", msg.Subject()))

	am, ok := msg.(domain.AckableMessage)
	if !ok {
		slog.WarnContext(ctx, "job message cannot be acknowledged, ignored")
		return
	}
	delivery := am.Delivery()
	ctx = logging.AppendCtx(ctx, slog.Uint64("delivery", delivery))

	job, err := models.DecodeProcessingJob(msg.Header(constants.ContentTypeHeader), msg.Data())
	if err != nil {
		slog.ErrorContext(ctx, "malformed processing job, terminating", logging.ErrKey, err)
		h.settle(ctx, "term", am.Term())
		return
	}
	ctx = logging.AppendCtx(ctx, slog.String("meeting_id", job.MeetingID))

	start := time.Now()
	err = h.summarization.Process(ctx, job)
	if err == nil {
		slog.InfoContext(ctx, "processing job completed", "duration", time.Since(start).String())
		h.settle(ctx, "ack", am.Ack())
		return
	}

	switch {
	case service.IsPermanent(err):
		slog.ErrorContext(ctx, "processing job failed permanently, meeting left in processing",
			logging.ErrKey, err, logging.PriorityCritical())
		h.settle(ctx, "term", am.Term())
	case delivery >= h.maxDeliver:
		slog.ErrorContext(ctx, "processing job failed on its last delivery, meeting left in processing",
			logging.ErrKey, err, "max_deliver", h.maxDeliver, logging.PriorityCritical())
		h.settle(ctx, "term", am.Term())
	default:
		delay := h.redeliveryDelay(delivery)
		slog.WarnContext(ctx, "processing job failed, redelivering",
			logging.ErrKey, err, "redelivery_delay", delay.String())
		h.settle(ctx, "nak", am.NakWithDelay(delay))
	}
}

// redeliveryDelay follows the backoff schedule, holding at its last step.
func (h *JobHandler) redeliveryDelay(delivery uint64) time.Duration {
	if len(h.backoff) == 0 {
		return defaultRedeliveryDelay
	}
	i := int(delivery) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(h.backoff) {
		i = len(h.backoff) - 1
	}
	return h.backoff[i]
}

func (h *JobHandler) settle(ctx context.Context, action string, err error) {
	if err != nil {
		slog.ErrorContext(ctx, "error settling job message", "action", action, logging.ErrKey, err)
	}
}
