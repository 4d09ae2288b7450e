// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-interview-service/pkg/concurrent"
)

// JobStreamConfig describes the job stream and its durable pull consumer.
type JobStreamConfig struct {
	Stream   string
	Subject  string
	Consumer string
	// Duplicates is the window in which publishes sharing a Nats-Msg-Id are stored once.
	Duplicates time.Duration
	MaxDeliver int
	// BackOff spaces redeliveries of a message whose ack deadline passed.
	BackOff   []time.Duration
	AckWait   time.Duration
	BatchSize int
	FetchWait time.Duration
}

// DefaultJobStreamConfig returns the processing job stream settings.
func DefaultJobStreamConfig(maxDeliver int) JobStreamConfig {
	if maxDeliver <= 0 {
		maxDeliver = 5
	}
	return JobStreamConfig{
		Stream:     models.JobStreamName,
		Subject:    models.ProcessingJobSubject,
		Consumer:   models.ProcessingJobConsumer,
		Duplicates: 10 * time.Minute,
		MaxDeliver: maxDeliver,
		BackOff:    []time.Duration{30 * time.Second, time.Minute, 2 * time.Minute, 5 * time.Minute},
		AckWait:    5 * time.Minute,
		BatchSize:  4,
		FetchWait:  5 * time.Second,
	}
}

// StreamConfig is the JetStream stream definition. Work-queue retention removes a
// job once it is acked or terminated.
func (c JobStreamConfig) StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:       c.Stream,
		Subjects:   []string{c.Subject},
		Retention:  jetstream.WorkQueuePolicy,
		Storage:    jetstream.FileStorage,
		Duplicates: c.Duplicates,
	}
}

// ConsumerConfig is the durable consumer definition.
func (c JobStreamConfig) ConsumerConfig() jetstream.ConsumerConfig {
	cfg := jetstream.ConsumerConfig{
		Durable:       c.Consumer,
		FilterSubject: c.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.AckWait,
		MaxDeliver:    c.MaxDeliver,
	}
	// The server requires MaxDeliver to exceed the number of backoff steps.
	if len(c.BackOff) > 0 && len(c.BackOff) < c.MaxDeliver {
		cfg.BackOff = c.BackOff
	}
	return cfg
}

// StreamManager creates streams. jetstream.JetStream implements it.
type StreamManager interface {
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// EnsureJobStream creates or updates the job stream and its consumer.
func EnsureJobStream(ctx context.Context, js StreamManager, cfg JobStreamConfig) (jetstream.Consumer, error) {
	stream, err := js.CreateOrUpdateStream(ctx, cfg.StreamConfig())
	if err != nil {
		return nil, fmt.Errorf("creating stream %s: %w", cfg.Stream, err)
	}
	consumer, err := stream.CreateOrUpdateConsumer(ctx, cfg.ConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("creating consumer %s: %w", cfg.Consumer, err)
	}
	return consumer, nil
}

// JobFetcher pulls message batches. jetstream.Consumer implements it.
type JobFetcher interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
}

// JobConsumer pulls jobs and hands them to a handler, a batch at a time.
type JobConsumer struct {
	fetcher JobFetcher
	handler domain.MessageHandler
	pool    *concurrent.WorkerPool
	cfg     JobStreamConfig
	// idle is waited between failed fetches.
	idle time.Duration
}

// NewJobConsumer creates a consumer processing up to concurrency jobs at once.
func NewJobConsumer(fetcher JobFetcher, handler domain.MessageHandler, cfg JobStreamConfig, concurrency int) *JobConsumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = concurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = 5 * time.Second
	}
	return &JobConsumer{
		fetcher: fetcher,
		handler: handler,
		pool:    concurrent.NewWorkerPool(concurrency),
		cfg:     cfg,
		idle:    time.Second,
	}
}

// Run fetches until ctx is cancelled. A batch is fully handled before the next
// fetch, so at most BatchSize jobs are in flight.
func (c *JobConsumer) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "job consumer started", "consumer", c.cfg.Consumer, "subject", c.cfg.Subject)
	for {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "job consumer stopped", "consumer", c.cfg.Consumer)
			return nil
		}
		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			slog.WarnContext(ctx, "error fetching jobs", logging.ErrKey, err, "consumer", c.cfg.Consumer)
			select {
			case <-ctx.Done():
			case <-time.After(c.idle):
			}
		}
	}
}

// poll runs one fetch and handles what it returned.
func (c *JobConsumer) poll(ctx context.Context) error {
	if !c.handler.HandlerReady() {
		return errors.New("job handler is not ready")
	}

	batch, err := c.fetcher.Fetch(c.cfg.BatchSize, jetstream.FetchMaxWait(c.cfg.FetchWait))
	if err != nil {
		return err
	}

	var tasks []concurrent.Task
	for msg := range batch.Messages() {
		tasks = append(tasks, func(ctx context.Context) error {
			msgCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Headers()))
			c.handler.HandleMessage(msgCtx, NewJetStreamMessage(msg))
			return nil
		})
	}
	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		slog.DebugContext(ctx, "fetch ended early", logging.ErrKey, err, "received", len(tasks))
	}

	for _, err := range c.pool.RunAll(ctx, tasks...) {
		slog.WarnContext(ctx, "job not handled", logging.ErrKey, err)
	}
	return nil
}
