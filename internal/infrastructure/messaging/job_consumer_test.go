// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain/models"
)

// fakeMsg overrides the jetstream.Msg methods the consumer touches.
type fakeMsg struct {
	jetstream.Msg
	data      []byte
	headers   nats.Header
	delivered uint64
	acked     bool
}

func (f *fakeMsg) Data() []byte         { return f.data }
func (f *fakeMsg) Subject() string      { return models.ProcessingJobSubject }
func (f *fakeMsg) Headers() nats.Header { return f.headers }
func (f *fakeMsg) Ack() error           { f.acked = true; return nil }
func (f *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	if f.delivered == 0 {
		return nil, errors.New("no metadata")
	}
	return &jetstream.MsgMetadata{NumDelivered: f.delivered}, nil
}

type fakeBatch struct {
	jetstream.MessageBatch
	msgs chan jetstream.Msg
	err  error
}

func (b *fakeBatch) Messages() <-chan jetstream.Msg { return b.msgs }
func (b *fakeBatch) Error() error                   { return b.err }

func newBatch(err error, msgs ...jetstream.Msg) *fakeBatch {
	ch := make(chan jetstream.Msg, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &fakeBatch{msgs: ch, err: err}
}

// scriptedFetcher returns the queued batches, then cancels the run.
type scriptedFetcher struct {
	mu      sync.Mutex
	batches []jetstream.MessageBatch
	errs    []error
	cancel  context.CancelFunc
	calls   int
}

func (f *scriptedFetcher) Fetch(batch int, _ ...jetstream.FetchOpt) (jetstream.MessageBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	if len(f.batches) == 0 {
		f.cancel()
		return newBatch(nats.ErrTimeout), nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

type recordingHandler struct {
	mu       sync.Mutex
	subjects []string
	ready    bool
}

func (h *recordingHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subjects = append(h.subjects, msg.Subject())
	if am, ok := msg.(domain.AckableMessage); ok {
		_ = am.Ack()
	}
}

func (h *recordingHandler) HandlerReady() bool { return h.ready }

func TestJobConsumer_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m1 := &fakeMsg{data: []byte("a"), headers: nats.Header{}}
	m2 := &fakeMsg{data: []byte("b"), headers: nats.Header{}}
	m3 := &fakeMsg{data: []byte("c")}
	fetcher := &scriptedFetcher{
		batches: []jetstream.MessageBatch{newBatch(nil, m1, m2), newBatch(nats.ErrTimeout, m3)},
		cancel:  cancel,
	}
	handler := &recordingHandler{ready: true}

	consumer := NewJobConsumer(fetcher, handler, DefaultJobStreamConfig(5), 2)
	require.NoError(t, consumer.Run(ctx))

	assert.Len(t, handler.subjects, 3)
	assert.True(t, m1.acked)
	assert.True(t, m2.acked)
	assert.True(t, m3.acked)
}

func TestJobConsumer_RunRetriesFetchErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m1 := &fakeMsg{data: []byte("a")}
	fetcher := &scriptedFetcher{
		errs:    []error{errors.New("consumer deleted")},
		batches: []jetstream.MessageBatch{newBatch(nil, m1)},
		cancel:  cancel,
	}
	handler := &recordingHandler{ready: true}

	consumer := NewJobConsumer(fetcher, handler, DefaultJobStreamConfig(5), 1)
	consumer.idle = time.Millisecond
	require.NoError(t, consumer.Run(ctx))

	assert.True(t, m1.acked)
	assert.Equal(t, 3, fetcher.calls)
}

func TestJobStreamConfig(t *testing.T) {
	cfg := DefaultJobStreamConfig(5)

	stream := cfg.StreamConfig()
	assert.Equal(t, models.JobStreamName, stream.Name)
	assert.Equal(t, []string{models.ProcessingJobSubject}, stream.Subjects)
	assert.Equal(t, jetstream.WorkQueuePolicy, stream.Retention)
	assert.Equal(t, 10*time.Minute, stream.Duplicates)

	consumer := cfg.ConsumerConfig()
	assert.Equal(t, models.ProcessingJobConsumer, consumer.Durable)
	assert.Equal(t, jetstream.AckExplicitPolicy, consumer.AckPolicy)
	assert.Equal(t, 5, consumer.MaxDeliver)
	assert.Len(t, consumer.BackOff, 4)

	// Too few deliveries for the backoff schedule: the schedule is dropped.
	short := DefaultJobStreamConfig(2).ConsumerConfig()
	assert.Empty(t, short.BackOff)
	assert.Equal(t, 2, short.MaxDeliver)
}

func TestJetStreamMessage(t *testing.T) {
	msg := NewJetStreamMessage(&fakeMsg{
		data:      []byte("payload"),
		headers:   nats.Header{"X-Event-Name": []string{models.ProcessingJobEvent}},
		delivered: 3,
	})

	assert.Equal(t, []byte("payload"), msg.Data())
	assert.Equal(t, models.ProcessingJobEvent, msg.Header("X-Event-Name"))
	assert.Equal(t, "", msg.Header("missing"))
	assert.Equal(t, uint64(3), msg.Delivery())
	assert.False(t, msg.HasReply())
	assert.Error(t, msg.Respond(nil))

	noMeta := NewJetStreamMessage(&fakeMsg{})
	assert.Equal(t, uint64(1), noMeta.Delivery())
	assert.Equal(t, "", noMeta.Header("X-Event-Name"))
}
