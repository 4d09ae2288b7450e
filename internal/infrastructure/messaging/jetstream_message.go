// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
)

// errNoReply is returned by Respond; stream messages are settled, not answered.
var errNoReply = errors.New("jetstream message has no reply subject")

// JetStreamMessage adapts a jetstream.Msg to domain.AckableMessage.
type JetStreamMessage struct {
	msg jetstream.Msg
}

// NewJetStreamMessage wraps msg.
func NewJetStreamMessage(msg jetstream.Msg) *JetStreamMessage {
	return &JetStreamMessage{msg: msg}
}

var _ domain.AckableMessage = (*JetStreamMessage)(nil)

func (m *JetStreamMessage) Subject() string { return m.msg.Subject() }

func (m *JetStreamMessage) Data() []byte { return m.msg.Data() }

func (m *JetStreamMessage) Header(key string) string {
	h := m.msg.Headers()
	if h == nil {
		return ""
	}
	return h.Get(key)
}

func (m *JetStreamMessage) Respond(data []byte) error { return errNoReply }

func (m *JetStreamMessage) HasReply() bool { return false }

func (m *JetStreamMessage) Ack() error { return m.msg.Ack() }

func (m *JetStreamMessage) NakWithDelay(delay time.Duration) error { return m.msg.NakWithDelay(delay) }

func (m *JetStreamMessage) Term() error { return m.msg.Term() }

// Delivery returns the server's delivery count, or 1 when metadata is unavailable.
func (m *JetStreamMessage) Delivery() uint64 {
	meta, err := m.msg.Metadata()
	if err != nil || meta == nil || meta.NumDelivered == 0 {
		return 1
	}
	return meta.NumDelivered
}
