// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockMessage implements domain.AckableMessage for testing
type MockMessage struct {
	mock.Mock
	data     []byte
	subject  string
	headers  map[string]string
	delivery uint64
}

// NewMockMessage creates a mock message for testing
func NewMockMessage(data []byte, subject string) *MockMessage {
	return &MockMessage{
		data:     data,
		subject:  subject,
		headers:  map[string]string{},
		delivery: 1,
	}
}

// WithHeader sets a header value returned by Header.
func (m *MockMessage) WithHeader(key, value string) *MockMessage {
	m.headers[key] = value
	return m
}

// WithDelivery sets the delivery attempt returned by Delivery.
func (m *MockMessage) WithDelivery(n uint64) *MockMessage {
	m.delivery = n
	return m
}

func (m *MockMessage) Subject() string          { return m.subject }
func (m *MockMessage) Data() []byte             { return m.data }
func (m *MockMessage) Header(key string) string { return m.headers[key] }
func (m *MockMessage) Delivery() uint64         { return m.delivery }

func (m *MockMessage) HasReply() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMessage) Respond(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockMessage) Ack() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMessage) NakWithDelay(delay time.Duration) error {
	args := m.Called(delay)
	return args.Error(0)
}

func (m *MockMessage) Term() error {
	args := m.Called()
	return args.Error(0)
}
