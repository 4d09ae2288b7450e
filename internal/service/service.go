// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package service implements the interview meeting lifecycle, the post-meeting
// chat bridge and the summarization job.
package service

import (
	"errors"
	"time"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/httpclient"
)

type Service interface {
	ServiceReady() bool
}

// Webhook response statuses.
const (
	StatusSuccess       = "Success"
	StatusAlreadyActive = "Already active"
)

// EventResult is what a handled event reports back to the webhook caller.
type EventResult struct {
	Status   string
	Outcomes domain.Outcomes
}

func success(outcomes ...domain.Outcome) *EventResult {
	return &EventResult{Status: StatusSuccess, Outcomes: outcomes}
}

// clock is replaced in tests.
type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}

// notFoundAs maps a missing or unaddressable record to a NotFound error carrying message.
func notFoundAs(err error, message string) error {
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeNotFound, domain.ErrorTypeValidation:
		return domain.NewNotFoundError(message, err)
	}
	return err
}

// remoteDetail is the message a remote API gave for a failure.
func remoteDetail(err error) string {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		if se.Detail != "" {
			return se.Detail
		}
		return "Unknown error"
	}
	return err.Error()
}
