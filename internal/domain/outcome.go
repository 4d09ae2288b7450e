// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/logging"
)

// Best-effort side effects of the meeting lifecycle.
const (
	EffectFetchTranscript = "fetch_transcript"
	EffectStopAgent       = "stop_agent"
	EffectEnqueueSummary  = "enqueue_summary"
	EffectProvisionChat   = "provision_chat"
)

// Outcome records how a best-effort side effect went. A failed outcome never
// undoes a status transition that was already committed.
type Outcome struct {
	Effect   string
	Err      error
	Skipped  bool
	Duration time.Duration
}

// OK reports whether the effect ran and succeeded.
func (o Outcome) OK() bool {
	return !o.Skipped && o.Err == nil
}

// Attempt runs fn as a best-effort side effect. Failures are logged, not returned.
func Attempt(ctx context.Context, effect string, fn func(ctx context.Context) error) Outcome {
	start := time.Now()
	err := fn(ctx)
	o := Outcome{Effect: effect, Err: err, Duration: time.Since(start)}
	if err != nil {
		slog.WarnContext(ctx, "best-effort side effect failed",
			"effect", effect,
			"duration", o.Duration.String(),
			logging.ErrKey, err,
		)
		return o
	}
	slog.DebugContext(ctx, "side effect completed", "effect", effect, "duration", o.Duration.String())
	return o
}

// Skip records an effect that was intentionally not attempted.
func Skip(effect string) Outcome {
	return Outcome{Effect: effect, Skipped: true}
}

// Outcomes is the ordered record of side effects for one event.
type Outcomes []Outcome

// Find returns the outcome for effect, if recorded.
func (oc Outcomes) Find(effect string) (Outcome, bool) {
	for _, o := range oc {
		if o.Effect == effect {
			return o, true
		}
	}
	return Outcome{}, false
}
