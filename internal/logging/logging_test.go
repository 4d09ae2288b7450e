// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCtx(t *testing.T) {
	//nolint:staticcheck // nil parent is part of the contract
	ctx := AppendCtx(nil, slog.String("meeting_id", "m-1"))
	ctx = AppendCtx(ctx, slog.String("event_type", "call.session_started"))

	attrs, ok := ctx.Value(slogFields).([]slog.Attr)
	require.True(t, ok)
	require.Len(t, attrs, 2)
	assert.Equal(t, "meeting_id", attrs[0].Key)
	assert.Equal(t, "event_type", attrs[1].Key)
}

func TestAppendCtx_DoesNotLeakIntoParent(t *testing.T) {
	parent := AppendCtx(context.Background(), slog.String("request_id", "r-1"))
	_ = AppendCtx(parent, slog.String("meeting_id", "m-1"))

	attrs, ok := parent.Value(slogFields).([]slog.Attr)
	require.True(t, ok)
	assert.Len(t, attrs, 1)
}

func TestContextHandler_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(contextHandler{slog.NewJSONHandler(&buf, nil)})

	ctx := AppendCtx(context.Background(), slog.String("meeting_id", "m-42"))
	logger.InfoContext(ctx, "meeting activated", "status", "active")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "m-42", record["meeting_id"])
	assert.Equal(t, "active", record["status"])
	assert.Equal(t, "meeting activated", record["msg"])
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", logLevelDefault},
		{"verbose", logLevelDefault},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, levelFromEnv(tt.in))
		})
	}
}

func TestAddSourceFromEnv(t *testing.T) {
	for _, v := range []string{"true", "t", "1"} {
		assert.True(t, addSourceFromEnv(v), v)
	}
	for _, v := range []string{"", "false", "yes"} {
		assert.False(t, addSourceFromEnv(v), v)
	}
}

func TestInitStructureLogConfig_WritesJSON(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	h := initStructureLogConfig(&buf)
	require.NotNil(t, h)

	slog.InfoContext(AppendCtx(context.Background(), slog.String("k", "v")), "hello")
	slog.Debug("dropped at info level")

	out := buf.String()
	assert.Contains(t, out, `"msg":"log config"`)
	assert.Contains(t, out, `"k":"v"`)
	assert.False(t, strings.Contains(out, "dropped at info level"))
}

func TestPriorityCritical(t *testing.T) {
	attr := PriorityCritical()
	assert.Equal(t, "priority", attr.Key)
	assert.Equal(t, "critical", attr.Value.String())
}
