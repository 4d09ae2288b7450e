// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsWebhookPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/webhooks/stream", true},
		{"/api/webhook", true},
		{"/webhooks/stream/", false},
		{"/webhooks/zoom", false},
		{"/livez", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWebhookPath(tt.path))
		})
	}
}
