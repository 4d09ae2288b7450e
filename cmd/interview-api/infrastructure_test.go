// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linuxfoundation/lfx-v2-interview-service/internal/infrastructure/store"
)

func TestKVBuckets(t *testing.T) {
	tests := []struct {
		name   string
		bucket string
		want   string
	}{
		{"meetings", store.KVStoreNameMeetings, "interview-meetings"},
		{"agents", store.KVStoreNameAgents, "interview-agents"},
		{"users", store.KVStoreNameUsers, "interview-users"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.bucket)
			assert.Contains(t, kvBuckets, tt.bucket)
		})
	}
	assert.Len(t, kvBuckets, len(tests))
}
