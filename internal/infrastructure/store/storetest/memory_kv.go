// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package storetest provides an in-memory key-value bucket with JetStream KV
// revision semantics for tests of code built on the store package.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// ErrWrongLastSequence mirrors the server error returned for a stale revision.
var ErrWrongLastSequence = errors.New("nats: wrong last sequence")

type entry struct {
	key      string
	value    []byte
	revision uint64
	created  time.Time
}

func (e *entry) Bucket() string                  { return "memory" }
func (e *entry) Key() string                     { return e.key }
func (e *entry) Value() []byte                   { return e.value }
func (e *entry) Revision() uint64                { return e.revision }
func (e *entry) Created() time.Time              { return e.created }
func (e *entry) Delta() uint64                   { return 0 }
func (e *entry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

type keyLister struct {
	keys []string
}

func (l *keyLister) Keys() <-chan string {
	ch := make(chan string, len(l.keys))
	for _, k := range l.keys {
		ch <- k
	}
	close(ch)
	return ch
}

func (l *keyLister) Stop() error { return nil }

// MemoryKV is a concurrency-safe bucket. Revisions are a bucket-wide sequence
// like a JetStream stream, so a stale revision is always detected.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64

	// GetErr, CreateErr and UpdateErr, when set, are returned by the matching call.
	GetErr    error
	CreateErr error
	UpdateErr error

	// BeforeUpdate runs without the lock held before every Update. Tests use it to
	// interleave a competing writer.
	BeforeUpdate func(key string)

	updates int
}

// NewMemoryKV creates an empty bucket.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string]*entry)}
}

// Seed stores raw data under key, bumping the revision.
func (m *MemoryKV) Seed(key string, data []byte) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store(key, data)
}

func (m *MemoryKV) store(key string, data []byte) uint64 {
	m.seq++
	m.entries[key] = &entry{key: key, value: append([]byte(nil), data...), revision: m.seq, created: time.Now()}
	return m.seq
}

// Raw returns the stored bytes for key.
func (m *MemoryKV) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

// Updates counts successful Update calls.
func (m *MemoryKV) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

func (m *MemoryKV) ListKeys(_ context.Context, _ ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return nil, jetstream.ErrNoKeysFound
	}
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &keyLister{keys: keys}, nil
}

func (m *MemoryKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	cp := *e
	cp.value = append([]byte(nil), e.value...)
	return &cp, nil
}

func (m *MemoryKV) Create(_ context.Context, key string, data []byte, _ ...jetstream.KVCreateOpt) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	if _, ok := m.entries[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	return m.store(key, data), nil
}

func (m *MemoryKV) Update(_ context.Context, key string, data []byte, revision uint64) (uint64, error) {
	if m.BeforeUpdate != nil {
		m.BeforeUpdate(key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return 0, m.UpdateErr
	}
	e, ok := m.entries[key]
	if !ok {
		return 0, jetstream.ErrKeyNotFound
	}
	if e.revision != revision {
		return 0, fmt.Errorf("%w for subject %s", ErrWrongLastSequence, key)
	}
	m.updates++
	return m.store(key, data), nil
}
