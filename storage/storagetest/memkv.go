// Package storagetest provides an in-memory JetStream key-value bucket for
// tests that do not run a NATS server.
package storagetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// MemKV implements the subset of jetstream.KeyValue used by qualcoder.
// Calling any other method panics.
type MemKV struct {
	jetstream.KeyValue

	mu       sync.Mutex
	bucket   string
	entries  map[string]*entry
	revision uint64

	// PutErr, when set, is returned by Put and Create.
	PutErr error
}

type entry struct {
	jetstream.KeyValueEntry

	bucket   string
	key      string
	value    []byte
	revision uint64
	created  time.Time
}

func (e *entry) Bucket() string                  { return e.bucket }
func (e *entry) Key() string                     { return e.key }
func (e *entry) Value() []byte                   { return e.value }
func (e *entry) Revision() uint64                { return e.revision }
func (e *entry) Created() time.Time              { return e.created }
func (e *entry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

// NewMemKV creates an empty bucket.
func NewMemKV(bucket string) *MemKV {
	return &MemKV{bucket: bucket, entries: make(map[string]*entry)}
}

func (m *MemKV) Bucket() string {
	return m.bucket
}

func (m *MemKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return 0, m.PutErr
	}
	return m.put(key, value), nil
}

func (m *MemKV) Create(_ context.Context, key string, value []byte, _ ...jetstream.KVCreateOpt) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return 0, m.PutErr
	}
	if _, ok := m.entries[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	return m.put(key, value), nil
}

func (m *MemKV) put(key string, value []byte) uint64 {
	m.revision++
	m.entries[key] = &entry{
		bucket:   m.bucket,
		key:      key,
		value:    append([]byte(nil), value...),
		revision: m.revision,
		created:  time.Now(),
	}
	return m.revision
}

func (m *MemKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return e, nil
}

func (m *MemKV) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemKV) Keys(_ context.Context, _ ...jetstream.WatchOpt) ([]string, error) {
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
	return keys, nil
}

// Len returns the number of stored keys.
func (m *MemKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
