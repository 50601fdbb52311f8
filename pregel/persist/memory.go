// Package persist provides concrete pregel.Saver implementations: the
// durable side of the Pregel loop, keyed by (thread id, namespace,
// checkpoint id).
package persist

import (
	"context"
	"sort"
	"sync"

	"github.com/corvidworks/pregel"
)

type threadKey struct {
	threadID  string
	namespace string
}

// MemorySaver is the reference pregel.Saver implementation: an
// in-process, mutex-guarded append log per (thread, namespace), and the
// one every other backend's behavior is validated against. NewGraph has no
// default Saver: a nil saver is rejected.
//
// Per the engine's time-travel resolution (see the module's design notes):
// MemorySaver never garbage-collects pending writes orphaned by a rewind,
// so a thread's full write history stays inspectable across forks.
type MemorySaver struct {
	mu          sync.RWMutex
	checkpoints map[threadKey][]pregel.CheckpointTuple
	writes      map[string][]pregel.PendingWrite // checkpoint id -> pending writes
}

func NewMemorySaver() *MemorySaver {
	return &MemorySaver{
		checkpoints: make(map[threadKey][]pregel.CheckpointTuple),
		writes:      make(map[string][]pregel.PendingWrite),
	}
}

func (m *MemorySaver) Put(_ context.Context, config pregel.CheckpointConfig, cp pregel.Checkpoint, parentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := threadKey{config.ThreadID, config.Namespace}
	tuple := pregel.CheckpointTuple{
		Config:     pregel.CheckpointConfig{ThreadID: config.ThreadID, Namespace: config.Namespace, ID: cp.ID},
		Checkpoint: cp,
	}
	if parentID != "" {
		tuple.ParentConfig = pregel.CheckpointConfig{ThreadID: config.ThreadID, Namespace: config.Namespace, ID: parentID}
	}
	m.checkpoints[key] = append(m.checkpoints[key], tuple)
	return nil
}

func (m *MemorySaver) PutWrites(_ context.Context, config pregel.CheckpointConfig, writes []pregel.PendingWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes[config.ID] = append(m.writes[config.ID], writes...)
	return nil
}

func (m *MemorySaver) GetTuple(_ context.Context, config pregel.CheckpointConfig) (pregel.CheckpointTuple, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := threadKey{config.ThreadID, config.Namespace}
	tuples := m.checkpoints[key]
	if len(tuples) == 0 {
		return pregel.CheckpointTuple{}, pregel.ErrCheckpointNotFound
	}

	if config.ID == "" {
		t := tuples[len(tuples)-1]
		t.PendingWrites = append([]pregel.PendingWrite(nil), m.writes[t.Checkpoint.ID]...)
		return t, nil
	}

	for _, t := range tuples {
		if t.Checkpoint.ID == config.ID {
			t.PendingWrites = append([]pregel.PendingWrite(nil), m.writes[t.Checkpoint.ID]...)
			return t, nil
		}
	}
	return pregel.CheckpointTuple{}, pregel.ErrCheckpointNotFound
}

func (m *MemorySaver) List(_ context.Context, threadID, namespace string, limit int) ([]pregel.CheckpointTuple, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tuples := m.checkpoints[threadKey{threadID, namespace}]
	out := make([]pregel.CheckpointTuple, len(tuples))
	copy(out, tuples)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Checkpoint.TS.After(out[j].Checkpoint.TS)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemorySaver) DeleteThread(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, tuples := range m.checkpoints {
		if key.threadID != threadID {
			continue
		}
		for _, t := range tuples {
			delete(m.writes, t.Checkpoint.ID)
		}
		delete(m.checkpoints, key)
	}
	return nil
}
