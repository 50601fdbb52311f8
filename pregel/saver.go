package pregel

import (
	"context"
	"errors"
)

// ErrCheckpointNotFound is returned by Saver.GetTuple when no checkpoint
// matches the given config, and surfaces to callers resuming a run with no
// prior checkpoint.
var ErrCheckpointNotFound = errors.New("pregel: checkpoint not found")

// CheckpointConfig addresses one specific checkpoint, or the latest
// checkpoint in a thread/namespace when ID is empty.
type CheckpointConfig struct {
	ThreadID  string
	Namespace string
	ID        string
}

// PendingWrite is one task's write (or, for an interrupt-before pause, one
// task descriptor) recorded against a checkpoint. The engine records them
// only when it pauses on an interrupt and does not read them back: on
// restart or resume the affected tasks run again.
type PendingWrite struct {
	TaskID  string
	Channel string
	Value   any
}

// CheckpointTuple bundles a checkpoint with the config that addresses it,
// its parent's config (zero value if none), and any pending writes
// attached to it.
type CheckpointTuple struct {
	Config        CheckpointConfig
	Checkpoint    Checkpoint
	ParentConfig  CheckpointConfig
	PendingWrites []PendingWrite
}

// Saver is the abstract durability contract a Graph is driven against.
// Implementations must make Put atomic with respect to concurrent GetTuple
// calls for the same thread: a reader never observes a checkpoint whose
// channel_values disagree with its channel_versions. Concrete backends
// live in the persist subpackage; the interface lives here so the core
// engine never depends on a specific storage driver.
type Saver interface {
	// Put persists a new checkpoint for the given config's thread and
	// namespace, with the given parent checkpoint id (empty if this is
	// the thread's first checkpoint).
	Put(ctx context.Context, config CheckpointConfig, cp Checkpoint, parentID string) error

	// PutWrites records pending writes against the checkpoint addressed by
	// config. The engine calls it only when pausing on an interrupt;
	// GetTuple returns them in CheckpointTuple.PendingWrites.
	PutWrites(ctx context.Context, config CheckpointConfig, writes []PendingWrite) error

	// GetTuple returns the checkpoint addressed by config, or the latest
	// checkpoint for config's thread/namespace if config.ID is empty. It
	// returns ErrCheckpointNotFound if none exists.
	GetTuple(ctx context.Context, config CheckpointConfig) (CheckpointTuple, error)

	// List returns every checkpoint for a thread/namespace, newest first.
	// limit <= 0 means no limit.
	List(ctx context.Context, threadID, namespace string, limit int) ([]CheckpointTuple, error)

	// DeleteThread removes every checkpoint and pending write for a
	// thread across all namespaces.
	DeleteThread(ctx context.Context, threadID string) error
}
