// Package store provides the abstract long-lived key-value namespace store:
// state that outlives a single thread's checkpoint history (cross-thread
// memory, user profiles, long-term agent memory). It is orthogonal to
// checkpointing — a Store has no notion of steps, versions, or threads —
// and is specified only by this interface; no concrete backend is part of
// the core module's contract.
package store

import "context"

// Item is one value in a Store, identified by its Namespace and Key.
type Item struct {
	Namespace []string
	Key       string
	Value     any
}

// Store is a namespaced key-value store available to nodes via Runtime,
// for state that should persist across threads and across checkpoint
// history rather than living inside the versioned channel table.
//
// Namespaces are hierarchical path segments (e.g. []string{"users", "123"})
// so callers can scope queries without a separate collection concept.
type Store interface {
	Get(ctx context.Context, namespace []string, key string) (Item, bool, error)
	Put(ctx context.Context, namespace []string, key string, value any) error
	Delete(ctx context.Context, namespace []string, key string) error

	// List returns every item in namespace whose key has the given prefix.
	// An empty prefix lists the whole namespace.
	List(ctx context.Context, namespace []string, prefix string) ([]Item, error)
}
