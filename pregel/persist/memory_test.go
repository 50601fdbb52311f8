package persist_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corvidworks/pregel"
	"github.com/corvidworks/pregel/persist"
)

func TestMemorySaverPutAndGetTupleLatest(t *testing.T) {
	m := persist.NewMemorySaver()
	cfg := pregel.CheckpointConfig{ThreadID: "t1", Namespace: "ns"}

	cp1 := pregel.Checkpoint{ID: "cp1", TS: time.Now()}
	if err := m.Put(context.Background(), cfg, cp1, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	cp2 := pregel.Checkpoint{ID: "cp2", TS: time.Now().Add(time.Second)}
	if err := m.Put(context.Background(), cfg, cp2, "cp1"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	tuple, err := m.GetTuple(context.Background(), cfg)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if tuple.Checkpoint.ID != "cp2" {
		t.Fatalf("expected the latest put checkpoint cp2, got %s", tuple.Checkpoint.ID)
	}
	if tuple.ParentConfig.ID != "cp1" {
		t.Fatalf("expected parent cp1, got %s", tuple.ParentConfig.ID)
	}
}

func TestMemorySaverGetTupleByID(t *testing.T) {
	m := persist.NewMemorySaver()
	cfg := pregel.CheckpointConfig{ThreadID: "t1", Namespace: "ns"}

	if err := m.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp1", TS: time.Now()}, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp2", TS: time.Now()}, "cp1"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	tuple, err := m.GetTuple(context.Background(), pregel.CheckpointConfig{ThreadID: "t1", Namespace: "ns", ID: "cp1"})
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if tuple.Checkpoint.ID != "cp1" {
		t.Fatalf("expected cp1, got %s", tuple.Checkpoint.ID)
	}
}

func TestMemorySaverGetTupleNotFound(t *testing.T) {
	m := persist.NewMemorySaver()
	_, err := m.GetTuple(context.Background(), pregel.CheckpointConfig{ThreadID: "missing", Namespace: "ns"})
	if !errors.Is(err, pregel.ErrCheckpointNotFound) {
		t.Fatalf("expected ErrCheckpointNotFound, got %v", err)
	}
}

func TestMemorySaverPutWritesAttachToTuple(t *testing.T) {
	m := persist.NewMemorySaver()
	cfg := pregel.CheckpointConfig{ThreadID: "t1", Namespace: "ns", ID: "cp1"}

	if err := m.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp1", TS: time.Now()}, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	writes := []pregel.PendingWrite{{Channel: "state", Value: "partial"}}
	if err := m.PutWrites(context.Background(), cfg, writes); err != nil {
		t.Fatalf("PutWrites: %v", err)
	}

	tuple, err := m.GetTuple(context.Background(), cfg)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if len(tuple.PendingWrites) != 1 || tuple.PendingWrites[0].Channel != "state" {
		t.Fatalf("expected the pending write to be attached, got %+v", tuple.PendingWrites)
	}
}

func TestMemorySaverListOrdersNewestFirstAndRespectsLimit(t *testing.T) {
	m := persist.NewMemorySaver()
	cfg := pregel.CheckpointConfig{ThreadID: "t1", Namespace: "ns"}

	base := time.Now()
	if err := m.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp1", TS: base}, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp2", TS: base.Add(time.Minute)}, "cp1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp3", TS: base.Add(2 * time.Minute)}, "cp2"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	all, err := m.List(context.Background(), "t1", "ns", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Checkpoint.ID != "cp3" {
		t.Fatalf("expected newest-first order starting at cp3, got %+v", all)
	}

	limited, err := m.List(context.Background(), "t1", "ns", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(limited))
	}
}

func TestMemorySaverDeleteThreadRemovesCheckpointsAndWrites(t *testing.T) {
	m := persist.NewMemorySaver()
	cfg := pregel.CheckpointConfig{ThreadID: "t1", Namespace: "ns", ID: "cp1"}
	if err := m.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp1", TS: time.Now()}, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.PutWrites(context.Background(), cfg, []pregel.PendingWrite{{Channel: "state", Value: "x"}}); err != nil {
		t.Fatalf("PutWrites: %v", err)
	}

	if err := m.DeleteThread(context.Background(), "t1"); err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}

	if _, err := m.GetTuple(context.Background(), cfg); !errors.Is(err, pregel.ErrCheckpointNotFound) {
		t.Fatalf("expected checkpoints to be gone after DeleteThread, got %v", err)
	}
}

func TestMemorySaverNamespacesAreIsolated(t *testing.T) {
	m := persist.NewMemorySaver()
	cfgA := pregel.CheckpointConfig{ThreadID: "t1", Namespace: "a"}
	cfgB := pregel.CheckpointConfig{ThreadID: "t1", Namespace: "b"}

	if err := m.Put(context.Background(), cfgA, pregel.Checkpoint{ID: "cp-a", TS: time.Now()}, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if _, err := m.GetTuple(context.Background(), cfgB); !errors.Is(err, pregel.ErrCheckpointNotFound) {
		t.Fatalf("expected namespace b to have no checkpoints, got %v", err)
	}
}
