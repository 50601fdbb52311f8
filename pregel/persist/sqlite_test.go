package persist_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corvidworks/pregel"
	"github.com/corvidworks/pregel/persist"
)

func newTestSQLiteSaver(t *testing.T) *persist.SQLiteSaver {
	t.Helper()
	s, err := persist.NewSQLiteSaver(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteSaver: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteSaverPutAndGetTupleLatest(t *testing.T) {
	s := newTestSQLiteSaver(t)
	cfg := pregel.CheckpointConfig{ThreadID: "t1", Namespace: "ns"}

	if err := s.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp1", TS: time.Now()}, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp2", TS: time.Now().Add(time.Second)}, "cp1"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	tuple, err := s.GetTuple(context.Background(), cfg)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if tuple.Checkpoint.ID != "cp2" {
		t.Fatalf("expected latest checkpoint cp2, got %s", tuple.Checkpoint.ID)
	}
	if tuple.ParentConfig.ID != "cp1" {
		t.Fatalf("expected parent cp1, got %s", tuple.ParentConfig.ID)
	}
}

func TestSQLiteSaverPutIsUpsertByPrimaryKey(t *testing.T) {
	s := newTestSQLiteSaver(t)
	cfg := pregel.CheckpointConfig{ThreadID: "t1", Namespace: "ns"}

	if err := s.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp1", Metadata: pregel.CheckpointMetadata{Step: 1}, TS: time.Now()}, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp1", Metadata: pregel.CheckpointMetadata{Step: 2}, TS: time.Now()}, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}

	tuple, err := s.GetTuple(context.Background(), pregel.CheckpointConfig{ThreadID: "t1", Namespace: "ns", ID: "cp1"})
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if tuple.Checkpoint.Metadata.Step != 2 {
		t.Fatalf("expected the second Put to overwrite cp1's payload, got step %d", tuple.Checkpoint.Metadata.Step)
	}
}

func TestSQLiteSaverGetTupleNotFound(t *testing.T) {
	s := newTestSQLiteSaver(t)
	_, err := s.GetTuple(context.Background(), pregel.CheckpointConfig{ThreadID: "missing", Namespace: "ns"})
	if !errors.Is(err, pregel.ErrCheckpointNotFound) {
		t.Fatalf("expected ErrCheckpointNotFound, got %v", err)
	}
}

func TestSQLiteSaverPendingWritesRoundTrip(t *testing.T) {
	s := newTestSQLiteSaver(t)
	cfg := pregel.CheckpointConfig{ThreadID: "t1", Namespace: "ns", ID: "cp1"}
	if err := s.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp1", TS: time.Now()}, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	writes := []pregel.PendingWrite{
		{TaskID: "task-1", Channel: "state", Value: map[string]any{"partial": true}},
	}
	if err := s.PutWrites(context.Background(), cfg, writes); err != nil {
		t.Fatalf("PutWrites: %v", err)
	}

	tuple, err := s.GetTuple(context.Background(), cfg)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if len(tuple.PendingWrites) != 1 || tuple.PendingWrites[0].Channel != "state" {
		t.Fatalf("expected the pending write to round-trip, got %+v", tuple.PendingWrites)
	}
}

func TestSQLiteSaverListOrdersNewestFirstAndRespectsLimit(t *testing.T) {
	s := newTestSQLiteSaver(t)
	cfg := pregel.CheckpointConfig{ThreadID: "t1", Namespace: "ns"}
	base := time.Now()

	for i, id := range []string{"cp1", "cp2", "cp3"} {
		cp := pregel.Checkpoint{ID: id, TS: base.Add(time.Duration(i) * time.Minute)}
		parent := ""
		if i > 0 {
			parent = []string{"cp1", "cp2"}[i-1]
		}
		if err := s.Put(context.Background(), cfg, cp, parent); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	all, err := s.List(context.Background(), "t1", "ns", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Checkpoint.ID != "cp3" {
		t.Fatalf("expected newest-first order starting at cp3, got %+v", all)
	}

	limited, err := s.List(context.Background(), "t1", "ns", 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(limited))
	}
}

func TestSQLiteSaverDeleteThreadRemovesCheckpointsAndWrites(t *testing.T) {
	s := newTestSQLiteSaver(t)
	cfg := pregel.CheckpointConfig{ThreadID: "t1", Namespace: "ns", ID: "cp1"}
	if err := s.Put(context.Background(), cfg, pregel.Checkpoint{ID: "cp1", TS: time.Now()}, ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.PutWrites(context.Background(), cfg, []pregel.PendingWrite{{Channel: "state", Value: "x"}}); err != nil {
		t.Fatalf("PutWrites: %v", err)
	}

	if err := s.DeleteThread(context.Background(), "t1"); err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}

	if _, err := s.GetTuple(context.Background(), cfg); !errors.Is(err, pregel.ErrCheckpointNotFound) {
		t.Fatalf("expected checkpoints gone after DeleteThread, got %v", err)
	}
}
