package stream_test

import (
	"context"
	"testing"

	"github.com/corvidworks/pregel/stream"
)

func TestBufferedEmitterHistoryPreservesEmissionOrder(t *testing.T) {
	b := stream.NewBufferedEmitter()
	b.Emit(stream.StreamChunk{RunID: "r1", Step: 0, Mode: stream.ModeValues})
	b.Emit(stream.StreamChunk{RunID: "r1", Step: 1, Mode: stream.ModeUpdates})
	b.Emit(stream.StreamChunk{RunID: "r2", Step: 0, Mode: stream.ModeValues})

	got := b.History("r1")
	if len(got) != 2 || got[0].Step != 0 || got[1].Step != 1 {
		t.Fatalf("unexpected history for r1: %+v", got)
	}
	if len(b.History("r2")) != 1 {
		t.Fatalf("expected run r2 to be isolated from r1")
	}
}

func TestBufferedEmitterEmitBatch(t *testing.T) {
	b := stream.NewBufferedEmitter()
	err := b.EmitBatch(context.Background(), []stream.StreamChunk{
		{RunID: "r1", Step: 0},
		{RunID: "r1", Step: 1},
	})
	if err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if len(b.History("r1")) != 2 {
		t.Fatalf("expected both batched chunks recorded")
	}
}

func TestBufferedEmitterHistoryWithFilter(t *testing.T) {
	b := stream.NewBufferedEmitter()
	b.Emit(stream.StreamChunk{RunID: "r1", Step: 0, NodeName: "ask", Mode: stream.ModeValues})
	b.Emit(stream.StreamChunk{RunID: "r1", Step: 1, NodeName: "answer", Mode: stream.ModeUpdates})
	b.Emit(stream.StreamChunk{RunID: "r1", Step: 2, NodeName: "ask", Mode: stream.ModeUpdates})

	got := b.HistoryWithFilter("r1", stream.HistoryFilter{NodeName: "ask"})
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks for node ask, got %d", len(got))
	}

	got = b.HistoryWithFilter("r1", stream.HistoryFilter{Mode: stream.ModeValues})
	if len(got) != 1 || got[0].Step != 0 {
		t.Fatalf("expected 1 ModeValues chunk at step 0, got %+v", got)
	}

	minStep := 1
	got = b.HistoryWithFilter("r1", stream.HistoryFilter{MinStep: &minStep})
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks at or after step 1, got %d", len(got))
	}
}

func TestBufferedEmitterClearSingleRun(t *testing.T) {
	b := stream.NewBufferedEmitter()
	b.Emit(stream.StreamChunk{RunID: "r1", Step: 0})
	b.Emit(stream.StreamChunk{RunID: "r2", Step: 0})

	b.Clear("r1")
	if len(b.History("r1")) != 0 {
		t.Fatal("expected r1 history cleared")
	}
	if len(b.History("r2")) != 1 {
		t.Fatal("expected r2 history to survive clearing r1")
	}
}

func TestBufferedEmitterClearAll(t *testing.T) {
	b := stream.NewBufferedEmitter()
	b.Emit(stream.StreamChunk{RunID: "r1", Step: 0})
	b.Emit(stream.StreamChunk{RunID: "r2", Step: 0})

	b.Clear("")
	if len(b.History("r1")) != 0 || len(b.History("r2")) != 0 {
		t.Fatal("expected Clear(\"\") to drop every run's history")
	}
}

func TestModeHasComposesBitmask(t *testing.T) {
	m := stream.ModeValues | stream.ModeMessages
	if !m.Has(stream.ModeValues) || !m.Has(stream.ModeMessages) {
		t.Fatal("expected composed mode to report both flags set")
	}
	if m.Has(stream.ModeDebug) {
		t.Fatal("expected composed mode to not report an unset flag")
	}
}
