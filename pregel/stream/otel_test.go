package stream_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/corvidworks/pregel/stream"
)

// recordingExporter collects every span handed to it, for assertions
// without standing up a real collector.
type recordingExporter struct {
	mu    sync.Mutex
	spans []sdktrace.ReadOnlySpan
}

func (r *recordingExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, spans...)
	return nil
}

func (r *recordingExporter) Shutdown(context.Context) error { return nil }

func (r *recordingExporter) snapshot() []sdktrace.ReadOnlySpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sdktrace.ReadOnlySpan, len(r.spans))
	copy(out, r.spans)
	return out
}

func TestOTelEmitterEmitProducesNamedSpanWithAttributes(t *testing.T) {
	exporter := &recordingExporter{}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	emitter := stream.NewOTelEmitter(tp.Tracer("pregel-test"))
	emitter.Emit(stream.StreamChunk{RunID: "r1", Step: 4, NodeName: "ask", Mode: stream.ModeUpdates})

	spans := exporter.snapshot()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "updates" {
		t.Fatalf("expected span name \"updates\", got %q", spans[0].Name())
	}

	found := map[string]bool{}
	for _, attr := range spans[0].Attributes() {
		found[string(attr.Key)] = true
	}
	for _, key := range []string{"pregel.run_id", "pregel.step", "pregel.node_name"} {
		if !found[key] {
			t.Fatalf("expected span attribute %q to be set", key)
		}
	}
}

func TestOTelEmitterMarksErrorStatusOnTaskEndPayload(t *testing.T) {
	exporter := &recordingExporter{}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	emitter := stream.NewOTelEmitter(tp.Tracer("pregel-test"))
	emitter.Emit(stream.StreamChunk{
		RunID: "r1",
		Mode:  stream.ModeTasks,
		Payload: stream.TaskEndPayload{
			TaskID: "t1",
			Error:  errors.New("boom"),
		},
	})

	spans := exporter.snapshot()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected span status code Error, got %v", spans[0].Status().Code)
	}
}

func TestOTelEmitterEmitBatchProducesOneSpanPerChunk(t *testing.T) {
	exporter := &recordingExporter{}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	emitter := stream.NewOTelEmitter(tp.Tracer("pregel-test"))
	err := emitter.EmitBatch(context.Background(), []stream.StreamChunk{
		{RunID: "r1", Mode: stream.ModeValues},
		{RunID: "r1", Mode: stream.ModeCheckpoints},
	})
	if err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}

	spans := exporter.snapshot()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
}
