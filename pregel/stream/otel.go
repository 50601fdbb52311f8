package stream

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each StreamChunk into a span: the span name is derived
// from the chunk's Mode, attributes carry the chunk's run id, step, node
// name and (when set) namespace; payload fields are not recorded. Spans are
// point-in-time (started and ended immediately) since a chunk represents an
// instant, not a duration. A TaskEndPayload carrying an Error marks its span
// with error status and records the error.
type OTelEmitter struct {
	tracer trace.Tracer
}

func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func spanName(mode Mode) string {
	switch {
	case mode.Has(ModeTasks):
		return "task"
	case mode.Has(ModeUpdates):
		return "updates"
	case mode.Has(ModeValues):
		return "values"
	case mode.Has(ModeMessages), mode.Has(ModeMessageChunk):
		return "message"
	case mode.Has(ModeCheckpoints):
		return "checkpoint"
	case mode.Has(ModeCustom):
		return "custom"
	default:
		return "chunk"
	}
}

func (o *OTelEmitter) Emit(chunk StreamChunk) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, spanName(chunk.Mode))
	defer span.End()
	o.annotate(span, chunk)
}

func (o *OTelEmitter) EmitBatch(ctx context.Context, chunks []StreamChunk) error {
	for _, c := range chunks {
		_, span := o.tracer.Start(ctx, spanName(c.Mode))
		o.annotate(span, c)
		span.End()
	}
	return nil
}

func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) annotate(span trace.Span, chunk StreamChunk) {
	span.SetAttributes(
		attribute.String("pregel.run_id", chunk.RunID),
		attribute.Int("pregel.step", chunk.Step),
		attribute.String("pregel.node_name", chunk.NodeName),
	)
	if len(chunk.Namespace) > 0 {
		span.SetAttributes(attribute.StringSlice("pregel.namespace", chunk.Namespace))
	}
	if end, ok := chunk.Payload.(TaskEndPayload); ok && end.Error != nil {
		span.SetStatus(codes.Error, end.Error.Error())
		span.RecordError(fmt.Errorf("%s", end.Error.Error()))
	}
}
