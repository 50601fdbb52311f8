package stream

import "context"

// NullEmitter discards every chunk. Useful as the default when a Graph is
// run without a configured subscriber, or in benchmarks isolating
// scheduling overhead from emission overhead.
type NullEmitter struct{}

func (NullEmitter) Emit(StreamChunk)                             {}
func (NullEmitter) EmitBatch(context.Context, []StreamChunk) error { return nil }
func (NullEmitter) Flush(context.Context) error                  { return nil }
