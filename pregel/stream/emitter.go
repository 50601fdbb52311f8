package stream

import "context"

// Emitter receives StreamChunks produced during graph execution.
//
// Implementations should be:
//   - Non-blocking: slow consumers should not stall the superstep loop.
//   - Thread-safe: Emit may be called concurrently from multiple tasks.
//   - Resilient: a failing backend must not panic the run.
//
// The engine emits its own chunks in the per-superstep order the spec
// defines (TaskStart(s) -> TaskEnd/Error(s) -> Updates -> Messages ->
// Values -> Checkpoint). Chunks a node writes through its Runtime
// (ModeCustom and ModeMessageChunk) are emitted inline as soon as the node
// produces them and are not ordered relative to that sequence.
type Emitter interface {
	Emit(chunk StreamChunk)
	EmitBatch(ctx context.Context, chunks []StreamChunk) error
	Flush(ctx context.Context) error
}

// Multiplexer fans a run's chunks out to however many Emitters were
// subscribed, filtering each by the Mode it subscribed to. It is itself an
// Emitter; passing it to pregel.WithEmitter fans a Graph's chunks out to
// several backends.
type Multiplexer struct {
	subscribers []subscription
}

type subscription struct {
	mode Mode
	emit Emitter
}

// NewMultiplexer builds a Multiplexer with no subscribers; use Subscribe to
// add backends.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{}
}

// Subscribe registers an Emitter to receive chunks matching mode.
func (m *Multiplexer) Subscribe(mode Mode, e Emitter) {
	m.subscribers = append(m.subscribers, subscription{mode: mode, emit: e})
}

func (m *Multiplexer) Emit(chunk StreamChunk) {
	for _, s := range m.subscribers {
		if s.mode.Has(chunk.Mode) || chunk.Mode == 0 {
			s.emit.Emit(chunk)
		}
	}
}

func (m *Multiplexer) EmitBatch(ctx context.Context, chunks []StreamChunk) error {
	for _, s := range m.subscribers {
		var filtered []StreamChunk
		for _, c := range chunks {
			if s.mode.Has(c.Mode) {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) == 0 {
			continue
		}
		if err := s.emit.EmitBatch(ctx, filtered); err != nil {
			return err
		}
	}
	return nil
}

func (m *Multiplexer) Flush(ctx context.Context) error {
	for _, s := range m.subscribers {
		if err := s.emit.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}
