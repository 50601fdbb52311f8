// Package stream provides the streaming event model for graph execution:
// the Emitter interface, the Mode-tagged StreamChunk, and a handful of
// backends (log, null, buffered, OpenTelemetry spans).
package stream

// Mode selects which categories of StreamChunk a consumer wants to see.
// Modes compose as a bitmask so a caller can e.g. ask for Updates|Messages
// without Debug-level task tracing.
type Mode uint16

const (
	ModeValues Mode = 1 << iota
	ModeUpdates
	ModeTasks
	ModeMessages
	ModeMessageChunk
	ModeCustom
	ModeCheckpoints
	ModeDebug

	ModeAll = ModeValues | ModeUpdates | ModeTasks | ModeMessages |
		ModeMessageChunk | ModeCustom | ModeCheckpoints | ModeDebug
)

func (m Mode) Has(flag Mode) bool { return m&flag != 0 }

// StreamChunk is one unit of streamed output. Namespace identifies the
// originating subgraph path (empty at the top level); Mode says which
// category this chunk belongs to; Payload is mode-specific (a channel
// snapshot for ModeValues, a Message for ModeMessages, a task start/end
// record for ModeTasks, and so on).
type StreamChunk struct {
	RunID     string
	Step      int
	NodeName  string
	Namespace []string
	Mode      Mode
	Payload   any
}

// TaskStartPayload is the ModeTasks payload emitted when a task begins.
type TaskStartPayload struct {
	TaskID string
	Input  any
}

// TaskEndPayload is the ModeTasks payload emitted when a task finishes,
// successfully or not.
type TaskEndPayload struct {
	TaskID string
	Error  error
}

// UpdatesPayload is the ModeUpdates payload: the channel values that
// changed this superstep.
type UpdatesPayload struct {
	Channels map[string]any
}

// ValuesPayload is the ModeValues payload: a full snapshot of every
// channel's current value at the end of a superstep.
type ValuesPayload struct {
	Channels map[string]any
}

// CheckpointPayload is the ModeCheckpoints payload, carrying the id of the
// checkpoint just written.
type CheckpointPayload struct {
	CheckpointID string
}
