// Package pregel implements a Pregel-style superstep scheduler for stateful,
// checkpointable graphs of asynchronous computation nodes.
package pregel

import "errors"

// GraphError is the structured error type returned by graph construction and
// compile-time validation failures (spec §7 ValidationError).
//
// It is never retried: a ValidationError means the graph itself is malformed,
// not that a particular run failed.
type GraphError struct {
	Message string
	Code    string
}

func (e *GraphError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// NodeError wraps a failure from inside a node's executor (§7 ExecutionError).
// It carries enough context (node name, retryability) for the scheduler to
// decide whether to retry and for stream consumers to render a useful event.
type NodeError struct {
	Message   string
	Code      string
	NodeName  string
	Retryable bool
	Cause     error
}

func (e *NodeError) Error() string {
	if e.NodeName != "" {
		return "node " + e.NodeName + ": " + e.Message
	}
	return e.Message
}

func (e *NodeError) Unwrap() error {
	return e.Cause
}

// ChannelError indicates a reducer rejected a value, or a required channel
// was never set (§7 ChannelError). It is always fatal — it indicates a bug
// in the graph definition, not a transient condition.
type ChannelError struct {
	Channel string
	Message string
}

func (e *ChannelError) Error() string {
	return "channel " + e.Channel + ": " + e.Message
}

// CheckpointError wraps a persistence-layer failure (§7 CheckpointError).
// Write failures are logged by the loop and do not abort the run (at-least-once
// durability); NotFound on resume is fatal and surfaces as this type.
type CheckpointError struct {
	Message string
	Cause   error
}

func (e *CheckpointError) Error() string {
	return "checkpoint: " + e.Message
}

func (e *CheckpointError) Unwrap() error {
	return e.Cause
}

// InterruptWhen distinguishes a before-node from an after-node interrupt
// rule (§4.6).
type InterruptWhen string

const (
	InterruptBefore InterruptWhen = "before"
	InterruptAfter  InterruptWhen = "after"
)

// InterruptedError is not an error in the human sense: it is the expected
// control-flow signal a caller uses to drive human-in-the-loop review (§4.6,
// §6.5). Callers should check for it specifically with errors.As.
type InterruptedError struct {
	ThreadID     string
	NodeName     string
	When         InterruptWhen
	Step         int
	CheckpointID string
	Payload      any
}

func (e *InterruptedError) Error() string {
	return "interrupted " + string(e.When) + " node " + e.NodeName
}

func (e *InterruptedError) Is(target error) bool {
	return target == ErrInterrupted
}

// Sentinel errors, matched with errors.Is, mirroring the teacher's flat
// error-variable convention in graph/errors.go and graph/checkpoint.go.
var (
	// ErrMaxStepsExceeded is returned when a run exceeds Options.MaxSteps.
	ErrMaxStepsExceeded = errors.New("pregel: max steps exceeded")

	// ErrNoProgress names a scheduling deadlock. The engine does not return
	// it: Run treats a superstep with zero tasks as the end of the run.
	ErrNoProgress = errors.New("pregel: no runnable tasks, no progress")

	// ErrInterrupted is the sentinel wrapped by InterruptedError, so callers
	// can match with errors.Is(err, ErrInterrupted) without a type assertion.
	ErrInterrupted = errors.New("pregel: interrupted")

	// ErrNotResuming is returned by Resume when no interrupt is active.
	ErrNotResuming = errors.New("pregel: no active interrupt to resume")

	// ErrChannelNotSet is returned by Channel.Get on a never-written channel.
	ErrChannelNotSet = errors.New("pregel: channel not set")

	// ErrUnknownNode is returned when a Send or goto names a node that was
	// never registered with AddNode. An edge naming an unknown node fails
	// validation with a GraphError (UNKNOWN_EDGE_NODE) instead.
	ErrUnknownNode = errors.New("pregel: unknown node")

	// ErrDuplicateNode is returned by AddNode for a name already registered.
	ErrDuplicateNode = errors.New("pregel: duplicate node")

	// ErrReservedName is returned when a caller tries to register a node or
	// channel using one of the sentinel names (__start__, __end__, __tasks__,
	// __resume__).
	ErrReservedName = errors.New("pregel: reserved name")

	// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate.
	ErrInvalidRetryPolicy = errors.New("pregel: invalid retry policy")

	// ErrReplayMismatch is returned by verifyReplayHash when a live
	// execution's response hash disagrees with what was recorded, meaning
	// the node is not actually deterministic under replay.
	ErrReplayMismatch = errors.New("pregel: replay hash mismatch")
)
