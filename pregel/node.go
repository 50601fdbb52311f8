package pregel

import "context"

// Node is one computation unit in the graph. It reads whichever channels it
// declared as triggers/reads, performs its work, and returns a Command
// describing channel updates and routing for the superstep that dispatched
// it.
//
// Node implementations should be side-effect aware of retries: the engine
// may invoke Run more than once for the same logical task under a
// RetryPolicy, and Run must be safe to call again with the same input.
type Node interface {
	Run(ctx context.Context, rt *Runtime, input any) (Command, error)
}

// NodeFunc adapts a plain function to the Node interface, mirroring the
// teacher's NodeFunc adapter for single-state graphs.
type NodeFunc func(ctx context.Context, rt *Runtime, input any) (Command, error)

func (f NodeFunc) Run(ctx context.Context, rt *Runtime, input any) (Command, error) {
	return f(ctx, rt, input)
}

// NodeSpec is how a node is registered on a Graph: its implementation, the
// channels that trigger it, and how its input is assembled from those
// channels.
type NodeSpec struct {
	Name string
	Node Node

	// Triggers lists the channels whose version advancing causes this node
	// to be scheduled. Must be non-empty for any node reachable other than
	// via an explicit Send.
	Triggers []string

	// Reads lists additional channels visible to the node but that do not
	// themselves trigger it. If empty, Reads defaults to Triggers.
	Reads []string

	// SingleChannel, if set, means the node's input is the raw value of
	// that one channel rather than a map of all Reads channels. Typical
	// for a node that only cares about one upstream value.
	SingleChannel string

	// Writes lists the channels a node's output is written to verbatim. If
	// empty, the applier falls back to object-shaped decomposition: each
	// top-level key of the output matching a declared channel is written
	// to that channel. Either way the node's own name-channel always
	// receives the whole output, for simple successor triggering.
	Writes []string

	Policy NodePolicy

	// Router, if set, is evaluated after this node executes, only when its
	// Command.Goto produced no Sends. The Sends it returns are scheduled for
	// the next superstep and take the place of the node's static edges. It
	// sees the channel table as it stood before this superstep's writes, so
	// the node's own output is not yet visible to it.
	Router ConditionalRouter
}

func (s NodeSpec) effectiveReads() []string {
	if len(s.Reads) > 0 {
		return s.Reads
	}
	return s.Triggers
}
