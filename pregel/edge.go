package pregel

// Edge represents a static connection between two nodes, evaluated once
// its From node completes when neither its Command.Goto nor its Router
// produced any Sends.
//
// Edges can be:
//   - Unconditional: traversed when reached (When == nil).
//   - Conditional: traversed only when When returns true.
//
// Edges leaving a node are tried in AddEdge order and only the first one
// that matches is traversed; later edges from the same node are skipped.
type Edge struct {
	From string
	To   string
	When Predicate
}

// Predicate decides, after the edge's From node runs, whether a
// conditional edge fires. It receives the channel table as it stood before
// this superstep's writes, so the node's own output is not yet visible in
// it. Predicates must be pure:
// deterministic, side-effect free, safe to evaluate multiple times.
type Predicate func(rt *Runtime, channels *ChannelTable) bool

// ConditionalRouter is a full router function for fan-out routing that a
// single predicate can't express: given the channel table as it stood
// before this superstep's writes, it
// returns the set of Sends execution should continue with. Used when a
// node's next hop depends on computing several destinations, e.g. routing
// over a dynamic list of reviewers.
type ConditionalRouter func(rt *Runtime, channels *ChannelTable) ([]Send, error)
