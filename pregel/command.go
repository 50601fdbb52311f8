package pregel

// Send schedules a dynamic invocation of a node for the next superstep,
// outside the graph's static edges. Sends are how map-reduce fan-out works:
// a node returns one Send per item, and the scheduler drains them all from
// the __tasks__ channel when planning the next step.
type Send struct {
	To      string
	Payload any
}

// Command is the unified control-flow return value a node hands back to
// the engine: it can update channels and route execution, either or both.
type Command struct {
	// Update carries channel-name -> value pairs to apply this step, in
	// addition to (or instead of) the node's regular Delta-style update.
	Update map[string]any

	// Goto names where execution continues after this step. Accepted
	// shapes, normalized by gotoSends: nil (fall through to static edges),
	// a single node name, a slice of node names, a Send, or a slice of
	// Send. A plain name or slice of names carries this Command's Update
	// as the target node's input, same as a Send constructed explicitly.
	Goto any

	// Resume is carried on the Command but not read by the engine, and
	// Graph.Resume takes a ResumeValue, not a Command: a resume value
	// reaches a node only through Graph.Resume and the __resume__ channel.
	Resume any

	// Recordings carries any RecordedIO a SideEffectPolicy.Recordable node
	// captured this invocation, persisted into the next checkpoint's
	// Metadata.Extra so a later replay run can look them up instead of
	// re-invoking the external service.
	Recordings []RecordedIO
}

// gotoSends normalizes Command.Goto into a canonical []Send. Plain node
// names (string or []string) carry defaultPayload as their Send's payload —
// the node's own Command.Update — matching the conditional-router behavior
// of Send(target, output): a name-based Goto is routing, not a fresh
// invocation with no input. A Send or []Send already names its own payload
// explicitly and is passed through unchanged. A nil Goto normalizes to an
// empty slice (fall through to the graph's static edges).
func gotoSends(goto_ any, defaultPayload any) ([]Send, error) {
	switch g := goto_.(type) {
	case nil:
		return nil, nil
	case string:
		if g == "" {
			return nil, nil
		}
		return []Send{{To: g, Payload: defaultPayload}}, nil
	case []string:
		sends := make([]Send, 0, len(g))
		for _, name := range g {
			sends = append(sends, Send{To: name, Payload: defaultPayload})
		}
		return sends, nil
	case Send:
		return []Send{g}, nil
	case []Send:
		return g, nil
	default:
		return nil, &GraphError{
			Message: "Command.Goto must be nil, a node name, []string, Send, or []Send",
			Code:    "INVALID_GOTO",
		}
	}
}
