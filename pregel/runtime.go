package pregel

import (
	"github.com/corvidworks/pregel/store"
	"github.com/corvidworks/pregel/stream"
)

// Runtime is the per-execution context handed to every node invocation. It
// is an explicit struct rather than context.Value injection: the spec
// requires no process-wide singletons, so a node's access to the current
// step, store, and stream writer is always through this value, never a
// package-level variable.
type Runtime struct {
	RunID    string
	ThreadID string
	Step     int
	NodeName string
	TaskID   string
	Attempt  int

	store  store.Store
	writer stream.Emitter
	cost   *CostTracker

	namespace  []string
	replayMode bool
	recordings []RecordedIO
}

// GetStore returns the long-lived Store configured for this run, or nil if
// none was configured.
func (r *Runtime) GetStore() store.Store {
	return r.store
}

// InReplayMode reports whether the graph was constructed with
// WithReplayMode(true), telling a Recordable node it should look up a prior
// RecordedIO via LookupRecordedIO instead of invoking its external service.
func (r *Runtime) InReplayMode() bool {
	return r.replayMode
}

// LookupRecordedIO finds a RecordedIO this run's checkpoint carried forward
// from a previous attempt at (r.NodeName, attempt), for a Recordable node
// replaying instead of re-invoking an external service.
func (r *Runtime) LookupRecordedIO(attempt int) (RecordedIO, bool) {
	return lookupRecordedIO(r.recordings, r.NodeName, attempt)
}

// RecordIO captures this invocation's request/response for replay, to be
// returned in the node's Command.Recordings so the engine persists it into
// the next checkpoint.
func (r *Runtime) RecordIO(request, response any) (RecordedIO, error) {
	return recordIO(r.NodeName, r.Attempt, request, response)
}

// GetCostTracker returns the CostTracker configured for this run, or nil
// if none was attached via WithCostTracker. Model integrations call
// RecordLLMCall on it after each provider invocation.
func (r *Runtime) GetCostTracker() *CostTracker {
	return r.cost
}

// WriteChunk emits a StreamChunk tagged with this node's run/step/name,
// through whichever Emitter the Graph was configured with.
func (r *Runtime) WriteChunk(mode stream.Mode, payload any) {
	if r.writer == nil {
		return
	}
	r.writer.Emit(stream.StreamChunk{
		RunID:     r.RunID,
		Step:      r.Step,
		NodeName:  r.NodeName,
		Namespace: r.namespace,
		Mode:      mode,
		Payload:   payload,
	})
}

// WriteCustom emits an arbitrary application-defined payload on the Custom
// stream mode, for node-level progress updates outside the Messages model.
func (r *Runtime) WriteCustom(payload any) {
	r.WriteChunk(stream.ModeCustom, payload)
}

// PushMessageChunk emits a partial Message (a token or fragment) on
// ModeMessageChunk. Like every chunk written through WriteChunk (Custom
// included), it is emitted immediately and is not ordered relative to the
// per-superstep TaskStart/TaskEnd/Updates/Messages/Values/Checkpoint sequence.
func (r *Runtime) PushMessageChunk(chunk Message) {
	r.WriteChunk(stream.ModeMessageChunk, chunk)
}

// managedValues are keys the engine injects into a node's input map before
// invocation and strips from channel writes after — values derived from
// run context rather than stored in any channel.
const managedCurrentStep = "__current_step__"

func injectManaged(input any, rt *Runtime) any {
	m, ok := input.(map[string]any)
	if !ok {
		return input
	}
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[managedCurrentStep] = rt.Step
	return out
}

func stripManaged(update map[string]any) map[string]any {
	if update == nil {
		return nil
	}
	if _, ok := update[managedCurrentStep]; !ok {
		return update
	}
	out := make(map[string]any, len(update)-1)
	for k, v := range update {
		if k == managedCurrentStep {
			continue
		}
		out[k] = v
	}
	return out
}
