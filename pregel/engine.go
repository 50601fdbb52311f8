package pregel

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/corvidworks/pregel/stream"
)

// Graph is the compiled, runnable form of a Pregel-style workflow: a set of
// channels, the nodes that trigger on them, the edges/routers that decide
// where execution continues, and the durability/streaming backends the
// superstep loop is driven against.
//
// A Graph is built once via AddNode/AddChannel/AddEdge, then driven by any
// number of Run/Resume/ExecuteSuperstep calls, each identified by a thread
// id. Per-thread execution is the isolation unit: concurrent Run calls
// against different thread ids are independent, but the caller must
// serialize concurrent calls sharing one thread id (spec §5).
type Graph struct {
	mu sync.RWMutex

	channelSpecs []ChannelSpec
	userChannels map[string]bool // channels declared via AddChannel, not auto-added node-echo channels
	nodes        map[string]NodeSpec
	edges        []Edge

	saver Saver
	opts  Options

	trackerMu     sync.Mutex
	trackers      map[string]*interruptTracker
	pendingResume map[string]ResumeValue
}

// NewGraph constructs an empty Graph backed by saver, the Saver every
// run is persisted through. Nodes, channels, and edges are registered
// afterward via AddNode/AddChannel/AddEdge.
func NewGraph(saver Saver, opts ...Option) (*Graph, error) {
	if saver == nil {
		return nil, &GraphError{Message: "saver is required", Code: "MISSING_SAVER"}
	}

	cfg := &graphConfig{opts: Options{
		MaxConcurrentTasks:  8,
		QueueDepth:          1024,
		BackpressureTimeout: 30 * time.Second,
		DefaultNodeTimeout:  30 * time.Second,
		RunWallClockBudget:  10 * time.Minute,
	}}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return &Graph{
		userChannels:  make(map[string]bool),
		nodes:         make(map[string]NodeSpec),
		saver:         saver,
		opts:          cfg.opts,
		trackers:      make(map[string]*interruptTracker),
		pendingResume: make(map[string]ResumeValue),
	}, nil
}

// AddNode registers a node under spec.Name. Every node implicitly owns a
// channel of the same name that receives its whole output, for simple
// successor triggering without an explicit Writes list.
func (g *Graph) AddNode(spec NodeSpec) error {
	if spec.Name == "" {
		return &GraphError{Message: "node name must not be empty", Code: "EMPTY_NODE_NAME"}
	}
	if isReservedName(spec.Name) {
		return fmt.Errorf("%w: %s", ErrReservedName, spec.Name)
	}
	if spec.Node == nil {
		return &GraphError{Message: "node " + spec.Name + " has a nil executor", Code: "NIL_NODE"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, spec.Name)
	}
	g.nodes[spec.Name] = spec

	if !g.hasChannelLocked(spec.Name) {
		g.channelSpecs = append(g.channelSpecs, ChannelSpec{Name: spec.Name, Reduce: LastValueReducer})
	}
	return nil
}

// AddChannel registers a channel's reduction behavior. A channel a node
// names in Triggers, Reads, SingleChannel or Writes must be declared here
// unless it is a node's own name-channel or a sentinel; an undeclared one
// makes planning or applying writes fail with a ChannelError.
func (g *Graph) AddChannel(spec ChannelSpec) error {
	if spec.Name == "" {
		return &GraphError{Message: "channel name must not be empty", Code: "EMPTY_CHANNEL_NAME"}
	}
	if isReservedName(spec.Name) {
		return fmt.Errorf("%w: %s", ErrReservedName, spec.Name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hasChannelLocked(spec.Name) {
		return &GraphError{Message: "channel already declared: " + spec.Name, Code: "DUPLICATE_CHANNEL"}
	}
	g.channelSpecs = append(g.channelSpecs, spec)
	g.userChannels[spec.Name] = true
	return nil
}

// AddEdge registers a static conditional edge, evaluated after its From node
// runs when that node's Command carried no explicit Goto.
func (g *Graph) AddEdge(edge Edge) error {
	if edge.From == "" || edge.To == "" {
		return &GraphError{Message: "edge requires non-empty From and To", Code: "INVALID_EDGE"}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = append(g.edges, edge)
	return nil
}

func (g *Graph) hasChannelLocked(name string) bool {
	for _, s := range g.channelSpecs {
		if s.Name == name {
			return true
		}
	}
	return false
}

// validate checks the graph is runnable: at least one entry node triggers
// on __start__, and every edge names a registered node. Per spec §7 this is
// a ValidationError, raised before any run, never retried.
func (g *Graph) validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	hasEntry := false
	for _, spec := range g.nodes {
		for _, t := range spec.Triggers {
			if t == StartChannel {
				hasEntry = true
			}
		}
	}
	if !hasEntry {
		return &GraphError{Message: "graph has no node triggered by __start__", Code: "NO_ENTRY_NODE"}
	}

	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return &GraphError{Message: "edge references unknown From node: " + e.From, Code: "UNKNOWN_EDGE_NODE"}
		}
		if _, ok := g.nodes[e.To]; !ok {
			return &GraphError{Message: "edge references unknown To node: " + e.To, Code: "UNKNOWN_EDGE_NODE"}
		}
	}
	return nil
}

func (g *Graph) trackerFor(threadID string) *interruptTracker {
	g.trackerMu.Lock()
	defer g.trackerMu.Unlock()
	t, ok := g.trackers[threadID]
	if !ok {
		t = newInterruptTracker(threadID)
		g.trackers[threadID] = t
	}
	return t
}

// Resume clears the active interrupt for threadID and stages value to be
// written to the __resume__ channel on the next Run/ExecuteSuperstep call,
// per spec §4.6. It returns ErrNotResuming if no interrupt is active.
func (g *Graph) Resume(threadID string, value ResumeValue) error {
	tracker := g.trackerFor(threadID)
	if _, _, err := tracker.resume(); err != nil {
		return err
	}
	g.trackerMu.Lock()
	g.pendingResume[threadID] = value
	g.trackerMu.Unlock()
	return nil
}

// Run ingests input into __start__ when threadID has no checkpoint yet
// (otherwise input is ignored) and drives the superstep loop to completion, returning the assembled public state. If the loop pauses on
// an interrupt, Run returns an *InterruptedError; the caller should inspect
// it, call Resume, and call Run again to continue.
func (g *Graph) Run(ctx context.Context, threadID string, input map[string]any) (map[string]any, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	if g.opts.RunWallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.RunWallClockBudget)
		defer cancel()
	}

	runID := uuid.NewString()
	channels, seen, parentID, step, recordings, err := g.loadRunState(ctx, threadID)
	if err != nil {
		return nil, err
	}

	if step == 0 && parentID == "" {
		if ch := channels.Get(StartChannel); ch != nil {
			if _, err := ch.Apply([]any{input}); err != nil {
				return nil, &ChannelError{Channel: StartChannel, Message: err.Error()}
			}
		}
	}

	tracker := g.trackerFor(threadID)
	g.consumePendingResume(threadID, tracker, channels)

	for {
		if g.opts.MaxSteps > 0 && step > g.opts.MaxSteps {
			return nil, ErrMaxStepsExceeded
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		g.mu.RLock()
		tasks, err := planSuperstep(step, g.nodes, channels, seen)
		g.mu.RUnlock()
		if err != nil {
			return nil, err
		}
		if len(tasks) == 0 {
			break
		}

		newParentID, newRecordings, err := g.executeSuperstep(ctx, runID, threadID, step, channels, seen, parentID, tracker, tasks, recordings)
		if err != nil {
			var interrupted *InterruptedError
			if errors.As(err, &interrupted) {
				return nil, interrupted
			}
			return nil, err
		}
		parentID = newParentID
		recordings = newRecordings
		step++
	}

	return g.assembleOutput(channels), nil
}

// ExecuteSuperstep runs exactly one superstep for threadID, primarily for
// tests and REPL-style step-through debugging (spec §6.3). It returns done
// = true when no tasks were runnable (the graph has reached a terminal
// state for this thread).
func (g *Graph) ExecuteSuperstep(ctx context.Context, threadID string) (done bool, err error) {
	if err := g.validate(); err != nil {
		return false, err
	}

	runID := uuid.NewString()
	channels, seen, parentID, step, recordings, err := g.loadRunState(ctx, threadID)
	if err != nil {
		return false, err
	}

	tracker := g.trackerFor(threadID)
	g.consumePendingResume(threadID, tracker, channels)

	g.mu.RLock()
	tasks, err := planSuperstep(step, g.nodes, channels, seen)
	g.mu.RUnlock()
	if err != nil {
		return false, err
	}
	if len(tasks) == 0 {
		return true, nil
	}

	if _, _, err := g.executeSuperstep(ctx, runID, threadID, step, channels, seen, parentID, tracker, tasks, recordings); err != nil {
		return false, err
	}
	return false, nil
}

// consumePendingResume writes a staged ResumeValue into __resume__ once, at
// the start of the step that resumes a paused thread.
func (g *Graph) consumePendingResume(threadID string, tracker *interruptTracker, channels *ChannelTable) {
	if tracker.state != Resuming {
		return
	}
	g.trackerMu.Lock()
	rv, ok := g.pendingResume[threadID]
	delete(g.pendingResume, threadID)
	g.trackerMu.Unlock()
	if !ok {
		return
	}
	val, ok := rv.valueFor(tracker.interruptID)
	if !ok {
		return
	}
	if ch := channels.Get(ResumeChannel); ch != nil {
		_, _ = ch.Apply([]any{val})
	}
}

// loadRunState reconstructs a thread's channel table and scheduling state
// from its latest checkpoint, or builds a fresh one if the thread has none.
// The returned recordings are whatever RecordedIO entries the checkpoint
// carried forward, for a WithReplayMode run to hand to its nodes.
func (g *Graph) loadRunState(ctx context.Context, threadID string) (*ChannelTable, NodeVersionsSeen, string, int, []RecordedIO, error) {
	g.mu.RLock()
	specs := append([]ChannelSpec(nil), g.channelSpecs...)
	g.mu.RUnlock()

	tuple, err := g.saver.GetTuple(ctx, CheckpointConfig{ThreadID: threadID})
	if errors.Is(err, ErrCheckpointNotFound) {
		return NewChannelTable(specs), NodeVersionsSeen{}, "", 0, nil, nil
	}
	if err != nil {
		return nil, nil, "", 0, nil, &CheckpointError{Message: "loading checkpoint for thread " + threadID, Cause: err}
	}

	channels, seen := restoreFromCheckpoint(tuple.Checkpoint, specs)
	recordings := recordingsFromMetadata(tuple.Checkpoint.Metadata)
	return channels, seen, tuple.Checkpoint.ID, tuple.Checkpoint.Metadata.Step + 1, recordings, nil
}

// taskOutcome is one task's result after retry/timeout handling.
type taskOutcome struct {
	task Task
	cmd  Command
	err  error
}

// executeSuperstep runs one full superstep: interrupt-before check, bounded
// parallel dispatch with retry, interrupt-after check, write decomposition
// and the barrier apply, checkpoint persistence, then ordered event flush.
// It returns the new checkpoint id and the recordings now carried forward
// (prior recordings merged with any this step's nodes captured), or an
// *InterruptedError if the loop paused instead of completing the step.
func (g *Graph) executeSuperstep(
	ctx context.Context,
	runID, threadID string,
	step int,
	channels *ChannelTable,
	seen NodeVersionsSeen,
	parentID string,
	tracker *interruptTracker,
	tasks []Task,
	recordings []RecordedIO,
) (string, []RecordedIO, error) {
	resuming := tracker.state == Resuming

	if !resuming {
		if pausedID, err := g.checkInterruptBefore(ctx, threadID, step, channels, seen, parentID, tracker, tasks); err != nil {
			return pausedID, recordings, err
		}
	}

	preStepVersions := channels.Versions()

	outcomes, emitter, err := g.dispatchTasks(ctx, runID, threadID, step, tasks, recordings)
	if err != nil {
		return "", recordings, err
	}

	for _, o := range outcomes {
		if o.err != nil {
			// runTaskWithRetry only returns an error once retries (if any)
			// are exhausted, so any error here aborts the step: no writes
			// are applied and the last checkpoint remains current.
			return "", recordings, o.err
		}
	}

	if pausedID, ierr := g.checkInterruptAfter(ctx, threadID, step, channels, seen, parentID, tracker, outcomes); ierr != nil {
		return pausedID, recordings, ierr
	}

	pending, ranNodes, messages := g.decomposeOutcomes(outcomes, channels)

	updated, err := applyWrites(channels, pending, preStepVersions, ranNodes, seen)
	if err != nil {
		if g.opts.Metrics != nil {
			var chErr *ChannelError
			if errors.As(err, &chErr) {
				g.opts.Metrics.IncrementReducerErrors(runID, chErr.Channel)
			}
		}
		return "", recordings, err
	}

	var fresh []RecordedIO
	for _, o := range outcomes {
		fresh = append(fresh, o.cmd.Recordings...)
	}
	mergedRecordings := mergeRecordings(recordings, fresh)

	newID := uuid.NewString()
	cp := snapshotCheckpoint(newID, channels, seen, updated, CheckpointMetadata{
		Step:    step,
		Source:  "loop",
		Parents: parentIDList(parentID),
		Extra:   extraForRecordings(mergedRecordings),
	})
	if err := g.saver.Put(ctx, CheckpointConfig{ThreadID: threadID}, cp, parentID); err != nil {
		// Write failures are logged, not fatal: at-least-once durability
		// prefers progress over a blocked loop (spec §4.8).
		log.Printf("pregel: checkpoint write failed for thread %s step %d: %v", threadID, step, err)
		if g.opts.Metrics != nil {
			g.opts.Metrics.IncrementBackpressure(runID, "checkpoint_write_failed")
		}
	}

	g.flushEvents(ctx, runID, step, channels, updated, outcomes, messages, newID, emitter)

	if resuming {
		tracker.settle()
	}

	return newID, mergedRecordings, nil
}

// checkInterruptBefore pauses the loop if any of this step's tasks targets
// a node in InterruptBefore. Because no task has run yet, the pending work
// is the task descriptors themselves; they are written as __pending_task__
// pending writes on the interrupt checkpoint. Resume does not read them
// back: the next step re-plans from the checkpointed channel table, which
// triggers the paused node again since its versions-seen never advanced.
func (g *Graph) checkInterruptBefore(
	ctx context.Context,
	threadID string,
	step int,
	channels *ChannelTable,
	seen NodeVersionsSeen,
	parentID string,
	tracker *interruptTracker,
	tasks []Task,
) (string, error) {
	if len(g.opts.InterruptBefore) == 0 {
		return "", nil
	}
	for _, t := range tasks {
		if !containsString(g.opts.InterruptBefore, t.NodeName) {
			continue
		}
		cpID := uuid.NewString()
		cp := snapshotCheckpoint(cpID, channels, seen, nil, CheckpointMetadata{
			Step: step, Source: "loop", Parents: parentIDList(parentID),
		})
		if err := g.saver.Put(ctx, CheckpointConfig{ThreadID: threadID}, cp, parentID); err != nil {
			return "", &CheckpointError{Message: "persisting interrupt-before checkpoint", Cause: err}
		}
		writes := make([]PendingWrite, 0, len(tasks))
		for _, pt := range tasks {
			writes = append(writes, PendingWrite{TaskID: pt.ID, Channel: "__pending_task__", Value: pt})
		}
		_ = g.saver.PutWrites(ctx, CheckpointConfig{ThreadID: threadID, ID: cpID}, writes)

		return cpID, tracker.pause(InterruptBefore, t.NodeName, step, cpID, t.ID, tasks)
	}
	return "", nil
}

// checkInterruptAfter pauses the loop after tasks ran but before their
// writes are applied, if any executed node is in InterruptAfter. Writes are
// held as pending writes rather than applied.
func (g *Graph) checkInterruptAfter(
	ctx context.Context,
	threadID string,
	step int,
	channels *ChannelTable,
	seen NodeVersionsSeen,
	parentID string,
	tracker *interruptTracker,
	outcomes []taskOutcome,
) (string, error) {
	if len(g.opts.InterruptAfter) == 0 {
		return "", nil
	}
	for _, o := range outcomes {
		if !containsString(g.opts.InterruptAfter, o.task.NodeName) {
			continue
		}
		cpID := uuid.NewString()
		cp := snapshotCheckpoint(cpID, channels, seen, nil, CheckpointMetadata{
			Step: step, Source: "loop", Parents: parentIDList(parentID),
		})
		if err := g.saver.Put(ctx, CheckpointConfig{ThreadID: threadID}, cp, parentID); err != nil {
			return "", &CheckpointError{Message: "persisting interrupt-after checkpoint", Cause: err}
		}
		writes := make([]PendingWrite, 0, len(outcomes))
		for _, oc := range outcomes {
			writes = append(writes, PendingWrite{TaskID: oc.task.ID, Channel: oc.task.NodeName, Value: oc.cmd.Update})
		}
		_ = g.saver.PutWrites(ctx, CheckpointConfig{ThreadID: threadID, ID: cpID}, writes)

		ierr := tracker.pause(InterruptAfter, o.task.NodeName, step, cpID, o.task.ID, outcomes)
		return cpID, ierr
	}
	return "", nil
}

// dispatchTasks runs tasks concurrently, bounded by Options.MaxConcurrentTasks,
// each under its node's timeout and retry policy. It emits no TaskStart or
// TaskEnd chunks itself; flushEvents emits them from the returned outcomes
// in the superstep's canonical order once the barrier has committed.
func (g *Graph) dispatchTasks(ctx context.Context, runID, threadID string, step int, tasks []Task, recordings []RecordedIO) ([]taskOutcome, stream.Emitter, error) {
	outcomes := make([]taskOutcome, len(tasks))

	concurrency := g.opts.MaxConcurrentTasks
	if concurrency <= 0 {
		concurrency = 1
	}
	if g.opts.Metrics != nil {
		g.opts.Metrics.UpdateQueueDepth(len(tasks))
	}

	sem := make(chan struct{}, concurrency)
	grp, gctx := errgroup.WithContext(ctx)

	g.mu.RLock()
	specs := g.nodes
	g.mu.RUnlock()

	var inflight int32
	for i, task := range tasks {
		i, task := i, task
		spec, ok := specs[task.NodeName]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownNode, task.NodeName)
		}

		grp.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			if g.opts.Metrics != nil {
				g.opts.Metrics.UpdateInflightTasks(int(addInt32(&inflight, 1)))
				defer g.opts.Metrics.UpdateInflightTasks(int(addInt32(&inflight, -1)))
			}

			rt := &Runtime{
				RunID:      runID,
				ThreadID:   threadID,
				Step:       step,
				NodeName:   task.NodeName,
				TaskID:     task.ID,
				store:      g.opts.Store,
				writer:     g.opts.Emitter,
				cost:       g.opts.CostTracker,
				replayMode: g.opts.ReplayMode,
				recordings: recordings,
			}
			input := injectManaged(task.Input, rt)
			cmd, err := g.runTaskWithRetry(gctx, rt, spec, input)
			cmd.Update = stripManaged(cmd.Update)
			outcomes[i] = taskOutcome{task: task, cmd: cmd, err: err}
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, nil, err
	}
	if g.opts.Metrics != nil {
		g.opts.Metrics.UpdateQueueDepth(0)
	}
	return outcomes, g.opts.Emitter, nil
}

// runTaskWithRetry executes one task under its node's NodePolicy, retrying
// transient failures with seeded exponential backoff so replay reproduces
// identical delays.
func (g *Graph) runTaskWithRetry(ctx context.Context, rt *Runtime, spec NodeSpec, input any) (Command, error) {
	attempts := 1
	var retry *RetryPolicy
	if spec.Policy.RetryPolicy != nil {
		retry = spec.Policy.RetryPolicy
		if retry.MaxAttempts > 0 {
			attempts = retry.MaxAttempts
		}
	}
	rng := rand.New(rand.NewSource(seedFromString(rt.TaskID))) //nolint:gosec // deterministic replay seed, not security

	var (
		cmd     Command
		lastErr error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		rt.Attempt = attempt
		start := time.Now()
		var err error
		cmd, err = runNodeWithTimeout(ctx, spec.Node, rt, input, &spec.Policy, g.opts.DefaultNodeTimeout)
		if g.opts.Metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			g.opts.Metrics.RecordTaskLatency(rt.RunID, rt.NodeName, time.Since(start), status)
		}
		if err == nil {
			return cmd, nil
		}
		lastErr = err

		if retry == nil || retry.Retryable == nil || !retry.Retryable(err) || attempt == attempts-1 {
			return cmd, err
		}
		if g.opts.Metrics != nil {
			g.opts.Metrics.IncrementRetries(rt.RunID, rt.NodeName, "retryable_error")
		}
		delay := computeBackoff(attempt, retry.BaseDelay, retry.MaxDelay, rng)
		select {
		case <-ctx.Done():
			return cmd, ctx.Err()
		case <-time.After(delay):
		}
	}
	return cmd, lastErr
}

// decomposeOutcomes converts a superstep's successful task outcomes into
// the flat (channel, task_id, value) writes the applier consumes (spec
// §4.4), plus the set of node names that ran (for the versions-seen
// update) and any messages extracted for streaming.
func (g *Graph) decomposeOutcomes(outcomes []taskOutcome, channels *ChannelTable) ([]pendingUpdate, map[string]bool, []Message) {
	g.mu.RLock()
	specs := g.nodes
	edges := g.edges
	userChannels := g.userChannels
	g.mu.RUnlock()

	var pending []pendingUpdate
	ranNodes := make(map[string]bool, len(outcomes))
	var messages []Message

	for _, o := range outcomes {
		ranNodes[o.task.NodeName] = true
		spec := specs[o.task.NodeName]

		pending = append(pending, pendingUpdate{Channel: o.task.NodeName, TaskID: o.task.ID, Value: o.cmd.Update})

		if len(spec.Writes) > 0 {
			for _, ch := range spec.Writes {
				pending = append(pending, pendingUpdate{Channel: ch, TaskID: o.task.ID, Value: o.cmd.Update})
			}
		} else {
			for key, value := range o.cmd.Update {
				if key == "messages" {
					if msgs, err := asMessages(value); err == nil {
						messages = append(messages, msgs...)
					}
					pending = append(pending, pendingUpdate{Channel: key, TaskID: o.task.ID, Value: value})
					continue
				}
				if userChannels[key] {
					pending = append(pending, pendingUpdate{Channel: key, TaskID: o.task.ID, Value: value})
				}
			}
		}

		sends, _ := gotoSends(o.cmd.Goto, o.cmd.Update)
		rt := &Runtime{NodeName: o.task.NodeName, TaskID: o.task.ID}
		if len(sends) == 0 && spec.Router != nil {
			if routed, err := spec.Router(rt, channels); err == nil {
				sends = routed
			}
		}
		if len(sends) == 0 {
			for _, e := range edges {
				if e.From != o.task.NodeName {
					continue
				}
				if e.When == nil || e.When(rt, channels) {
					sends = append(sends, Send{To: e.To, Payload: o.cmd.Update})
					break
				}
			}
		}
		for _, s := range sends {
			pending = append(pending, pendingUpdate{Channel: TasksChannel, TaskID: o.task.ID, Value: s})
		}
	}

	return pending, ranNodes, messages
}

// flushEvents emits a superstep's stream chunks in the canonical order
// (spec §4.7): TaskStart(s), TaskEnd/Error(s), Updates, Messages, Values,
// Checkpoint. It runs after the checkpoint for the step has been persisted.
// Custom and MessageChunk chunks are not emitted here: Runtime.WriteChunk
// emits them while the node runs, ahead of this sequence.
func (g *Graph) flushEvents(
	ctx context.Context,
	runID string,
	step int,
	channels *ChannelTable,
	updated map[string]bool,
	outcomes []taskOutcome,
	messages []Message,
	checkpointID string,
	emitter stream.Emitter,
) {
	if emitter == nil {
		return
	}

	for _, o := range outcomes {
		emitter.Emit(stream.StreamChunk{RunID: runID, Step: step, NodeName: o.task.NodeName, Mode: stream.ModeTasks,
			Payload: stream.TaskStartPayload{TaskID: o.task.ID, Input: o.task.Input}})
	}
	for _, o := range outcomes {
		emitter.Emit(stream.StreamChunk{RunID: runID, Step: step, NodeName: o.task.NodeName, Mode: stream.ModeTasks,
			Payload: stream.TaskEndPayload{TaskID: o.task.ID, Error: o.err}})
	}

	if len(updated) > 0 {
		changed := make(map[string]any, len(updated))
		for name := range updated {
			if ch := channels.Get(name); ch != nil {
				if v, _, set := ch.Snapshot(); set {
					changed[name] = v
				}
			}
		}
		emitter.Emit(stream.StreamChunk{RunID: runID, Step: step, Mode: stream.ModeUpdates,
			Payload: stream.UpdatesPayload{Channels: changed}})
	}

	for _, m := range messages {
		emitter.Emit(stream.StreamChunk{RunID: runID, Step: step, Mode: stream.ModeMessages, Payload: m})
	}

	values := make(map[string]any, len(channels.Names()))
	for _, name := range channels.Names() {
		if ch := channels.Get(name); ch != nil {
			if v, _, set := ch.Snapshot(); set {
				values[name] = v
			}
		}
	}
	emitter.Emit(stream.StreamChunk{RunID: runID, Step: step, Mode: stream.ModeValues,
		Payload: stream.ValuesPayload{Channels: values}})

	emitter.Emit(stream.StreamChunk{RunID: runID, Step: step, Mode: stream.ModeCheckpoints,
		Payload: stream.CheckpointPayload{CheckpointID: checkpointID}})

	_ = emitter.Flush(ctx)
}

// assembleOutput projects a channel table down to the public state a Run
// caller sees: every user-declared channel with a value, excluding
// sentinels and the implicit per-node echo channels.
func (g *Graph) assembleOutput(channels *ChannelTable) map[string]any {
	g.mu.RLock()
	userChannels := g.userChannels
	g.mu.RUnlock()

	out := make(map[string]any)
	for name := range userChannels {
		ch := channels.Get(name)
		if ch == nil {
			continue
		}
		if v, err := ch.Get(); err == nil {
			out[name] = v
		}
	}
	return out
}

// GetState returns the latest persisted checkpoint for threadID.
func (g *Graph) GetState(ctx context.Context, threadID string) (Checkpoint, error) {
	tuple, err := g.saver.GetTuple(ctx, CheckpointConfig{ThreadID: threadID})
	if err != nil {
		return Checkpoint{}, err
	}
	return tuple.Checkpoint, nil
}

// GetStateHistory returns a thread's checkpoints in reverse chronological
// order, capped at limit (0 for no limit).
func (g *Graph) GetStateHistory(ctx context.Context, threadID string, limit int) ([]Checkpoint, error) {
	tuples, err := g.saver.List(ctx, threadID, "", limit)
	if err != nil {
		return nil, err
	}
	out := make([]Checkpoint, len(tuples))
	for i, t := range tuples {
		out[i] = t.Checkpoint
	}
	return out, nil
}

// UpdateState applies updates directly to a thread's channels outside the
// normal node-execution path — a manual time-travel write — and persists
// the result as a new checkpoint with Source "update". It returns the new
// checkpoint's id.
func (g *Graph) UpdateState(ctx context.Context, threadID string, updates map[string]any) (string, error) {
	channels, seen, parentID, step, recordings, err := g.loadRunState(ctx, threadID)
	if err != nil {
		return "", err
	}

	preVersions := channels.Versions()
	pending := make([]pendingUpdate, 0, len(updates))
	for name, value := range updates {
		pending = append(pending, pendingUpdate{Channel: name, TaskID: "update", Value: value})
	}

	updated, err := applyWrites(channels, pending, preVersions, map[string]bool{}, seen)
	if err != nil {
		return "", err
	}

	newID := uuid.NewString()
	cp := snapshotCheckpoint(newID, channels, seen, updated, CheckpointMetadata{
		Step: step, Source: "update", Parents: parentIDList(parentID), Extra: extraForRecordings(recordings),
	})
	if err := g.saver.Put(ctx, CheckpointConfig{ThreadID: threadID}, cp, parentID); err != nil {
		return "", &CheckpointError{Message: "persisting UpdateState checkpoint", Cause: err}
	}
	return newID, nil
}

func parentIDList(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func seedFromString(s string) int64 {
	h := sha256.Sum256([]byte(s))
	return int64(binary.BigEndian.Uint64(h[:8])) //nolint:gosec // deterministic seed, not security sensitive
}

func addInt32(addr *int32, delta int32) int32 {
	*addr += delta
	return *addr
}
