package pregel

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
)

// Task is one node invocation planned for a superstep: which node, what
// input it observed, and a deterministic id used for ordering, write
// attribution, and pending-write recovery.
type Task struct {
	ID       string
	NodeName string
	Input    any
	Path     []int // Send fan-out path, for ordering nested dynamic tasks
}

// planSuperstep decides which tasks run in the next superstep, given the
// graph's static node specs/edges, the current channel table, and the
// per-node VersionsSeen recorded as of the end of the previous step.
//
// The algorithm (spec §4.2):
//  1. Static trigger comparison: a node with trigger channel c is runnable
//     if channels[c].Version() > versionsSeen[node][c].
//  2. Dynamic Sends: every Send left in __tasks__ from the previous step's
//     writes becomes its own task, regardless of trigger versions.
//  3. Input assembly: SingleChannel nodes get that channel's raw value;
//     others get a map[string]any of their Reads channels.
//  4. Deterministic task ids via a content hash of (node name, input,
//     step, path) so retries and replay reproduce identical ids.
//  5. Canonical ordering by (path, node name, task id), so concurrent
//     dispatch is reproducible regardless of goroutine completion order.
func planSuperstep(step int, specs map[string]NodeSpec, channels *ChannelTable, seen NodeVersionsSeen) ([]Task, error) {
	var tasks []Task

	for name, spec := range specs {
		if len(spec.Triggers) == 0 {
			continue
		}
		nodeSeen := seen.forNode(name)
		triggered := false
		for _, trig := range spec.Triggers {
			ch := channels.Get(trig)
			if ch == nil {
				return nil, &ChannelError{Channel: trig, Message: "node " + name + " triggers on unknown channel"}
			}
			last, ok := nodeSeen[trig]
			if !ok {
				last = ZeroVersion
			}
			if ch.IsSet() && ch.Version().Compare(last) > 0 {
				triggered = true
				break
			}
		}
		if !triggered {
			continue
		}
		input, err := assembleInput(spec, channels)
		if err != nil {
			return nil, err
		}
		id, err := computeTaskID(name, input, step, nil)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, Task{ID: id, NodeName: name, Input: input})
	}

	sendTasks, err := drainSends(step, channels, specs)
	if err != nil {
		return nil, err
	}
	tasks = append(tasks, sendTasks...)

	sort.Slice(tasks, func(i, j int) bool {
		return lessTask(tasks[i], tasks[j])
	})

	return tasks, nil
}

func assembleInput(spec NodeSpec, channels *ChannelTable) (any, error) {
	if spec.SingleChannel != "" {
		ch := channels.Get(spec.SingleChannel)
		if ch == nil {
			return nil, &ChannelError{Channel: spec.SingleChannel, Message: "unknown channel"}
		}
		v, err := ch.Get()
		if err != nil && err != ErrChannelNotSet {
			return nil, err
		}
		return v, nil
	}
	out := make(map[string]any)
	for _, name := range spec.effectiveReads() {
		ch := channels.Get(name)
		if ch == nil {
			return nil, &ChannelError{Channel: name, Message: "unknown channel"}
		}
		v, err := ch.Get()
		if err == ErrChannelNotSet {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// drainSends converts every pending Send accumulated on __tasks__ during the
// previous step into its own Task, then clears the channel so Sends never
// re-fire in a later step.
func drainSends(step int, channels *ChannelTable, specs map[string]NodeSpec) ([]Task, error) {
	ch := channels.Get(TasksChannel)
	if ch == nil || !ch.IsSet() {
		return nil, nil
	}
	raw, err := ch.Get()
	if err != nil {
		return nil, err
	}
	pending, ok := raw.([]any)
	if !ok {
		return nil, nil
	}
	var tasks []Task
	for i, item := range pending {
		send, ok := item.(Send)
		if !ok {
			continue
		}
		if _, ok := specs[send.To]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, send.To)
		}
		id, err := computeTaskID(send.To, send.Payload, step, []int{i})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, Task{ID: id, NodeName: send.To, Input: send.Payload, Path: []int{i}})
	}
	ch.Restore(nil, ch.Version())
	return tasks, nil
}

// computeTaskID hashes the task's full identity so that the same logical
// task — same node, same input, same step, same fan-out path — always
// produces the same id, whether this is its first attempt or a retry.
func computeTaskID(nodeName string, input any, step int, path []int) (string, error) {
	h := sha256.New()
	h.Write([]byte(nodeName))

	stepBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(stepBytes, uint64(step))
	h.Write(stepBytes)

	for _, p := range path {
		pb := make([]byte, 4)
		binary.BigEndian.PutUint32(pb, uint32(p))
		h.Write(pb)
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("pregel: hashing task input: %w", err)
	}
	h.Write(inputJSON)

	return fmt.Sprintf("%x", h.Sum(nil))[:32], nil
}

func lessTask(a, b Task) bool {
	for i := 0; i < len(a.Path) && i < len(b.Path); i++ {
		if a.Path[i] != b.Path[i] {
			return a.Path[i] < b.Path[i]
		}
	}
	if len(a.Path) != len(b.Path) {
		return len(a.Path) < len(b.Path)
	}
	if a.NodeName != b.NodeName {
		return a.NodeName < b.NodeName
	}
	return a.ID < b.ID
}
