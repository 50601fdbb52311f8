package pregel

import "sort"

// pendingUpdate is one (channel, task, value) write produced by a task
// during a superstep, before being grouped and reduced.
type pendingUpdate struct {
	Channel string
	TaskID  string
	Value   any
}

// applyWrites groups a superstep's pending writes by channel, applies each
// channel's reducer over its task-id-sorted values, and returns the set of
// channels whose version changed this step (spec §4.4).
//
// versionsSeen is updated here too: for every node that ran this step, its
// VersionsSeen map is advanced to the channel table's pre-step versions —
// the versions as of the *start* of the step, before this step's writes
// landed, matching the spec's requirement that a node never re-triggers on
// its own output from the same step.
func applyWrites(channels *ChannelTable, writes []pendingUpdate, preStepVersions map[string]Version, ranNodes map[string]bool, seen NodeVersionsSeen) (map[string]bool, error) {
	byChannel := make(map[string][]pendingUpdate)
	for _, w := range writes {
		byChannel[w.Channel] = append(byChannel[w.Channel], w)
	}

	updated := make(map[string]bool)
	for channelName, group := range byChannel {
		ch := channels.Get(channelName)
		if ch == nil {
			return nil, &ChannelError{Channel: channelName, Message: "write to unknown channel"}
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].TaskID != group[j].TaskID {
				return group[i].TaskID < group[j].TaskID
			}
			return false
		})
		values := make([]any, len(group))
		for i, w := range group {
			values[i] = w.Value
		}
		changed, err := ch.Apply(values)
		if err != nil {
			return nil, err
		}
		if changed {
			updated[channelName] = true
		}
	}

	for nodeName := range ranNodes {
		nodeSeen := seen.forNode(nodeName)
		for name, v := range preStepVersions {
			nodeSeen[name] = v
		}
	}

	return updated, nil
}
