package pregel

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// CheckpointMetadata carries the provenance of one checkpoint: which
// superstep produced it, what triggered the write, its parent checkpoint
// ids (the engine records at most one), and any caller-supplied extra
// fields.
type CheckpointMetadata struct {
	Step    int            `json:"step"`
	Source  string         `json:"source"`
	Parents []string       `json:"parents,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// Checkpoint is a durable snapshot of one superstep's channel state,
// serialized with exactly these field names so that a checkpoint written
// by one Saver implementation can be read by another.
type Checkpoint struct {
	V                int                `json:"v"`
	ID               string             `json:"id"`
	TS               time.Time          `json:"ts"`
	ChannelValues    map[string]any     `json:"channel_values"`
	ChannelVersions  map[string]Version `json:"channel_versions"`
	VersionsSeen     NodeVersionsSeen   `json:"versions_seen"`
	UpdatedChannels  []string           `json:"updated_channels"`
	Metadata         CheckpointMetadata `json:"metadata"`
}

// CheckpointWireVersion is the current Checkpoint.V value. Bump it, and
// branch on it in a Saver's decode path, if the wire shape ever changes.
const CheckpointWireVersion = 1

// snapshotCheckpoint builds a Checkpoint from a graph's current channel
// table and scheduling state.
func snapshotCheckpoint(id string, channels *ChannelTable, seen NodeVersionsSeen, updated map[string]bool, meta CheckpointMetadata) Checkpoint {
	values := make(map[string]any)
	versions := make(map[string]Version)
	for _, name := range channels.Names() {
		ch := channels.Get(name)
		v, version, set := ch.Snapshot()
		if set {
			values[name] = v
		}
		versions[name] = version
	}

	var updatedNames []string
	for name := range updated {
		updatedNames = append(updatedNames, name)
	}
	sort.Strings(updatedNames)

	return Checkpoint{
		V:               CheckpointWireVersion,
		ID:              id,
		TS:              time.Now(),
		ChannelValues:   values,
		ChannelVersions: versions,
		VersionsSeen:    cloneNodeVersionsSeen(seen),
		UpdatedChannels: updatedNames,
		Metadata:        meta,
	}
}

func cloneNodeVersionsSeen(seen NodeVersionsSeen) NodeVersionsSeen {
	out := make(NodeVersionsSeen, len(seen))
	for node, vs := range seen {
		out[node] = vs.Clone()
	}
	return out
}

// restoreFromCheckpoint rehydrates a channel table and versions-seen map
// from a persisted Checkpoint, bypassing reducers entirely (a checkpoint
// already holds post-reduction values).
func restoreFromCheckpoint(cp Checkpoint, specs []ChannelSpec) (*ChannelTable, NodeVersionsSeen) {
	table := NewChannelTable(specs)
	for name, version := range cp.ChannelVersions {
		ch := table.Get(name)
		if ch == nil {
			continue
		}
		value, hasValue := cp.ChannelValues[name]
		if hasValue {
			ch.Restore(value, version)
		} else {
			ch.version = version
		}
	}
	return table, cloneNodeVersionsSeen(cp.VersionsSeen)
}

// computeTaskHash hashes a task's (node, input, step) identity into a
// 16-hex-digit key, so the same node with different input or at a different
// step hashes differently. The engine does not call it; task ids come from
// computeTaskID.
func computeTaskHash(nodeName string, input any, step int) (string, error) {
	h := sha256.New()
	h.Write([]byte(nodeName))
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	h.Write(inputJSON)
	h.Write([]byte(strconv.Itoa(step)))
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
