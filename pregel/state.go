package pregel

import "sort"

// Sentinel channel and node names reserved by the runtime. User graphs may
// not register a node or channel under these names (AddNode/AddChannel
// return ErrReservedName).
const (
	StartChannel  = "__start__"
	EndChannel    = "__end__"
	TasksChannel  = "__tasks__"
	ResumeChannel = "__resume__"

	StartNode = "__start__"
	EndNode   = "__end__"
)

func isReservedName(name string) bool {
	switch name {
	case StartChannel, EndChannel, TasksChannel, ResumeChannel:
		return true
	default:
		return false
	}
}

// ChannelTable is the full set of named channels making up a graph's state,
// keyed by channel name.
type ChannelTable struct {
	channels map[string]*Channel
}

// NewChannelTable builds a table from a list of specs, plus the runtime's
// sentinel channels: __tasks__ collects dynamic Sends between supersteps,
// __start__ holds the run's input and implicitly triggers entry nodes,
// __resume__ holds the value a resumed run stages for the paused node.
func NewChannelTable(specs []ChannelSpec) *ChannelTable {
	t := &ChannelTable{channels: make(map[string]*Channel, len(specs)+3)}
	for _, s := range specs {
		t.channels[s.Name] = NewChannel(s)
	}
	if _, ok := t.channels[TasksChannel]; !ok {
		t.channels[TasksChannel] = NewChannel(ChannelSpec{
			Name:   TasksChannel,
			Reduce: TopicReducer(false),
		})
	}
	if _, ok := t.channels[StartChannel]; !ok {
		t.channels[StartChannel] = NewChannel(ChannelSpec{Name: StartChannel, Reduce: LastValueReducer})
	}
	if _, ok := t.channels[ResumeChannel]; !ok {
		t.channels[ResumeChannel] = NewChannel(ChannelSpec{Name: ResumeChannel, Reduce: LastValueReducer})
	}
	return t
}

// Get returns the named channel, or nil if no such channel is registered.
func (t *ChannelTable) Get(name string) *Channel {
	return t.channels[name]
}

// Names returns all registered channel names in sorted order, for
// deterministic iteration (version comparisons, checkpoint serialization).
func (t *ChannelTable) Names() []string {
	names := make([]string, 0, len(t.channels))
	for n := range t.channels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Versions returns a snapshot of every channel's current version, keyed by
// name. Used both for the static trigger-comparison in scheduling and for
// checkpoint metadata.
func (t *ChannelTable) Versions() map[string]Version {
	out := make(map[string]Version, len(t.channels))
	for name, ch := range t.channels {
		out[name] = ch.Version()
	}
	return out
}

// VersionsSeen is, for one node, the last channel version the scheduler
// observed when that node last ran — used to decide whether the node's
// trigger channels have advanced since.
type VersionsSeen map[string]Version

// Clone returns a deep-enough copy for safe mutation without aliasing the
// original map.
func (v VersionsSeen) Clone() VersionsSeen {
	out := make(VersionsSeen, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// NodeVersionsSeen tracks, per node name, the VersionsSeen map used to
// decide whether that node should be triggered in the next superstep.
type NodeVersionsSeen map[string]VersionsSeen

func (n NodeVersionsSeen) forNode(name string) VersionsSeen {
	vs, ok := n[name]
	if !ok {
		vs = VersionsSeen{}
		n[name] = vs
	}
	return vs
}
