package pregel

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// VersionKind tags the concrete representation a channel's version counter
// uses. Versions only ever compare within a single channel, never across
// channels, so the tag just needs to support ordering and JSON round-trips.
type VersionKind uint8

const (
	VersionInt VersionKind = iota
	VersionFloat
	VersionString
)

// Version is a monotonically increasing per-channel counter. NewChannel
// starts every channel at ZeroVersion (VersionInt) and Next never changes
// the kind, so the engine itself produces only VersionInt; the other two
// kinds appear only through Restore or a decoded checkpoint.
type Version struct {
	Kind VersionKind
	I    int64
	F    float64
	S    string
}

// ZeroVersion is the version of a channel that has never been written.
var ZeroVersion = Version{Kind: VersionInt, I: 0}

// Next returns the version immediately after v, for the kind-appropriate
// notion of "after". String versions are monotonic only in the sense the
// caller guarantees; Next on a string version is not well defined and panics.
func (v Version) Next() Version {
	switch v.Kind {
	case VersionInt:
		return Version{Kind: VersionInt, I: v.I + 1}
	case VersionFloat:
		return Version{Kind: VersionFloat, F: v.F + 1}
	default:
		panic("pregel: Version.Next is undefined for VersionString")
	}
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other. Comparing versions of different kinds panics: versions only ever
// compare within a single channel, and a channel's kind never changes after
// construction.
func (v Version) Compare(other Version) int {
	if v.Kind != other.Kind {
		panic("pregel: cannot compare versions of different kinds")
	}
	switch v.Kind {
	case VersionInt:
		switch {
		case v.I < other.I:
			return -1
		case v.I > other.I:
			return 1
		default:
			return 0
		}
	case VersionFloat:
		switch {
		case v.F < other.F:
			return -1
		case v.F > other.F:
			return 1
		default:
			return 0
		}
	default:
		switch {
		case v.S < other.S:
			return -1
		case v.S > other.S:
			return 1
		default:
			return 0
		}
	}
}

func (v Version) String() string {
	switch v.Kind {
	case VersionInt:
		return fmt.Sprintf("%d", v.I)
	case VersionFloat:
		return fmt.Sprintf("%g", v.F)
	default:
		return v.S
	}
}

type versionWire struct {
	Kind VersionKind `json:"kind"`
	I    int64       `json:"i,omitempty"`
	F    float64     `json:"f,omitempty"`
	S    string      `json:"s,omitempty"`
}

func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(versionWire{Kind: v.Kind, I: v.I, F: v.F, S: v.S})
}

func (v *Version) UnmarshalJSON(b []byte) error {
	var w versionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	v.Kind, v.I, v.F, v.S = w.Kind, w.I, w.F, w.S
	return nil
}

// Reducer combines the channel's previous value with one or more pending
// updates from the current superstep, producing the new value. Reducers
// must be pure and associative over the updates slice: the applier is free
// to batch updates from multiple tasks into a single call.
//
// A nil Reducer means the channel is write-once-per-step (LastValue):
// only the last update in task-id order survives.
type Reducer func(prev any, updates []any) (any, error)

// ChannelSpec describes one channel's reduction behavior. Channels are
// identified by name and registered once on the graph; their Kind never
// changes after that.
type ChannelSpec struct {
	Name    string
	Reduce  Reducer
	Initial any
}

// LastValueReducer keeps only the final update of the step, discarding
// earlier ones. This is the default for channels that represent "current
// value" rather than an accumulating log.
func LastValueReducer(_ any, updates []any) (any, error) {
	if len(updates) == 0 {
		return nil, nil
	}
	return updates[len(updates)-1], nil
}

// TopicReducer appends every update of the step to the channel's existing
// slice value, optionally de-duplicating by deep equality (reflect.DeepEqual,
// so map- and slice-valued updates dedupe safely rather than panicking). It
// models the spec's Topic/List channel kind, used for fan-in collection
// (e.g. Send map-reduce results).
func TopicReducer(dedupe bool) Reducer {
	return func(prev any, updates []any) (any, error) {
		var out []any
		if prev != nil {
			existing, ok := prev.([]any)
			if !ok {
				return nil, &ChannelError{Message: "topic channel previous value is not []any"}
			}
			out = append(out, existing...)
		}
		for _, u := range updates {
			if dedupe && containsAny(out, u) {
				continue
			}
			out = append(out, u)
		}
		return out, nil
	}
}

func containsAny(haystack []any, needle any) bool {
	for _, h := range haystack {
		if reflect.DeepEqual(h, needle) {
			return true
		}
	}
	return false
}

// BinaryOpReducer folds all of a step's updates, plus the previous value,
// through a user-supplied associative combine function. It models the
// spec's BinaryOp channel kind (counters, running totals, set-union state).
func BinaryOpReducer(combine func(a, b any) (any, error)) Reducer {
	return func(prev any, updates []any) (any, error) {
		acc := prev
		for _, u := range updates {
			if acc == nil {
				acc = u
				continue
			}
			var err error
			acc, err = combine(acc, u)
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
}

// Channel holds one named piece of graph state: its current value, the
// version it was last bumped to, and the reducer used to fold pending
// updates into a new value.
type Channel struct {
	spec    ChannelSpec
	value   any
	version Version
	set     bool
}

// NewChannel constructs a channel from its spec, unset (no value) and at
// ZeroVersion.
func NewChannel(spec ChannelSpec) *Channel {
	return &Channel{spec: spec, version: ZeroVersion}
}

// Name returns the channel's registered name.
func (c *Channel) Name() string { return c.spec.Name }

// Version returns the channel's current version.
func (c *Channel) Version() Version { return c.version }

// IsSet reports whether the channel has ever been written.
func (c *Channel) IsSet() bool { return c.set }

// Get returns the channel's current value. It returns ErrChannelNotSet if
// the channel has never been written and has no Initial value.
func (c *Channel) Get() (any, error) {
	if !c.set {
		if c.spec.Initial != nil {
			return c.spec.Initial, nil
		}
		return nil, ErrChannelNotSet
	}
	return c.value, nil
}

// Apply folds updates into the channel's value using its reducer, bumping
// the version only if the resulting value differs from the previous one.
// It returns whether the channel's version changed.
func (c *Channel) Apply(updates []any) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	reduce := c.spec.Reduce
	if reduce == nil {
		reduce = LastValueReducer
	}
	prev := c.value
	if !c.set && c.spec.Initial != nil {
		prev = c.spec.Initial
	}
	next, err := reduce(prev, updates)
	if err != nil {
		return false, err
	}
	changed := !c.set || !valuesEqual(prev, next)
	c.value = next
	c.set = true
	if changed {
		c.version = c.version.Next()
	}
	return changed, nil
}

func valuesEqual(a, b any) bool {
	aj, aerr := json.Marshal(a)
	bj, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return string(aj) == string(bj)
}

// Snapshot returns a copy of the channel's value and version suitable for
// inclusion in a Checkpoint.
func (c *Channel) Snapshot() (value any, version Version, set bool) {
	return c.value, c.version, c.set
}

// Restore sets the channel's value and version directly, bypassing the
// reducer. Used when rehydrating a graph from a persisted Checkpoint.
func (c *Channel) Restore(value any, version Version) {
	c.value = value
	c.version = version
	c.set = true
}
