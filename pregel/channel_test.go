package pregel_test

import (
	"errors"
	"testing"

	"github.com/corvidworks/pregel"
)

func TestChannelGetUnsetReturnsErrChannelNotSet(t *testing.T) {
	c := pregel.NewChannel(pregel.ChannelSpec{Name: "counter"})
	if _, err := c.Get(); !errors.Is(err, pregel.ErrChannelNotSet) {
		t.Fatalf("expected ErrChannelNotSet, got %v", err)
	}
}

func TestChannelGetUnsetWithInitialReturnsInitial(t *testing.T) {
	c := pregel.NewChannel(pregel.ChannelSpec{Name: "counter", Initial: 0})
	v, err := c.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected initial value 0, got %v", v)
	}
}

func TestChannelApplyDefaultsToLastValueReducer(t *testing.T) {
	c := pregel.NewChannel(pregel.ChannelSpec{Name: "state"})
	changed, err := c.Apply([]any{"first", "second"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !changed {
		t.Fatal("expected version to change on first write")
	}
	v, err := c.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "second" {
		t.Fatalf("expected LastValueReducer to keep \"second\", got %v", v)
	}
}

func TestChannelApplyNoChangeKeepsVersion(t *testing.T) {
	c := pregel.NewChannel(pregel.ChannelSpec{Name: "state"})
	if _, err := c.Apply([]any{"same"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	before := c.Version()

	changed, err := c.Apply([]any{"same"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if changed {
		t.Fatal("expected no version bump when the reduced value is unchanged")
	}
	if c.Version().Compare(before) != 0 {
		t.Fatalf("version moved despite no change: before=%s after=%s", before, c.Version())
	}
}

func TestChannelApplyEmptyUpdatesIsNoOp(t *testing.T) {
	c := pregel.NewChannel(pregel.ChannelSpec{Name: "state"})
	changed, err := c.Apply(nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if changed {
		t.Fatal("expected no-op on empty updates")
	}
	if c.IsSet() {
		t.Fatal("expected channel to remain unset")
	}
}

func TestTopicReducerAppendsAndDedupes(t *testing.T) {
	reduce := pregel.TopicReducer(true)
	out, err := reduce(nil, []any{"a", "b", "a"})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	got := out.([]any)
	if len(got) != 2 {
		t.Fatalf("expected dedupe to collapse to 2 entries, got %v", got)
	}

	out2, err := reduce(out, []any{"c"})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	got2 := out2.([]any)
	if len(got2) != 3 {
		t.Fatalf("expected fan-in to accumulate across calls, got %v", got2)
	}
}

func TestTopicReducerWithoutDedupeKeepsDuplicates(t *testing.T) {
	reduce := pregel.TopicReducer(false)
	out, err := reduce(nil, []any{"a", "a"})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if len(out.([]any)) != 2 {
		t.Fatalf("expected duplicates preserved, got %v", out)
	}
}

func TestTopicReducerDedupesUncomparablePayloadsWithoutPanicking(t *testing.T) {
	reduce := pregel.TopicReducer(true)
	a := map[string]any{"id": 1}
	b := map[string]any{"id": 1}
	c := map[string]any{"id": 2}

	out, err := reduce(nil, []any{a, b, c})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	got := out.([]any)
	if len(got) != 2 {
		t.Fatalf("expected deep-equal maps to dedupe to 2 entries, got %v", got)
	}
}

func TestBinaryOpReducerFoldsUpdatesAndPrevious(t *testing.T) {
	sum := func(a, b any) (any, error) {
		return a.(int) + b.(int), nil
	}
	reduce := pregel.BinaryOpReducer(sum)

	out, err := reduce(10, []any{1, 2, 3})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if out.(int) != 16 {
		t.Fatalf("expected 16, got %v", out)
	}
}

func TestBinaryOpReducerNilPreviousSeedsFromFirstUpdate(t *testing.T) {
	sum := func(a, b any) (any, error) {
		return a.(int) + b.(int), nil
	}
	reduce := pregel.BinaryOpReducer(sum)

	out, err := reduce(nil, []any{5, 5})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if out.(int) != 10 {
		t.Fatalf("expected 10, got %v", out)
	}
}

func TestVersionCompareAcrossKindsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic comparing versions of different kinds")
		}
	}()
	a := pregel.Version{Kind: pregel.VersionInt, I: 1}
	b := pregel.Version{Kind: pregel.VersionFloat, F: 1}
	a.Compare(b)
}

func TestVersionNextIntMonotonic(t *testing.T) {
	v := pregel.ZeroVersion
	next := v.Next()
	if next.Compare(v) <= 0 {
		t.Fatalf("expected Next() to move forward: %s -> %s", v, next)
	}
}
