package pregel_test

import (
	"testing"

	"github.com/corvidworks/pregel"
)

func TestNewChannelTableRegistersSentinelChannels(t *testing.T) {
	table := pregel.NewChannelTable([]pregel.ChannelSpec{{Name: "state"}})

	for _, name := range []string{pregel.TasksChannel, pregel.StartChannel, pregel.ResumeChannel, "state"} {
		if table.Get(name) == nil {
			t.Fatalf("expected channel %q to be registered", name)
		}
	}
}

func TestNewChannelTableDoesNotOverrideExplicitSentinelSpec(t *testing.T) {
	custom := pregel.ChannelSpec{Name: pregel.StartChannel, Initial: "seeded"}
	table := pregel.NewChannelTable([]pregel.ChannelSpec{custom})

	v, err := table.Get(pregel.StartChannel).Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "seeded" {
		t.Fatalf("expected the explicit __start__ spec to win, got %v", v)
	}
}

func TestChannelTableNamesAreSorted(t *testing.T) {
	table := pregel.NewChannelTable([]pregel.ChannelSpec{{Name: "zeta"}, {Name: "alpha"}})
	names := table.Names()

	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("expected sorted names, got %v", names)
		}
	}
}

func TestChannelTableVersionsReflectsAppliedUpdates(t *testing.T) {
	table := pregel.NewChannelTable([]pregel.ChannelSpec{{Name: "counter"}})
	before := table.Versions()["counter"]

	if _, err := table.Get("counter").Apply([]any{1}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	after := table.Versions()["counter"]
	if after.Compare(before) <= 0 {
		t.Fatalf("expected counter's version to advance after Apply: before=%s after=%s", before, after)
	}
}

func TestVersionsSeenCloneIsIndependentOfOriginal(t *testing.T) {
	original := pregel.VersionsSeen{"state": pregel.ZeroVersion}
	clone := original.Clone()
	clone["state"] = pregel.ZeroVersion.Next()

	if original["state"].Compare(clone["state"]) == 0 {
		t.Fatal("expected mutating the clone to leave the original untouched")
	}
}
