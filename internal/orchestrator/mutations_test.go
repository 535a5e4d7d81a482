package orchestrator

import (
	"testing"

	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/internal/mcp/tools"
)

func TestApplyStateMutations_LootDropEmitsItemGainedEvent(t *testing.T) {
	o := &Orchestrator{}
	s := domain.GameState{GameID: "g1"}

	muts := []tools.StateMutation{
		{Kind: "loot_drop", Fields: map[string]any{"table": "random_encounter", "result": "rusty dagger"}},
	}

	_, events := o.applyStateMutations(s, muts)
	if len(events) != 1 {
		t.Fatalf("events = %+v, want exactly one", events)
	}
	if events[0].Type != domain.EventItemGained {
		t.Errorf("event type = %s, want %s", events[0].Type, domain.EventItemGained)
	}
}

func TestApplyStateMutations_DropsUnrecognisedKind(t *testing.T) {
	o := &Orchestrator{}
	s := domain.GameState{GameID: "g1"}

	muts := []tools.StateMutation{{Kind: "not_a_real_kind", TargetID: "x"}}

	next, events := o.applyStateMutations(s, muts)
	if len(events) != 0 {
		t.Fatalf("events = %+v, want none for an unrecognised mutation kind", events)
	}
	if next.GameID != s.GameID {
		t.Errorf("state was altered despite no recognised mutation")
	}
}

func TestApplyStateMutations_EmptyInputIsNoop(t *testing.T) {
	o := &Orchestrator{}
	s := domain.GameState{GameID: "g1"}

	next, events := o.applyStateMutations(s, nil)
	if len(events) != 0 || next.GameID != "g1" {
		t.Fatalf("expected a no-op for an empty mutation list, got state=%+v events=%+v", next, events)
	}
}
