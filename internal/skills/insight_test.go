package skills

import (
	"testing"

	"github.com/narrativeforge/engine/internal/domain"
)

type stubCatalog struct {
	templates map[string]domain.Skill
}

func (c stubCatalog) SkillTemplate(id string) (domain.Skill, bool) {
	s, ok := c.templates[id]
	return s, ok
}

func TestApplyAction_GrantsAtFullThreshold(t *testing.T) {
	catalog := stubCatalog{templates: map[string]domain.Skill{
		"power_strike": {ID: "power_strike", Name: "Power Strike"},
	}}
	tracker := domain.ActionInsightTracker{}
	owned := map[string]struct{}{}

	var granted *InsightSignal
	for i := 0; i < 50; i++ {
		var signals []InsightSignal
		tracker, signals = ApplyAction(tracker, owned, "sword_slash", catalog)
		for _, s := range signals {
			if s.Kind == SignalFullUnlock {
				sig := s
				granted = &sig
			}
		}
	}
	if granted == nil {
		t.Fatal("expected a full unlock signal after 50 sword_slash actions")
	}
	if granted.Skill.ID != "power_strike" {
		t.Errorf("granted skill = %s, want power_strike", granted.Skill.ID)
	}
	if tracker.Counts["sword_slash"] != 50 {
		t.Errorf("count = %d, want 50", tracker.Counts["sword_slash"])
	}
}

func TestApplyAction_RevealsPartialBeforeFull(t *testing.T) {
	catalog := stubCatalog{templates: map[string]domain.Skill{
		"power_strike": {ID: "power_strike"},
	}}
	tracker := domain.ActionInsightTracker{}
	owned := map[string]struct{}{}

	sawPartial := false
	for i := 0; i < 13; i++ {
		var signals []InsightSignal
		tracker, signals = ApplyAction(tracker, owned, "sword_slash", catalog)
		for _, s := range signals {
			if s.Kind == SignalPartialReveal {
				sawPartial = true
			}
		}
	}
	if !sawPartial {
		t.Fatal("expected a partial reveal signal at the partial threshold")
	}
}

func TestApplyAction_NeverGrantsAlreadyOwnedSkill(t *testing.T) {
	catalog := stubCatalog{templates: map[string]domain.Skill{
		"power_strike": {ID: "power_strike"},
	}}
	tracker := domain.ActionInsightTracker{}
	owned := map[string]struct{}{"power_strike": {}}

	for i := 0; i < 60; i++ {
		var signals []InsightSignal
		tracker, signals = ApplyAction(tracker, owned, "sword_slash", catalog)
		for _, s := range signals {
			if s.Kind == SignalFullUnlock {
				t.Fatal("should never re-grant an already-owned skill")
			}
		}
	}
}
