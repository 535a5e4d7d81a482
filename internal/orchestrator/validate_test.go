package orchestrator

import (
	"testing"

	"github.com/narrativeforge/engine/internal/agents"
	"github.com/narrativeforge/engine/internal/domain"
)

func deadCharacterState() domain.GameState {
	sheet := domain.CharacterSheet{HP: domain.Resource{Current: 0, Max: 20}}
	return domain.GameState{CurrentLocation: domain.Location{ID: "town"}, CharacterSheet: sheet}
}

func aliveCharacterState() domain.GameState {
	sheet := domain.CharacterSheet{
		HP: domain.Resource{Current: 20, Max: 20},
		Skills: []domain.Skill{
			{ID: "fireball", Name: "Fireball", MaxLevel: 10, Level: 10},
		},
	}
	s := domain.GameState{CurrentLocation: domain.Location{ID: "town"}, CharacterSheet: sheet}
	s.NPCsByLocation = map[string][]domain.NPC{
		"town": {{ID: "mira", Name: "Mira", LocationID: "town"}},
	}
	return s
}

func TestValidateAction_BlocksCombatWhileDead(t *testing.T) {
	err := validateAction(agents.ClassifiedIntent{Intent: agents.IntentCombat}, deadCharacterState())
	if err == nil {
		t.Fatal("expected an error blocking combat while dead")
	}
}

func TestValidateAction_AllowsNonCombatWhileDead(t *testing.T) {
	err := validateAction(agents.ClassifiedIntent{Intent: agents.IntentSystemQuery}, deadCharacterState())
	if err != nil {
		t.Fatalf("unexpected error for a non-combat intent while dead: %v", err)
	}
}

func TestValidateAction_DialogueTargetMustResolve(t *testing.T) {
	s := aliveCharacterState()

	if err := validateAction(agents.ClassifiedIntent{Intent: agents.IntentNPCDialogue, Target: "mira"}, s); err != nil {
		t.Fatalf("unexpected error for a known NPC: %v", err)
	}
	if err := validateAction(agents.ClassifiedIntent{Intent: agents.IntentNPCDialogue, Target: "nobody"}, s); err == nil {
		t.Fatal("expected an error for an unresolvable dialogue target")
	}
	if err := validateAction(agents.ClassifiedIntent{Intent: agents.IntentNPCDialogue, Target: ""}, s); err != nil {
		t.Fatalf("unexpected error for an empty dialogue target: %v", err)
	}
}

func TestValidateAction_SkillTargetMustResolve(t *testing.T) {
	s := aliveCharacterState()

	if err := validateAction(agents.ClassifiedIntent{Intent: agents.IntentUseSkill, Target: "fireball"}, s); err != nil {
		t.Fatalf("unexpected error for a known skill: %v", err)
	}
	if err := validateAction(agents.ClassifiedIntent{Intent: agents.IntentUseSkill, Target: "no_such_skill"}, s); err == nil {
		t.Fatal("expected an error for an unresolvable skill target")
	}
}

func TestValidateAction_EvolutionTargetMustParse(t *testing.T) {
	s := aliveCharacterState()

	if err := validateAction(agents.ClassifiedIntent{Intent: agents.IntentSkillEvolution, Target: "fireball->inferno"}, s); err != nil {
		t.Fatalf("unexpected error for a well-formed evolution target: %v", err)
	}
	if err := validateAction(agents.ClassifiedIntent{Intent: agents.IntentSkillEvolution, Target: "fireball"}, s); err == nil {
		t.Fatal("expected an error for an evolution target missing \"->\"")
	}
	if err := validateAction(agents.ClassifiedIntent{Intent: agents.IntentSkillEvolution, Target: "no_such_skill->inferno"}, s); err == nil {
		t.Fatal("expected an error for an evolution target naming an unknown skill")
	}
}

func TestFindNPC_CaseInsensitiveByIDOrName(t *testing.T) {
	s := aliveCharacterState()

	if findNPC(s, "MIRA") == nil {
		t.Fatal("expected findNPC to match case-insensitively")
	}
	if findNPC(s, "nobody") != nil {
		t.Fatal("expected findNPC to miss an unknown name")
	}
}
