package orchestrator

import (
	"fmt"
	"strings"

	"github.com/narrativeforge/engine/internal/agents"
	"github.com/narrativeforge/engine/internal/domain"
)

// validateAction checks a classified intent and its target against the
// frozen state snapshot before any dispatch runs. A non-nil error is
// rendered into a SystemNotification event and the turn returns without
// dispatching.
func validateAction(classified agents.ClassifiedIntent, s domain.GameState) error {
	if s.CharacterSheet.IsDead() && classified.Intent == agents.IntentCombat {
		return fmt.Errorf("you cannot act while defeated")
	}

	switch classified.Intent {
	case agents.IntentNPCDialogue:
		if classified.Target != "" && findNPC(s, classified.Target) == nil {
			return fmt.Errorf("there is no one called %q here", classified.Target)
		}
	case agents.IntentUseSkill:
		if classified.Target != "" && findSkill(s.CharacterSheet, classified.Target) == nil {
			return fmt.Errorf("you don't know a skill called %q", classified.Target)
		}
	case agents.IntentSkillEvolution:
		skillID, _, ok := strings.Cut(classified.Target, "->")
		if !ok || findSkill(s.CharacterSheet, strings.TrimSpace(skillID)) == nil {
			return fmt.Errorf("evolution target must name a known skill and a result, e.g. \"fireball->inferno\"")
		}
	}
	return nil
}

// findNPC locates the NPC matching id or name (case-insensitive) among
// every NPC present at s.CurrentLocation.
func findNPC(s domain.GameState, idOrName string) *domain.NPC {
	for _, n := range s.NPCsByLocation[s.CurrentLocation.ID] {
		if strings.EqualFold(n.ID, idOrName) || strings.EqualFold(n.Name, idOrName) {
			n := n
			return &n
		}
	}
	return nil
}

// findSkill locates a skill on sheet matching id or name (case-insensitive).
func findSkill(sheet domain.CharacterSheet, idOrName string) *domain.Skill {
	for _, sk := range sheet.Skills {
		if strings.EqualFold(sk.ID, idOrName) || strings.EqualFold(sk.Name, idOrName) {
			sk := sk
			return &sk
		}
	}
	return nil
}
