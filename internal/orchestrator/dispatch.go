package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/narrativeforge/engine/internal/agents"
	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/internal/mcp/tools"
	combattool "github.com/narrativeforge/engine/internal/mcp/tools/combat"
	"github.com/narrativeforge/engine/internal/skills"
)

// dispatchOutcome is the result of routing one classified intent to its
// handler: the (possibly mutated) state, any events to commit alongside the
// narration, and any tool results to hand the narrator as pre-fetched
// context.
type dispatchOutcome struct {
	state       domain.GameState
	events      []domain.GameEvent
	toolResults []string
	// dialogueNPCID, when non-empty, names the NPC whose conversation
	// history should receive the narrator's reply once narration completes.
	dialogueNPCID string
}

// dispatch routes a classified intent to its handler. s is the turn's
// frozen snapshot; handlers return the next state rather than mutating s.
func (o *Orchestrator) dispatch(ctx context.Context, gameID string, classified agents.ClassifiedIntent, playerInput string, s domain.GameState) (dispatchOutcome, error) {
	switch classified.Intent {
	case agents.IntentCombat:
		return o.dispatchCombat(ctx, s)
	case agents.IntentNPCDialogue:
		return o.dispatchDialogue(ctx, s, classified.Target)
	case agents.IntentUseSkill:
		return o.dispatchUseSkill(s, classified.Target)
	case agents.IntentExploration:
		return o.dispatchExploration(ctx, s, playerInput)
	case agents.IntentQuestAction:
		return o.dispatchQuestAction(ctx, s, classified.Target)
	case agents.IntentClassSelection:
		return o.dispatchClassSelection(s, classified.Target)
	case agents.IntentSkillEvolution:
		return o.dispatchEvolution(s, classified.Target)
	case agents.IntentSkillFusion:
		return o.dispatchFusion(s, classified.Target)
	default:
		// SYSTEM_QUERY, SKILL_MENU, STATUS_MENU, INVENTORY_MENU: view only.
		return dispatchOutcome{state: s, toolResults: []string{summarizeState(s)}}, nil
	}
}

// rollD rolls expression via the "combat.roll" tool, returning the parsed result.
func (o *Orchestrator) rollD(ctx context.Context, expression string) (combattool.RollResult, error) {
	args, err := json.Marshal(combattool.RollArgs{Expression: expression})
	if err != nil {
		return combattool.RollResult{}, err
	}
	out, err := o.callTool(ctx, "combat.roll", string(args))
	if err != nil {
		return combattool.RollResult{}, err
	}
	var res combattool.RollResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return combattool.RollResult{}, fmt.Errorf("orchestrator: parse combat.roll result: %w", err)
	}
	return res, nil
}

// dispatchCombat resolves one combat exchange. Monster stat blocks are
// static template data outside this engine's scope, so the defending side
// is represented only by a level-scaled challenge roll rather than a full
// character sheet.
func (o *Orchestrator) dispatchCombat(ctx context.Context, s domain.GameState) (dispatchOutcome, error) {
	sheet := s.CharacterSheet
	eff := domain.EffectiveStats(sheet)

	dmgRoll, err := o.rollD(ctx, "1d12+4")
	if err != nil {
		return dispatchOutcome{}, fmt.Errorf("orchestrator: combat damage roll: %w", err)
	}
	critRoll, err := o.rollD(ctx, "1d100")
	if err != nil {
		return dispatchOutcome{}, fmt.Errorf("orchestrator: combat crit roll: %w", err)
	}
	rolled01 := float64(critRoll.Total-1) / 99.0

	outcome := domain.CalculateCombatOutcome(eff, domain.Stats{}, dmgRoll.Total, rolled01)

	counterRoll, err := o.rollD(ctx, fmt.Sprintf("1d%d", 6+sheet.Level/5))
	if err != nil {
		return dispatchOutcome{}, fmt.Errorf("orchestrator: combat counter roll: %w", err)
	}

	next := domain.TakeDamage(sheet, counterRoll.Total)
	xp := 20 + sheet.Level*2
	next = domain.GainXP(next, xp)
	next = domain.TickSkillCooldowns(next)

	events := []domain.GameEvent{
		{
			Type: domain.EventCombatLog, Category: domain.CategoryCombat, Importance: domain.ImportanceHigh,
			SearchText: fmt.Sprintf("dealt %d damage (%s), took %d in return, gained %d xp",
				outcome.MitigatedDamage, critSuffix(outcome.Critical), counterRoll.Total, xp),
		},
	}

	if lootOut, lootErr := o.callTool(ctx, "loot.roll_table", `{"table_name":"random_encounter"}`); lootErr == nil {
		var lootMuts []tools.StateMutation
		if err := json.Unmarshal([]byte(lootOut), &lootMuts); err == nil {
			_, lootEvents := o.applyStateMutations(s, lootMuts)
			events = append(events, lootEvents...)
		}
	}

	state := s
	state.CharacterSheet = next
	if next.IsDead() {
		state = domain.RecordDeath(state)
		events = append(events, domain.GameEvent{
			Type: domain.EventSystemNotification, Category: domain.CategoryCombat, Importance: domain.ImportanceHigh,
			SearchText: "defeated in combat and revived with 1 HP",
		})
	}

	return dispatchOutcome{state: state, events: events}, nil
}

func critSuffix(crit bool) string {
	if crit {
		return "a critical hit"
	}
	return "a solid hit"
}

// dispatchDialogue appends the player's line to the target NPC's history and
// nudges affinity by a small bounded delta, generating a new NPC on the spot
// if the location has none yet and none matched by name.
func (o *Orchestrator) dispatchDialogue(ctx context.Context, s domain.GameState, target string) (dispatchOutcome, error) {
	npc := findNPC(s, target)
	if npc == nil && len(s.NPCsByLocation[s.CurrentLocation.ID]) > 0 {
		first := s.NPCsByLocation[s.CurrentLocation.ID][0]
		npc = &first
	}
	state := s
	if npc == nil {
		if o.npcGen == nil {
			return dispatchOutcome{state: s}, nil
		}
		generated, err := o.npcGen.Generate(ctx, s.CurrentLocation.ID, target)
		if err != nil {
			return dispatchOutcome{state: s}, nil
		}
		state = placeNPC(state, generated)
		npc = &generated
	}

	// A real sentiment classifier is out of scope; a flat, gentle positive
	// nudge rewards engaging with NPCs at all.
	const engagementAffinityDelta = 2

	updated := domain.AppendConversation(*npc, domain.ConversationTurn{GameID: s.GameID, Speaker: "player"})
	updated = domain.UpdateRelationship(updated, s.GameID, engagementAffinityDelta)
	state = placeNPC(state, updated)

	return dispatchOutcome{
		state:         state,
		toolResults:   []string{fmt.Sprintf("Speaking with %s (%s). %s", updated.Name, updated.Archetype, updated.GreetingContext)},
		dialogueNPCID: updated.ID,
	}, nil
}

// placeNPC replaces npc in s.NPCsByLocation, preserving position.
func placeNPC(s domain.GameState, npc domain.NPC) domain.GameState {
	next := s
	byLoc := make(map[string][]domain.NPC, len(s.NPCsByLocation))
	for loc, npcs := range s.NPCsByLocation {
		cp := make([]domain.NPC, len(npcs))
		copy(cp, npcs)
		byLoc[loc] = cp
	}
	list := byLoc[npc.LocationID]
	found := false
	for i, n := range list {
		if n.ID == npc.ID {
			list[i] = npc
			found = true
			break
		}
	}
	if !found {
		list = append(list, npc)
	}
	byLoc[npc.LocationID] = list
	next.NPCsByLocation = byLoc
	return next
}

// dispatchUseSkill executes the named skill with the caster's own sheet as
// the target. Only self-targeting skills carry the target-side result
// (resources, status effects) back onto the caster; for other skills the
// target-side result is discarded.
func (o *Orchestrator) dispatchUseSkill(s domain.GameState, target string) (dispatchOutcome, error) {
	skill := findSkill(s.CharacterSheet, target)
	if skill == nil {
		return dispatchOutcome{state: s}, nil
	}

	result, err := skills.ExecuteSkill(*skill, s.CharacterSheet, s.CharacterSheet, 0, 0)
	if err != nil {
		return dispatchOutcome{
			state:  s,
			events: []domain.GameEvent{{Type: domain.EventSystemNotification, Category: domain.CategorySystem, SearchText: err.Error()}},
		}, nil
	}

	next := result.Caster
	next = domain.GainXP(next, result.XPAwarded)
	if skill.TargetType == "self" {
		next.HP, next.Mana, next.Energy = result.Target.HP, result.Target.Mana, result.Target.Energy
		next.StatusEffects = result.Target.StatusEffects
	}

	state := s
	state.CharacterSheet = next

	return dispatchOutcome{
		state: state,
		events: []domain.GameEvent{{
			Type: domain.EventStatChange, Category: domain.CategoryCombat, Importance: domain.ImportanceNormal,
			SearchText: fmt.Sprintf("used %s, gained %d skill xp", skill.Name, result.XPAwarded),
		}},
	}, nil
}

// dispatchExploration generates a new location from a discovery cue and
// connects it to the current one. A bare look-around with no cue is a
// no-op view.
func (o *Orchestrator) dispatchExploration(ctx context.Context, s domain.GameState, playerInput string) (dispatchOutcome, error) {
	if o.locGen == nil || !looksLikeDiscovery(playerInput) {
		return dispatchOutcome{state: s}, nil
	}

	loc, err := o.locGen.Generate(ctx, s.CurrentLocation.ID, playerInput)
	if err != nil {
		return dispatchOutcome{state: s}, nil
	}

	state := domain.AddCustomLocation(s, loc)
	state = domain.DiscoverLocation(state, loc.ID)

	return dispatchOutcome{
		state: state,
		events: []domain.GameEvent{{
			Type: domain.EventSystemNotification, Category: domain.CategoryExploration, Importance: domain.ImportanceNormal,
			SearchText: fmt.Sprintf("discovered %s", loc.Name), LocationID: loc.ID,
		}},
	}, nil
}

var discoveryVerbs = []string{"explore", "search", "venture", "look around", "investigate", "wander"}

func looksLikeDiscovery(input string) bool {
	lower := strings.ToLower(input)
	for _, v := range discoveryVerbs {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

// dispatchQuestAction advances an already-active quest's first incomplete
// objective, or generates a new quest from an NPC in the current location
// when target names none of the player's active quests.
func (o *Orchestrator) dispatchQuestAction(ctx context.Context, s domain.GameState, target string) (dispatchOutcome, error) {
	for id, q := range s.ActiveQuests {
		if !strings.EqualFold(id, target) && !strings.EqualFold(q.Name, target) {
			continue
		}
		for _, obj := range q.Objectives {
			if !obj.Complete() {
				advanced := domain.AdvanceObjective(q, obj.ID, 1)
				state := s
				active := make(map[string]domain.Quest, len(s.ActiveQuests))
				for k, v := range s.ActiveQuests {
					active[k] = v
				}
				active[q.ID] = advanced
				state.ActiveQuests = active
				if advanced.Status == domain.QuestCompleted {
					state = domain.CompleteQuest(state, q.ID)
					state.CharacterSheet = domain.GainXP(state.CharacterSheet, advanced.Reward.XP)
				}
				return dispatchOutcome{
					state: state,
					events: []domain.GameEvent{{
						Type: domain.EventQuestUpdate, Category: domain.CategorySystem, Importance: domain.ImportanceNormal,
						SearchText: fmt.Sprintf("progressed %s", q.Name), QuestID: q.ID,
					}},
				}, nil
			}
		}
	}

	if o.questGen == nil {
		return dispatchOutcome{state: s}, nil
	}
	npcs := s.NPCsByLocation[s.CurrentLocation.ID]
	if len(npcs) == 0 {
		return dispatchOutcome{state: s}, nil
	}
	giver := npcs[0]
	q, err := o.questGen.Generate(ctx, giver.ID, target)
	if err != nil {
		return dispatchOutcome{state: s}, nil
	}
	state := domain.AddActiveQuest(s, q)
	return dispatchOutcome{
		state: state,
		events: []domain.GameEvent{{
			Type: domain.EventQuestUpdate, Category: domain.CategorySystem, Importance: domain.ImportanceNormal,
			SearchText: fmt.Sprintf("received quest %s from %s", q.Name, giver.Name), QuestID: q.ID,
		}},
	}, nil
}

// dispatchClassSelection applies a class and grants its starter skills, at
// most once per character.
func (o *Orchestrator) dispatchClassSelection(s domain.GameState, target string) (dispatchOutcome, error) {
	if target == "" || s.CharacterSheet.Class != "" {
		return dispatchOutcome{state: s}, nil
	}
	class := domain.Class(strings.ToLower(target))
	next := s.CharacterSheet
	next.Class = class
	owned := skills.OwnedSkillIDs(next)
	for _, starter := range o.catalog.Starters(class) {
		if _, has := owned[starter.ID]; has {
			continue
		}
		next = skills.GrantSkill(next, starter)
	}
	state := s
	state.CharacterSheet = next
	return dispatchOutcome{
		state: state,
		events: []domain.GameEvent{{
			Type: domain.EventSystemNotification, Category: domain.CategorySystem, Importance: domain.ImportanceNormal,
			SearchText: fmt.Sprintf("chose the %s class", class),
		}},
	}, nil
}

// dispatchEvolution evolves a skill given a "skillId->resultSkillId" target.
func (o *Orchestrator) dispatchEvolution(s domain.GameState, target string) (dispatchOutcome, error) {
	skillID, resultID, ok := strings.Cut(target, "->")
	if !ok {
		return dispatchOutcome{state: s}, nil
	}
	next, err := skills.EvolveSkill(s.CharacterSheet, strings.TrimSpace(skillID), strings.TrimSpace(resultID), s.CharacterSheet.Level, s.CompletedQuests, o.catalog)
	if err != nil {
		return dispatchOutcome{
			state:  s,
			events: []domain.GameEvent{{Type: domain.EventSystemNotification, Category: domain.CategorySystem, SearchText: err.Error()}},
		}, nil
	}
	state := s
	state.CharacterSheet = next
	return dispatchOutcome{
		state: state,
		events: []domain.GameEvent{{
			Type: domain.EventSkillEvolved, Category: domain.CategorySystem, Importance: domain.ImportanceHigh,
			SearchText: fmt.Sprintf("evolved %s into %s", skillID, resultID),
		}},
	}, nil
}

// dispatchFusion fuses a comma-separated list of owned skill ids.
func (o *Orchestrator) dispatchFusion(s domain.GameState, target string) (dispatchOutcome, error) {
	ids := strings.Split(target, ",")
	for i := range ids {
		ids[i] = strings.TrimSpace(ids[i])
	}
	next, _, recipeID, err := skills.FuseSkills(s.CharacterSheet, ids, o.catalog)
	if err != nil {
		return dispatchOutcome{
			state:  s,
			events: []domain.GameEvent{{Type: domain.EventSystemNotification, Category: domain.CategorySystem, SearchText: err.Error()}},
		}, nil
	}
	state := s
	state.CharacterSheet = next
	return dispatchOutcome{
		state: state,
		events: []domain.GameEvent{{
			Type: domain.EventSkillFused, Category: domain.CategorySystem, Importance: domain.ImportanceHigh,
			SearchText: fmt.Sprintf("fused %s via recipe %s", strings.Join(ids, "+"), recipeID),
		}},
	}, nil
}

// summarizeState renders a compact, narrator/tool-facing summary of s.
func summarizeState(s domain.GameState) string {
	sheet := s.CharacterSheet
	return fmt.Sprintf(
		"Level %d %s (%s), HP %d/%d, Mana %d/%d, Energy %d/%d, at %s",
		sheet.Level, sheet.Class, sheet.Grade,
		sheet.HP.Current, sheet.HP.Max, sheet.Mana.Current, sheet.Mana.Max,
		sheet.Energy.Current, sheet.Energy.Max, s.CurrentLocation.Name,
	)
}
