package skills

import (
	"errors"

	"github.com/narrativeforge/engine/internal/domain"
)

// ErrNotEligible is returned when a skill or path fails evolution/fusion
// preconditions.
var ErrNotEligible = errors.New("skills: requirements not met")

// EvolutionCatalog resolves an evolved skill id to its template, analogous
// to SkillCatalog for insight grants.
type EvolutionCatalog interface {
	SkillTemplate(skillID string) (domain.Skill, bool)
}

// meetsRequirements checks a path's stat/level/quest requirements against a
// character sheet and the set of completed quest ids.
func meetsRequirements(c domain.CharacterSheet, playerLevel int, completedQuests map[string]struct{}, path domain.SkillEvolutionPath) bool {
	if playerLevel < path.MinPlayerLevel {
		return false
	}
	stats := domain.EffectiveStats(c)
	if stats.STR < path.MinStats.STR || stats.DEX < path.MinStats.DEX || stats.CON < path.MinStats.CON ||
		stats.INT < path.MinStats.INT || stats.WIS < path.MinStats.WIS || stats.CHA < path.MinStats.CHA {
		return false
	}
	for _, q := range path.RequiredQuestIDs {
		if _, done := completedQuests[q]; !done {
			return false
		}
	}
	return true
}

// EvolveSkill evolves skillID into the result of pathID if, and only if,
// the skill is at max level and the named path's requirements are met. The
// evolved skill replaces the original on the sheet, retaining an evolution
// acquisition source that chains back through the original skill id.
func EvolveSkill(c domain.CharacterSheet, skillID, resultSkillID string, playerLevel int, completedQuests map[string]struct{}, catalog EvolutionCatalog) (domain.CharacterSheet, error) {
	var (
		target domain.Skill
		idx    = -1
	)
	for i, s := range c.Skills {
		if s.ID == skillID {
			target = s
			idx = i
			break
		}
	}
	if idx < 0 {
		return c, ErrNotEligible
	}
	if !domain.AtMaxLevel(target) {
		return c, ErrNotEligible
	}

	var chosen *domain.SkillEvolutionPath
	for i := range target.EvolutionPaths {
		p := target.EvolutionPaths[i]
		if p.ResultSkillID != resultSkillID {
			continue
		}
		if !meetsRequirements(c, playerLevel, completedQuests, p) {
			return c, ErrNotEligible
		}
		chosen = &target.EvolutionPaths[i]
		break
	}
	if chosen == nil {
		return c, ErrNotEligible
	}

	evolved, ok := catalog.SkillTemplate(chosen.ResultSkillID)
	if !ok {
		return c, ErrNotEligible
	}
	evolved.Source = domain.AcquisitionSource{Kind: "evolution", FromSkillIDs: []string{skillID}}

	next := c
	nextSkills := make([]domain.Skill, len(c.Skills))
	copy(nextSkills, c.Skills)
	nextSkills[idx] = evolved
	next.Skills = nextSkills
	next.EvolutionHistory = append(append([]string{}, c.EvolutionHistory...), skillID+"->"+evolved.ID)
	return next, nil
}
