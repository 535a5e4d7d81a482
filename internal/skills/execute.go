package skills

import (
	"errors"
	"math"

	"github.com/narrativeforge/engine/internal/domain"
)

// Errors returned by ExecuteSkill's precondition checks.
var (
	ErrOnCooldown       = errors.New("skills: skill is on cooldown")
	ErrCannotAfford     = errors.New("skills: insufficient resources to use skill")
)

const (
	levelScalingStep = 0.1

	physicalDefenseFactor = 0.02
	physicalDefenseCap    = 0.75
	magicalWisdomFactor   = 0.015
	magicalWisdomCap      = 0.60
	poisonDefenseFactor   = 0.01
	poisonDefenseCap      = 0.50

	xpPerUseBase = 10
)

// ExecutionResult is the outcome of one ExecuteSkill call.
type ExecutionResult struct {
	Caster    domain.CharacterSheet
	Target    domain.CharacterSheet
	XPAwarded int
}

// ExecuteSkill validates that the skill is off cooldown and affordable, then
// applies every one of its effects to target in order, starts the skill's
// cooldown, spends its resource costs from caster, and awards
// 10 * rarity.xpMultiplier skill XP. targetDefense and targetWisdom are the
// target's effective DEF and WIS, used by the per-effect mitigation formula.
func ExecuteSkill(skill domain.Skill, caster, target domain.CharacterSheet, targetDefense, targetWisdom int) (ExecutionResult, error) {
	if !domain.CanUse(skill) {
		return ExecutionResult{}, ErrOnCooldown
	}
	if caster.Mana.Current < skill.ManaCost || caster.Energy.Current < skill.EnergyCost || caster.HP.Current <= skill.HealthCost {
		return ExecutionResult{}, ErrCannotAfford
	}

	nextCaster := caster
	var affordable bool
	nextCaster, affordable = domain.SpendMana(nextCaster, skill.ManaCost)
	if !affordable {
		return ExecutionResult{}, ErrCannotAfford
	}
	nextCaster, affordable = domain.SpendEnergy(nextCaster, skill.EnergyCost)
	if !affordable {
		return ExecutionResult{}, ErrCannotAfford
	}
	if skill.HealthCost > 0 {
		nextCaster = domain.TakeDamage(nextCaster, skill.HealthCost)
	}

	nextTarget := target
	for _, eff := range skill.Effects {
		resolved := resolveMagnitude(skill, nextCaster, eff, targetDefense, targetWisdom)
		nextTarget = domain.ResolveSkillEffect(nextCaster, nextTarget, resolved)
	}

	skills := make([]domain.Skill, len(nextCaster.Skills))
	copy(skills, nextCaster.Skills)
	for i, s := range skills {
		if s.ID == skill.ID {
			s.RemainingCooldown = s.CooldownTurns
			skills[i] = s
			break
		}
	}
	nextCaster.Skills = skills

	xp := int(math.Round(xpPerUseBase * domain.RarityXPMultiplier(skill.Rarity)))
	return ExecutionResult{Caster: nextCaster, Target: nextTarget, XPAwarded: xp}, nil
}

// resolveMagnitude computes the final, mitigated magnitude for one skill
// effect and returns an effect carrying that precomputed magnitude (with
// ScalesWith cleared, since scaling has already been applied here) so
// domain.ResolveSkillEffect applies it verbatim.
func resolveMagnitude(skill domain.Skill, caster domain.CharacterSheet, eff domain.SkillEffect, targetDefense, targetWisdom int) domain.SkillEffect {
	resolved := eff
	resolved.ScalesWith = ""

	base := baseMagnitude(caster, skill, eff)
	mitigation := mitigationFraction(eff.DamageType, targetDefense, targetWisdom)

	switch eff.Kind {
	case domain.EffectDamage, domain.EffectDoT:
		resolved.Magnitude = int(math.Round(base * (1 - mitigation)))
		if resolved.Magnitude < 1 {
			resolved.Magnitude = 1
		}
	default:
		resolved.Magnitude = int(math.Round(base))
	}
	return resolved
}

// baseMagnitude computes the skill-damage formula:
// (base * rarity.power + scalingStat * ratio) * (1 + 0.1 * skillLevel).
func baseMagnitude(caster domain.CharacterSheet, skill domain.Skill, eff domain.SkillEffect) float64 {
	scalingStat := 0.0
	if eff.ScalesWith != "" {
		stats := domain.EffectiveStats(caster)
		switch eff.ScalesWith {
		case "STR":
			scalingStat = float64(stats.STR)
		case "DEX":
			scalingStat = float64(stats.DEX)
		case "CON":
			scalingStat = float64(stats.CON)
		case "INT":
			scalingStat = float64(stats.INT)
		case "WIS":
			scalingStat = float64(stats.WIS)
		case "CHA":
			scalingStat = float64(stats.CHA)
		}
	}
	ratio := eff.ScaleFactor
	raw := float64(eff.Magnitude)*domain.RarityPower(skill.Rarity) + scalingStat*ratio
	return raw * (1 + levelScalingStep*float64(skill.Level))
}

// mitigationFraction returns the fraction of raw damage absorbed by the
// target, per the fixed per-damage-type formulas. "true" damage and any
// unrecognised damage type are unmitigated.
func mitigationFraction(damageType string, targetDefense, targetWisdom int) float64 {
	switch damageType {
	case "physical":
		return math.Min(physicalDefenseCap, float64(targetDefense)*physicalDefenseFactor)
	case "magical":
		return math.Min(magicalWisdomCap, float64(targetWisdom)*magicalWisdomFactor)
	case "poison":
		return math.Min(poisonDefenseCap, float64(targetDefense)*poisonDefenseFactor)
	default:
		return 0
	}
}
