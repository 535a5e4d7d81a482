package domain

import "math"

// CombatOutcome is the resolved result of one attacker-vs-defender exchange.
type CombatOutcome struct {
	RawDamage      int  `json:"rawDamage"`
	MitigatedDamage int `json:"mitigatedDamage"`
	Critical       bool `json:"critical"`
	DefenderKilled bool `json:"defenderKilled"`
}

// critMultiplier and critChanceDenominator implement the fixed crit formula:
// crit chance is attacker DEX / critChanceDenominator, capped at 50%.
const (
	critMultiplier        = 1.5
	critChanceDenominator = 200.0
	critChanceCap         = 0.5
	minMitigatedDamage    = 1
)

// CritChance returns the attacker's chance to land a critical hit, in [0, 0.5].
func CritChance(attacker Stats) float64 {
	chance := float64(attacker.DEX) / critChanceDenominator
	if chance > critChanceCap {
		return critChanceCap
	}
	if chance < 0 {
		return 0
	}
	return chance
}

// CalculateCombatOutcome resolves a single attack. rolled01 must be a
// caller-supplied uniform random draw in [0, 1) used for the crit check,
// keeping this function deterministic given its inputs.
func CalculateCombatOutcome(attacker, defender Stats, baseDamage int, rolled01 float64) CombatOutcome {
	crit := rolled01 < CritChance(attacker)
	raw := float64(baseDamage + attacker.STR)
	if crit {
		raw *= critMultiplier
	}
	mitigated := raw - float64(defender.DEF)
	dmg := int(math.Round(mitigated))
	if dmg < minMitigatedDamage {
		dmg = minMitigatedDamage
	}
	return CombatOutcome{
		RawDamage:       int(math.Round(raw)),
		MitigatedDamage: dmg,
		Critical:        crit,
	}
}

// ResolveSkillEffect applies a single skill effect to a target sheet, given
// the caster's effective stats for scaling. Instant effects (DAMAGE, HEAL,
// SHIELD) return the mutated sheet directly; sustained effects (BUFF,
// DEBUFF, DOT, HOT) are appended to the target's status effects.
func ResolveSkillEffect(caster, target CharacterSheet, eff SkillEffect) CharacterSheet {
	magnitude := scaledMagnitude(caster, eff)
	switch eff.Kind {
	case EffectDamage:
		return TakeDamage(target, magnitude)
	case EffectHeal:
		return Heal(target, magnitude)
	case EffectShield:
		next := target
		next.StatusEffects = append(append([]StatusEffect{}, next.StatusEffects...), StatusEffect{
			ID:        "shield",
			Name:      "Shield",
			StatDelta: Stats{DEF: magnitude},
			RemainingDuration: 1,
		})
		return next
	case EffectBuff, EffectDebuff:
		next := target
		next.StatusEffects = append(append([]StatusEffect{}, next.StatusEffects...), StatusEffect{
			ID:                string(eff.Kind),
			StatDelta:         eff.StatDelta,
			RemainingDuration: eff.Duration,
		})
		return next
	case EffectDoT:
		next := target
		next.StatusEffects = append(append([]StatusEffect{}, next.StatusEffects...), StatusEffect{
			ID:                "dot",
			DamagePerTurn:     magnitude,
			RemainingDuration: eff.Duration,
		})
		return next
	case EffectHoT:
		next := target
		next.StatusEffects = append(append([]StatusEffect{}, next.StatusEffects...), StatusEffect{
			ID:                "hot",
			HealPerTurn:       magnitude,
			RemainingDuration: eff.Duration,
		})
		return next
	default:
		return target
	}
}

// scaledMagnitude applies a skill effect's stat scaling, if any, to its base
// magnitude.
func scaledMagnitude(caster CharacterSheet, eff SkillEffect) int {
	if eff.ScalesWith == "" {
		return eff.Magnitude
	}
	stats := EffectiveStats(caster)
	var statVal int
	switch eff.ScalesWith {
	case "STR":
		statVal = stats.STR
	case "DEX":
		statVal = stats.DEX
	case "CON":
		statVal = stats.CON
	case "INT":
		statVal = stats.INT
	case "WIS":
		statVal = stats.WIS
	case "CHA":
		statVal = stats.CHA
	}
	factor := eff.ScaleFactor
	if factor == 0 {
		factor = 1
	}
	return eff.Magnitude + int(math.Round(float64(statVal)*factor))
}
