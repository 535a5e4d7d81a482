package orchestrator

import "github.com/narrativeforge/engine/internal/domain"

// builtinCatalog is a small in-memory skill template table satisfying
// skills.SkillCatalog, skills.EvolutionCatalog, and skills.FusionCatalog.
// Concrete skill/class template data is otherwise out of this engine's
// scope; this catalog exists only so the orchestrator has something real
// to grant, evolve, and fuse against, in the same spirit as the loot
// package's builtin random tables.
type builtinCatalog struct {
	templates     map[string]domain.Skill
	starterSkills map[domain.Class][]string
}

func newBuiltinCatalog() *builtinCatalog {
	return &builtinCatalog{
		templates: map[string]domain.Skill{
			"power_strike": {
				ID: "power_strike", Name: "Power Strike", Category: "melee",
				Rarity: domain.RarityCommon, Active: true, TargetType: "enemy",
				Effects:       []domain.SkillEffect{{Kind: domain.EffectDamage, Magnitude: 8, ScalesWith: "STR", ScaleFactor: 0.5, DamageType: "physical"}},
				ManaCost:      0, EnergyCost: 10, CooldownTurns: 2, MaxLevel: 10,
			},
			"piercing_shot": {
				ID: "piercing_shot", Name: "Piercing Shot", Category: "ranged",
				Rarity: domain.RarityCommon, Active: true, TargetType: "enemy",
				Effects:       []domain.SkillEffect{{Kind: domain.EffectDamage, Magnitude: 6, ScalesWith: "DEX", ScaleFactor: 0.6, DamageType: "physical"}},
				ManaCost:      0, EnergyCost: 12, CooldownTurns: 2, MaxLevel: 10,
			},
			"arcane_bolt": {
				ID: "arcane_bolt", Name: "Arcane Bolt", Category: "arcane",
				Rarity: domain.RarityCommon, Active: true, TargetType: "enemy",
				Effects:       []domain.SkillEffect{{Kind: domain.EffectDamage, Magnitude: 10, ScalesWith: "INT", ScaleFactor: 0.6, DamageType: "magical"}},
				ManaCost:      8, EnergyCost: 0, CooldownTurns: 1, MaxLevel: 10,
			},
			"iron_guard": {
				ID: "iron_guard", Name: "Iron Guard", Category: "defense",
				Rarity: domain.RarityCommon, Active: true, TargetType: "self",
				Effects:       []domain.SkillEffect{{Kind: domain.EffectBuff, StatDelta: domain.Stats{DEF: 5}, Duration: 3}},
				ManaCost:      0, EnergyCost: 8, CooldownTurns: 4, MaxLevel: 10,
			},
			"shadow_step": {
				ID: "shadow_step", Name: "Shadow Step", Category: "mobility",
				Rarity: domain.RarityCommon, Active: true, TargetType: "self",
				Effects:       []domain.SkillEffect{{Kind: domain.EffectBuff, StatDelta: domain.Stats{DEX: 4}, Duration: 2}},
				ManaCost:      5, EnergyCost: 5, CooldownTurns: 3, MaxLevel: 10,
			},
			"silent_tread": {
				ID: "silent_tread", Name: "Silent Tread", Category: "stealth",
				Rarity: domain.RarityCommon, Active: false, TargetType: "self",
				Effects:       []domain.SkillEffect{{Kind: domain.EffectBuff, StatDelta: domain.Stats{DEX: 2}, Duration: 5}},
				ManaCost:      0, EnergyCost: 0, CooldownTurns: 0, MaxLevel: 5,
			},
			"fireball": {
				ID: "fireball", Name: "Fireball", Category: "arcane",
				Rarity: domain.RarityUncommon, Active: true, TargetType: "enemy",
				Effects:       []domain.SkillEffect{{Kind: domain.EffectDamage, Magnitude: 14, ScalesWith: "INT", ScaleFactor: 0.8, DamageType: "magical"}},
				ManaCost:      12, EnergyCost: 0, CooldownTurns: 3, MaxLevel: 10,
				EvolutionPaths: []domain.SkillEvolutionPath{{ResultSkillID: "inferno", MinPlayerLevel: 20, MinStats: domain.Stats{INT: 25}}},
			},
			"flame_blade": {
				ID: "flame_blade", Name: "Flame Blade", Category: "melee",
				Rarity: domain.RarityRare, Active: true, TargetType: "enemy",
				Effects: []domain.SkillEffect{
					{Kind: domain.EffectDamage, Magnitude: 12, ScalesWith: "STR", ScaleFactor: 0.5, DamageType: "physical"},
					{Kind: domain.EffectDoT, Magnitude: 3, Duration: 3, DamageType: "magical"},
				},
				ManaCost: 10, EnergyCost: 10, CooldownTurns: 4, MaxLevel: 10,
			},
			"inferno": {
				ID: "inferno", Name: "Inferno", Category: "arcane",
				Rarity: domain.RarityEpic, Active: true, TargetType: "enemy",
				Effects:   []domain.SkillEffect{{Kind: domain.EffectDamage, Magnitude: 24, ScalesWith: "INT", ScaleFactor: 1.0, DamageType: "magical"}},
				ManaCost:  20, EnergyCost: 0, CooldownTurns: 5, MaxLevel: 15,
			},
		},
		starterSkills: map[domain.Class][]string{
			"warrior": {"power_strike"},
			"mage":    {"arcane_bolt"},
			"ranger":  {"piercing_shot"},
			"rogue":   {"shadow_step", "silent_tread"},
		},
	}
}

// SkillTemplate implements skills.SkillCatalog, skills.EvolutionCatalog, and
// skills.FusionCatalog.
func (c *builtinCatalog) SkillTemplate(skillID string) (domain.Skill, bool) {
	tmpl, ok := c.templates[skillID]
	return tmpl, ok
}

// Starters returns the starter skill templates granted when a character
// first selects class.
func (c *builtinCatalog) Starters(class domain.Class) []domain.Skill {
	ids := c.starterSkills[class]
	out := make([]domain.Skill, 0, len(ids))
	for _, id := range ids {
		if tmpl, ok := c.templates[id]; ok {
			out = append(out, tmpl)
		}
	}
	return out
}
