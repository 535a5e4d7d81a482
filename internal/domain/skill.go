package domain

// Rarity is the narrative/mechanical tier of a skill. Higher rarities unlock
// through evolution or fusion rather than direct action-insight awards.
type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityUncommon  Rarity = "UNCOMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

// AcquisitionSource records how a skill entered a character's skill list.
type AcquisitionSource struct {
	Kind string `json:"kind"` // one of: insight, evolution, fusion, grant
	// FromSkillIDs names the skill(s) consumed to produce this one, populated
	// for evolution (one source) and fusion (two or more sources).
	FromSkillIDs []string `json:"fromSkillIds,omitempty"`
	// ActionType is populated when Kind == "insight": the action-insight
	// category whose threshold unlocked the skill.
	ActionType string `json:"actionType,omitempty"`
}

// EffectKind enumerates the mechanical shapes a skill effect can take.
type EffectKind string

const (
	EffectDamage EffectKind = "DAMAGE"
	EffectHeal   EffectKind = "HEAL"
	EffectBuff   EffectKind = "BUFF"
	EffectDebuff EffectKind = "DEBUFF"
	EffectDoT    EffectKind = "DOT"
	EffectHoT    EffectKind = "HOT"
	EffectShield EffectKind = "SHIELD"
)

// SkillEffect is the resolved mechanical payload of using a skill. Which of
// Magnitude/Duration is meaningful depends on Kind: instant effects
// (DAMAGE, HEAL, SHIELD) use Magnitude only; sustained effects (BUFF, DEBUFF,
// DOT, HOT) use both.
type SkillEffect struct {
	Kind        EffectKind `json:"kind"`
	Magnitude   int        `json:"magnitude"`
	Duration    int        `json:"duration,omitempty"`
	StatDelta   Stats      `json:"statDelta,omitempty"`
	ScalesWith  string     `json:"scalesWith,omitempty"` // e.g. "INT", "STR"
	ScaleFactor float64    `json:"scaleFactor,omitempty"`
	// DamageType selects the mitigation formula applied to DAMAGE and DOT
	// effects: "physical", "magical", "poison", or "true" (unmitigated).
	// Ignored for non-damaging effect kinds.
	DamageType string `json:"damageType,omitempty"`
}

// SkillEvolutionPath is one option available to evolveSkill once a skill
// reaches MaxLevel. Requirements gate which paths a given character may take.
type SkillEvolutionPath struct {
	ResultSkillID    string   `json:"resultSkillId"`
	MinStats         Stats    `json:"minStats"`
	MinPlayerLevel   int      `json:"minPlayerLevel"`
	RequiredQuestIDs []string `json:"requiredQuestIds"`
}

// Skill is a usable ability on a character sheet.
type Skill struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	Category          string             `json:"category"`
	Rarity            Rarity             `json:"rarity"`
	Active            bool               `json:"active"` // false = passive
	TargetType        string             `json:"targetType"`
	Effects           []SkillEffect      `json:"effects"`
	ManaCost          int                `json:"manaCost"`
	EnergyCost        int                `json:"energyCost"`
	HealthCost        int                `json:"healthCost"`
	CooldownTurns     int                `json:"cooldownTurns"`
	RemainingCooldown int                `json:"remainingCooldown"`
	Level             int                `json:"level"`
	MaxLevel          int                `json:"maxLevel"`
	CurrentXP         int                `json:"currentXp"`
	EvolutionPaths    []SkillEvolutionPath `json:"evolutionPaths"`
	FusionTags        []string           `json:"fusionTags"`
	Source            AcquisitionSource  `json:"source"`
	EvolutionTier     int                `json:"evolutionTier"`
}

// AtMaxLevel reports whether a skill has reached its level cap and is
// therefore eligible for evolution.
func AtMaxLevel(s Skill) bool {
	return s.MaxLevel > 0 && s.Level >= s.MaxLevel
}

// XPForNextSkillLevel is the XP cost of the skill's next level, scaled by
// rarity: higher rarities cost proportionally more per level.
func XPForNextSkillLevel(s Skill) int {
	return int(float64((s.Level+1)*20) * RarityPower(s.Rarity))
}

// GainSkillXP accumulates amount into a skill's xp and applies level-ups
// while affordable, capping at MaxLevel and resetting xp to 0 once reached.
func GainSkillXP(s Skill, amount int) Skill {
	next := s
	next.CurrentXP += amount
	for !AtMaxLevel(next) && next.CurrentXP >= XPForNextSkillLevel(next) {
		next.CurrentXP -= XPForNextSkillLevel(next)
		next.Level++
	}
	if AtMaxLevel(next) {
		next.CurrentXP = 0
	}
	return next
}

// CanUse reports whether a skill is off cooldown.
func CanUse(s Skill) bool {
	return s.RemainingCooldown <= 0
}

// TickCooldown decrements a skill's remaining cooldown by one turn, clamped
// at zero.
func TickCooldown(s Skill) Skill {
	next := s
	if next.RemainingCooldown > 0 {
		next.RemainingCooldown--
	}
	return next
}

// TickSkillCooldowns applies TickCooldown to every skill on the sheet.
func TickSkillCooldowns(c CharacterSheet) CharacterSheet {
	next := c
	skills := make([]Skill, len(c.Skills))
	for i, s := range c.Skills {
		skills[i] = TickCooldown(s)
	}
	next.Skills = skills
	return next
}

// ActionInsightTracker counts how many times a character has performed each
// classified action type. Skill unlocks are derived from these counts by the
// insight package's static threshold table; this package only carries the
// counter state.
type ActionInsightTracker struct {
	Counts map[string]int `json:"counts"`
}

// RecordAction increments the counter for actionType and returns the updated
// tracker. A nil Counts map is initialized on first use.
func RecordAction(t ActionInsightTracker, actionType string) ActionInsightTracker {
	next := ActionInsightTracker{Counts: make(map[string]int, len(t.Counts)+1)}
	for k, v := range t.Counts {
		next.Counts[k] = v
	}
	next.Counts[actionType]++
	return next
}
