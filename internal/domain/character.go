package domain

// Stats are the seven base attributes every character sheet carries. Stats
// arithmetic ([Stats.Add]) does not clamp: a negative delta can drive a
// field below zero.
type Stats struct {
	STR int `json:"str"`
	DEX int `json:"dex"`
	CON int `json:"con"`
	INT int `json:"int"`
	WIS int `json:"wis"`
	CHA int `json:"cha"`
	DEF int `json:"def"`
}

// Add returns the element-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		STR: s.STR + o.STR,
		DEX: s.DEX + o.DEX,
		CON: s.CON + o.CON,
		INT: s.INT + o.INT,
		WIS: s.WIS + o.WIS,
		CHA: s.CHA + o.CHA,
		DEF: s.DEF + o.DEF,
	}
}

// Resource models a clamped current/maximum pair such as HP, mana, or energy.
type Resource struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// clamp returns r with Current restricted to [0, Max].
func (r Resource) clamp() Resource {
	if r.Current < 0 {
		r.Current = 0
	}
	if r.Current > r.Max {
		r.Current = r.Max
	}
	return r
}

// Class identifies a character's chosen class/archetype. Concrete class
// catalogues are static template data outside this package's scope.
type Class string

// EquipmentSlot identifies one of the three equip slots a character carries.
type EquipmentSlot string

const (
	SlotWeapon    EquipmentSlot = "weapon"
	SlotArmor     EquipmentSlot = "armor"
	SlotAccessory EquipmentSlot = "accessory"
)

// Item is an inventory/equipment entry. Equipment bonuses apply only while
// the item occupies an equip slot; inventory copies of the same item id do
// not contribute bonuses.
type Item struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	StatBonus  Stats  `json:"statBonus"`
	Value      int    `json:"value"`
	Stackable  bool   `json:"stackable"`
	Equippable bool   `json:"equippable"`
	Slot       EquipmentSlot `json:"slot,omitempty"`
}

// StatusEffect is a temporary modifier applied to a character's effective
// stats or resources. RemainingDuration counts down by one turn per combat
// tick; an effect with RemainingDuration == 0 must be pruned by the caller.
type StatusEffect struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	StatDelta         Stats  `json:"statDelta"`
	RemainingDuration int    `json:"remainingDuration"`
	// DamagePerTurn / HealPerTurn implement DoT/HoT effects; at most one
	// should be non-zero for any given status effect.
	DamagePerTurn int `json:"damagePerTurn"`
	HealPerTurn   int `json:"healPerTurn"`
}

// Equipment holds the three equip slots. A nil pointer means the slot is empty.
type Equipment struct {
	Weapon    *Item `json:"weapon,omitempty"`
	Armor     *Item `json:"armor,omitempty"`
	Accessory *Item `json:"accessory,omitempty"`
}

// Bonus sums the stat bonuses of every equipped item.
func (e Equipment) Bonus() Stats {
	var total Stats
	for _, it := range []*Item{e.Weapon, e.Armor, e.Accessory} {
		if it != nil {
			total = total.Add(it.StatBonus)
		}
	}
	return total
}

// CharacterSheet is the full persistent progression state of a player
// character. It is treated as an immutable value: every transition in this
// package returns a new CharacterSheet rather than mutating the receiver.
type CharacterSheet struct {
	Level           int             `json:"level"`
	XP              int             `json:"xp"`
	Base            Stats           `json:"base"`
	HP              Resource        `json:"hp"`
	Mana            Resource        `json:"mana"`
	Energy          Resource        `json:"energy"`
	Skills          []Skill         `json:"skills"`
	Equipment       Equipment       `json:"equipment"`
	Inventory       map[string]Item `json:"inventory"`
	MaxSlots        int             `json:"maxSlots"`
	StatusEffects   []StatusEffect  `json:"statusEffects"`
	Grade           Grade           `json:"grade"`
	Class           Class           `json:"class"`
	EvolutionHistory []string       `json:"evolutionHistory"`
	UnspentStatPoints int           `json:"unspentStatPoints"`
	Insight         ActionInsightTracker `json:"insight"`
	FusionRecipesKnown []string     `json:"fusionRecipesKnown"`
}

// IsDead reports whether the sheet is in the dead state (current HP is zero).
func (c CharacterSheet) IsDead() bool {
	return c.HP.Current == 0
}

// EffectiveStats returns base stats plus equipment bonuses plus the sum of
// all active status-effect modifiers. Pure; does not consult XP or level.
func EffectiveStats(c CharacterSheet) Stats {
	total := c.Base.Add(c.Equipment.Bonus())
	for _, se := range c.StatusEffects {
		total = total.Add(se.StatDelta)
	}
	return total
}

// XPToNextLevel returns the XP cost of advancing from level to level+1.
func XPToNextLevel(level int) int {
	return (level + 1) * 100
}

// CumulativeXP returns the total XP required to reach level n from level 1
// (i.e., the sum of per-level costs for levels 1..n-1).
func CumulativeXP(n int) int {
	total := 0
	for k := 1; k < n; k++ {
		total += k * 100
	}
	return total
}

// perLevelGrowth are the fixed stat deltas applied for every level gained.
var perLevelGrowth = Stats{STR: 2, DEX: 1, CON: 2, INT: 1, WIS: 1, CHA: 1}

const (
	hpPerLevel     = 10
	manaPerLevel   = 5
	energyPerLevel = 10
)

// GainXP accumulates amount into the sheet's XP total, then applies as many
// level-ups as the new total supports. On each level gained, base stats grow
// by the fixed per-level deltas, resource maxima increase and resources are
// restored to full, and the grade is recomputed. Grade transitions award
// grade-dependent unspent stat points.
//
// Invariants: result.Level >= c.Level and result.XP == c.XP + amount for all
// amount >= 0.
func GainXP(c CharacterSheet, amount int) CharacterSheet {
	if amount < 0 {
		amount = 0
	}
	next := c
	next.XP = c.XP + amount
	for next.XP >= CumulativeXP(next.Level+1) {
		prevGrade := next.Grade
		next.Level++
		next.Base = next.Base.Add(perLevelGrowth)
		next.HP.Max += hpPerLevel
		next.Mana.Max += manaPerLevel
		next.Energy.Max += energyPerLevel
		next.HP.Current = next.HP.Max
		next.Mana.Current = next.Mana.Max
		next.Energy.Current = next.Energy.Max
		next.Grade = GradeFromLevel(next.Level)
		if prevGrade.Advanced(next.Grade) || (prevGrade == "" && next.Grade != GradeE) {
			next.UnspentStatPoints += StatPointsForGrade(next.Grade)
		}
	}
	if next.Grade == "" {
		next.Grade = GradeFromLevel(next.Level)
	}
	return next
}

// TakeDamage reduces current HP by amount, clamped to [0, max].
func TakeDamage(c CharacterSheet, amount int) CharacterSheet {
	next := c
	if amount < 0 {
		amount = 0
	}
	next.HP.Current -= amount
	next.HP = next.HP.clamp()
	return next
}

// Heal increases current HP by amount, clamped to [0, max]. Per the healing
// cost open question, healing may legally bring HP to
// exactly its maximum or leave it anywhere in range; Heal never errors.
func Heal(c CharacterSheet, amount int) CharacterSheet {
	next := c
	if amount < 0 {
		amount = 0
	}
	next.HP.Current += amount
	next.HP = next.HP.clamp()
	return next
}

// SpendMana reduces current mana by amount, clamped to [0, max]. Returns the
// updated sheet and whether the full amount was affordable (false when mana
// was clamped to 0 before the full cost was paid).
func SpendMana(c CharacterSheet, amount int) (CharacterSheet, bool) {
	next := c
	affordable := c.Mana.Current >= amount
	next.Mana.Current -= amount
	next.Mana = next.Mana.clamp()
	return next, affordable
}

// SpendEnergy reduces current energy by amount, clamped to [0, max]. Returns
// the updated sheet and whether the full amount was affordable.
func SpendEnergy(c CharacterSheet, amount int) (CharacterSheet, bool) {
	next := c
	affordable := c.Energy.Current >= amount
	next.Energy.Current -= amount
	next.Energy = next.Energy.clamp()
	return next, affordable
}

// TickStatusEffects decrements every status effect's remaining duration by
// one and applies any DoT/HoT before pruning expired effects.
func TickStatusEffects(c CharacterSheet) CharacterSheet {
	next := c
	kept := make([]StatusEffect, 0, len(c.StatusEffects))
	for _, se := range c.StatusEffects {
		if se.DamagePerTurn > 0 {
			next = TakeDamage(next, se.DamagePerTurn)
		}
		if se.HealPerTurn > 0 {
			next = Heal(next, se.HealPerTurn)
		}
		se.RemainingDuration--
		if se.RemainingDuration > 0 {
			kept = append(kept, se)
		}
	}
	next.StatusEffects = kept
	return next
}
