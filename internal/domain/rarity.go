package domain

// RarityStats is the fixed mechanical weight a rarity tier contributes to
// damage/heal scaling and XP-per-use awards.
type RarityStats struct {
	Power        float64
	XPMultiplier float64
}

// rarityTable is static tuning data, not behaviour; the five fixed tiers
// never change shape, only these weights.
var rarityTable = map[Rarity]RarityStats{
	RarityCommon:    {Power: 1.0, XPMultiplier: 1.0},
	RarityUncommon:  {Power: 1.3, XPMultiplier: 1.5},
	RarityRare:      {Power: 1.7, XPMultiplier: 2.0},
	RarityEpic:      {Power: 2.2, XPMultiplier: 3.0},
	RarityLegendary: {Power: 3.0, XPMultiplier: 5.0},
}

// RarityPower returns the damage/heal scaling weight for r, defaulting to
// COMMON's weight for an unrecognised rarity.
func RarityPower(r Rarity) float64 {
	if s, ok := rarityTable[r]; ok {
		return s.Power
	}
	return rarityTable[RarityCommon].Power
}

// RarityXPMultiplier returns the per-use XP multiplier for r.
func RarityXPMultiplier(r Rarity) float64 {
	if s, ok := rarityTable[r]; ok {
		return s.XPMultiplier
	}
	return rarityTable[RarityCommon].XPMultiplier
}
