package domain

import "testing"

func baseSheet() CharacterSheet {
	return CharacterSheet{
		Level: 1,
		XP:    0,
		Base:  Stats{STR: 10, DEX: 10, CON: 10, INT: 10, WIS: 10, CHA: 10},
		HP:    Resource{Current: 50, Max: 50},
		Mana:  Resource{Current: 20, Max: 20},
		Energy: Resource{Current: 30, Max: 30},
		Grade: GradeE,
	}
}

func TestGainXP_MonotonicLevelAndXP(t *testing.T) {
	c := baseSheet()
	for _, amount := range []int{0, 1, 50, 100, 99999} {
		next := GainXP(c, amount)
		if next.Level < c.Level {
			t.Errorf("GainXP(%d) level = %d, want >= %d", amount, next.Level, c.Level)
		}
		if next.XP != c.XP+amount {
			t.Errorf("GainXP(%d) xp = %d, want %d", amount, next.XP, c.XP+amount)
		}
	}
}

func TestGainXP_LevelsUpAtThreshold(t *testing.T) {
	c := baseSheet()
	next := GainXP(c, XPToNextLevel(1)) // exactly the level-1->2 cost
	if next.Level != 2 {
		t.Fatalf("Level = %d, want 2", next.Level)
	}
	if next.HP.Current != next.HP.Max {
		t.Errorf("HP not restored to max on level-up: %+v", next.HP)
	}
}

func TestGainXP_AwardsStatPointsOnGradeTransition(t *testing.T) {
	c := baseSheet()
	next := GainXP(c, CumulativeXP(26)) // crosses into D_GRADE at level 26
	if next.Grade != GradeD {
		t.Fatalf("Grade = %v, want %v", next.Grade, GradeD)
	}
	if next.UnspentStatPoints != StatPointsForGrade(GradeD) {
		t.Errorf("UnspentStatPoints = %d, want %d", next.UnspentStatPoints, StatPointsForGrade(GradeD))
	}
}

func TestTakeDamage_ClampsAtZero(t *testing.T) {
	c := baseSheet()
	next := TakeDamage(c, 10000)
	if next.HP.Current != 0 {
		t.Errorf("HP.Current = %d, want 0", next.HP.Current)
	}
	if !next.IsDead() {
		t.Error("sheet should be dead at HP 0")
	}
}

func TestHeal_ClampsAtMax(t *testing.T) {
	c := baseSheet()
	c = TakeDamage(c, 40)
	next := Heal(c, 10000)
	if next.HP.Current != next.HP.Max {
		t.Errorf("HP.Current = %d, want %d", next.HP.Current, next.HP.Max)
	}
}

func TestSpendMana_ReportsAffordability(t *testing.T) {
	c := baseSheet()
	_, affordable := SpendMana(c, 5)
	if !affordable {
		t.Error("expected affordable spend within mana pool")
	}
	_, affordable = SpendMana(c, 5000)
	if affordable {
		t.Error("expected unaffordable spend to report false")
	}
}

func TestEffectiveStats_SumsEquipmentAndStatus(t *testing.T) {
	c := baseSheet()
	c.Equipment.Weapon = &Item{ID: "sword", StatBonus: Stats{STR: 5}}
	c.StatusEffects = []StatusEffect{{ID: "buff", StatDelta: Stats{STR: 3}, RemainingDuration: 2}}
	got := EffectiveStats(c)
	want := 10 + 5 + 3
	if got.STR != want {
		t.Errorf("EffectiveStats.STR = %d, want %d", got.STR, want)
	}
}

func TestTickStatusEffects_PrunesExpired(t *testing.T) {
	c := baseSheet()
	c.StatusEffects = []StatusEffect{
		{ID: "short", RemainingDuration: 1},
		{ID: "long", RemainingDuration: 2},
	}
	next := TickStatusEffects(c)
	if len(next.StatusEffects) != 1 {
		t.Fatalf("len(StatusEffects) = %d, want 1", len(next.StatusEffects))
	}
	if next.StatusEffects[0].ID != "long" {
		t.Errorf("remaining effect = %s, want long", next.StatusEffects[0].ID)
	}
}

func TestTickStatusEffects_AppliesDoTAndHoT(t *testing.T) {
	c := baseSheet()
	c.StatusEffects = []StatusEffect{
		{ID: "poison", DamagePerTurn: 5, RemainingDuration: 3},
		{ID: "regen", HealPerTurn: 3, RemainingDuration: 3},
	}
	c = TakeDamage(c, 10) // leave room for the regen tick to matter
	next := TickStatusEffects(c)
	wantHP := c.HP.Current - 5 + 3
	if next.HP.Current != wantHP {
		t.Errorf("HP.Current = %d, want %d", next.HP.Current, wantHP)
	}
}
