package skills

import (
	"testing"

	"github.com/narrativeforge/engine/internal/domain"
)

func TestEvolveSkill_RequiresMaxLevel(t *testing.T) {
	catalog := stubCatalog{templates: map[string]domain.Skill{}}
	c := domain.CharacterSheet{Skills: []domain.Skill{
		{ID: "slash", Level: 3, MaxLevel: 10},
	}}
	_, err := EvolveSkill(c, "slash", "whirlwind", 10, nil, catalog)
	if err != ErrNotEligible {
		t.Fatalf("err = %v, want ErrNotEligible for below-max-level skill", err)
	}
}

func TestEvolveSkill_ChecksPathRequirements(t *testing.T) {
	catalog := stubCatalog{templates: map[string]domain.Skill{
		"whirlwind": {ID: "whirlwind"},
	}}
	c := domain.CharacterSheet{
		Base: domain.Stats{STR: 5},
		Skills: []domain.Skill{
			{
				ID: "slash", Level: 10, MaxLevel: 10,
				EvolutionPaths: []domain.SkillEvolutionPath{
					{ResultSkillID: "whirlwind", MinStats: domain.Stats{STR: 20}, MinPlayerLevel: 1},
				},
			},
		},
	}
	_, err := EvolveSkill(c, "slash", "whirlwind", 50, nil, catalog)
	if err != ErrNotEligible {
		t.Fatalf("err = %v, want ErrNotEligible when stat requirement unmet", err)
	}
}

func TestEvolveSkill_SucceedsAndReplacesSkill(t *testing.T) {
	catalog := stubCatalog{templates: map[string]domain.Skill{
		"whirlwind": {ID: "whirlwind", Name: "Whirlwind"},
	}}
	c := domain.CharacterSheet{
		Base: domain.Stats{STR: 30},
		Skills: []domain.Skill{
			{
				ID: "slash", Level: 10, MaxLevel: 10,
				EvolutionPaths: []domain.SkillEvolutionPath{
					{ResultSkillID: "whirlwind", MinStats: domain.Stats{STR: 20}, MinPlayerLevel: 1},
				},
			},
		},
	}
	next, err := EvolveSkill(c, "slash", "whirlwind", 50, nil, catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(next.Skills) != 1 || next.Skills[0].ID != "whirlwind" {
		t.Fatalf("Skills = %+v, want only whirlwind", next.Skills)
	}
	if next.Skills[0].Source.Kind != "evolution" {
		t.Errorf("Source.Kind = %s, want evolution", next.Skills[0].Source.Kind)
	}
}
