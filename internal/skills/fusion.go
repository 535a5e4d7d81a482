package skills

import "github.com/narrativeforge/engine/internal/domain"

// FusionRecipe is a static recipe keyed by an exact set of input skill ids.
// Each input carries its own minimum level requirement.
type FusionRecipe struct {
	RecipeID      string
	InputSkillIDs []string
	MinLevels     map[string]int
	ResultSkillID string
}

// FusionRecipes is the static recipe table. Order is insignificant: recipes
// are matched by exact input-set equality, so no two recipes may share an
// input set.
var FusionRecipes = []FusionRecipe{
	{
		RecipeID:      "fusion_flame_blade",
		InputSkillIDs: []string{"fireball", "power_strike"},
		MinLevels:     map[string]int{"fireball": 5, "power_strike": 5},
		ResultSkillID: "flame_blade",
	},
}

// FusionCatalog resolves a fusion result skill id to its template.
type FusionCatalog interface {
	SkillTemplate(skillID string) (domain.Skill, bool)
}

// sameSet reports whether a and b contain the same elements, ignoring order.
// A slice with a repeated element never matches.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, x := range b {
		if _, ok := set[x]; !ok {
			return false
		}
		delete(set, x)
	}
	return len(set) == 0
}

// findRecipe returns the recipe whose input set exactly matches inputSkillIDs.
func findRecipe(inputSkillIDs []string) (FusionRecipe, bool) {
	for _, r := range FusionRecipes {
		if sameSet(r.InputSkillIDs, inputSkillIDs) {
			return r, true
		}
	}
	return FusionRecipe{}, false
}

// FuseSkills attempts to fuse exactly inputSkillIDs (an exact match against
// a static recipe's input set) into that recipe's result. On success the
// inputs are removed from the sheet, the result is added with a Fusion
// acquisition source, and wasNewDiscovery reports whether this is the
// sheet's first time completing this particular recipe.
func FuseSkills(c domain.CharacterSheet, inputSkillIDs []string, catalog FusionCatalog) (next domain.CharacterSheet, wasNewDiscovery bool, recipeID string, err error) {
	recipe, ok := findRecipe(inputSkillIDs)
	if !ok {
		return c, false, "", ErrNotEligible
	}

	owned := make(map[string]domain.Skill, len(c.Skills))
	for _, s := range c.Skills {
		owned[s.ID] = s
	}
	for _, id := range recipe.InputSkillIDs {
		s, has := owned[id]
		if !has || s.Level < recipe.MinLevels[id] {
			return c, false, "", ErrNotEligible
		}
	}

	result, ok := catalog.SkillTemplate(recipe.ResultSkillID)
	if !ok {
		return c, false, "", ErrNotEligible
	}
	result.Source = domain.AcquisitionSource{Kind: "fusion", FromSkillIDs: append([]string{}, recipe.InputSkillIDs...)}

	next = c
	remaining := make([]domain.Skill, 0, len(c.Skills))
	for _, s := range c.Skills {
		keep := true
		for _, id := range recipe.InputSkillIDs {
			if s.ID == id {
				keep = false
				break
			}
		}
		if keep {
			remaining = append(remaining, s)
		}
	}
	next.Skills = append(remaining, result)

	wasNewDiscovery = true
	for _, known := range c.FusionRecipesKnown {
		if known == recipe.RecipeID {
			wasNewDiscovery = false
			break
		}
	}
	if wasNewDiscovery {
		next.FusionRecipesKnown = append(append([]string{}, c.FusionRecipesKnown...), recipe.RecipeID)
	}
	return next, wasNewDiscovery, recipe.RecipeID, nil
}

// PartialFusionHint surfaces a near-miss recipe: either a missing input or
// inputs held below the recipe's minimum level, so the UI can nudge the
// player without revealing the full recipe.
type PartialFusionHint struct {
	RecipeID        string
	MissingSkillIDs []string
	LowLevelSkillIDs []string
}

// FindPartialMatches scans the recipe table for recipes where the sheet
// lacks at most one input and/or holds some inputs below their minimum
// level, using FusionTags as a compatibility signal: a recipe is only
// surfaced as a hint if the owned skills share at least one fusion tag with
// the recipe's result skill, or the sheet owns no fusion tags at all.
func FindPartialMatches(c domain.CharacterSheet, catalog FusionCatalog) []PartialFusionHint {
	owned := make(map[string]domain.Skill, len(c.Skills))
	ownedTags := make(map[string]struct{})
	for _, s := range c.Skills {
		owned[s.ID] = s
		for _, t := range s.FusionTags {
			ownedTags[t] = struct{}{}
		}
	}

	var hints []PartialFusionHint
	for _, r := range FusionRecipes {
		var missing, lowLevel []string
		for _, id := range r.InputSkillIDs {
			s, has := owned[id]
			if !has {
				missing = append(missing, id)
				continue
			}
			if s.Level < r.MinLevels[id] {
				lowLevel = append(lowLevel, id)
			}
		}
		if len(missing)+len(lowLevel) == 0 {
			continue // exact match, not a partial
		}
		if len(missing) > 1 {
			continue // too far off to hint
		}
		if !tagCompatible(r, ownedTags, catalog) {
			continue
		}
		hints = append(hints, PartialFusionHint{RecipeID: r.RecipeID, MissingSkillIDs: missing, LowLevelSkillIDs: lowLevel})
	}
	return hints
}

// tagCompatible reports whether the player's owned fusion tags overlap with
// any tag carried by the recipe's result skill, used as a loose heuristic
// for whether a partial-match hint is thematically relevant.
func tagCompatible(r FusionRecipe, ownedTags map[string]struct{}, catalog FusionCatalog) bool {
	result, ok := catalog.SkillTemplate(r.ResultSkillID)
	if !ok {
		return false
	}
	for _, t := range result.FusionTags {
		if _, has := ownedTags[t]; has {
			return true
		}
	}
	return len(ownedTags) == 0 // nothing owned yet: don't suppress the first hint
}
