// Package skills implements action-insight learning, skill execution,
// evolution, and fusion over the pure value types in [domain]. Nothing here
// performs I/O: every function takes an explicit character sheet (and, where
// relevant, an externally supplied random draw) and returns a new one.
package skills

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// ActionContext carries the situational detail a verb alone does not: what
// weapon is equipped, what the location is tagged with, and whether the
// actor is presently in combat. The classifier folds these into the
// produced action-type tokens.
type ActionContext struct {
	EquippedWeaponType string
	LocationTags       []string
	InCombat           bool
}

// verbLexicon maps a canonical verb to the set of surface forms a player
// might type. Classification fuzzy-matches the player's input token against
// every surface form; the canonical verb of the best match above
// verbMatchThreshold is used to build the action-type token.
var verbLexicon = map[string][]string{
	"slash":  {"slash", "slice", "cut", "swing"},
	"stab":   {"stab", "pierce", "thrust", "jab"},
	"shoot":  {"shoot", "fire", "loose"},
	"cast":   {"cast", "conjure", "invoke"},
	"block":  {"block", "parry", "guard"},
	"dodge":  {"dodge", "evade", "sidestep"},
	"sneak":  {"sneak", "creep", "skulk"},
	"grapple": {"grapple", "wrestle", "tackle"},
}

const verbMatchThreshold = 0.82

// Classify maps free-text player input into a set of action-type tokens
// given the current action context. Every recognised verb is emitted bare,
// and when the equipped weapon type is non-empty it is also combined into a
// compound token, e.g. "slash" + "sword" -> "sword_slash", so both a
// weapon-scoped skill table entry and a weapon-agnostic one can observe the
// action.
func Classify(input string, ctx ActionContext) []string {
	tokens := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(input)) {
		verb, ok := matchVerb(word)
		if !ok {
			continue
		}
		tokens[verb] = struct{}{}
		if ctx.EquippedWeaponType != "" {
			tokens[ctx.EquippedWeaponType+"_"+verb] = struct{}{}
		}
	}
	out := make([]string, 0, len(tokens))
	for t := range tokens {
		out = append(out, t)
	}
	return out
}

// matchVerb finds the canonical verb whose surface forms best match word
// under Jaro-Winkler similarity, returning ok=false if no form clears
// verbMatchThreshold.
func matchVerb(word string) (canonical string, ok bool) {
	bestScore := 0.0
	for verb, forms := range verbLexicon {
		for _, form := range forms {
			if word == form {
				return verb, true
			}
			score := matchr.JaroWinkler(word, form, false)
			if score > bestScore {
				bestScore = score
				canonical = verb
			}
		}
	}
	if bestScore >= verbMatchThreshold {
		return canonical, true
	}
	return "", false
}
