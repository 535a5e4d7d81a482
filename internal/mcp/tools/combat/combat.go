// Package combat provides the built-in "combat.roll" MCP tool: a dice
// expression evaluator used by the orchestrator's combat dispatch and by
// agents that need an explicit, auditable source of randomness (to-hit
// rolls, damage dice, saving throws).
//
// combat.roll itself never touches game state — it is [tools.Pure] — but
// its result feeds directly into the orchestrator's damage/xp/loot
// mutation proposals for the COMBAT intent (see the orchestrator package),
// which is why it lives alongside the combat dispatch path rather than in
// a generic utility package.
//
// Randomness uses [math/rand/v2] with a per-process automatically-seeded
// source. All handlers are safe for concurrent use.
package combat

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/narrativeforge/engine/internal/mcp/tools"
	"github.com/narrativeforge/engine/pkg/types"
)

// RollArgs is the JSON-decoded input for the "combat.roll" tool.
type RollArgs struct {
	// Expression is the dice expression to evaluate (e.g. "2d6+3").
	Expression string `json:"expression"`
}

// RollResult is the JSON-encoded output of the "combat.roll" tool.
type RollResult struct {
	// Expression is the original dice expression, echoed back to the caller.
	Expression string `json:"expression"`

	// Rolls holds the individual die results (before the modifier is applied).
	Rolls []int `json:"rolls"`

	// Total is the sum of all rolls plus the modifier.
	Total int `json:"total"`
}

// parseExpression parses a dice expression of the form NdS, NdS+M, or NdS-M.
// N is the number of dice (defaults to 1 when omitted), S is the number of
// sides (must be ≥ 1), and M is an optional integer modifier (may be negative).
//
// Returns (count, sides, modifier, nil) on success, or a descriptive error.
func parseExpression(expr string) (count, sides, modifier int, err error) {
	expr = strings.ToLower(strings.TrimSpace(expr))

	dIdx := strings.Index(expr, "d")
	if dIdx == -1 {
		return 0, 0, 0, fmt.Errorf("combat: invalid expression %q: missing 'd' separator", expr)
	}

	countStr := expr[:dIdx]
	if countStr == "" {
		count = 1
	} else {
		count, err = strconv.Atoi(countStr)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("combat: invalid dice count %q in expression %q", countStr, expr)
		}
	}
	if count < 1 {
		return 0, 0, 0, fmt.Errorf("combat: dice count must be ≥ 1, got %d in expression %q", count, expr)
	}

	rest := expr[dIdx+1:]

	plusIdx := strings.Index(rest, "+")
	minusIdx := strings.Index(rest, "-")

	switch {
	case plusIdx != -1:
		sides, err = strconv.Atoi(rest[:plusIdx])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("combat: invalid sides %q in expression %q", rest[:plusIdx], expr)
		}
		modifier, err = strconv.Atoi(rest[plusIdx+1:])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("combat: invalid modifier %q in expression %q", rest[plusIdx+1:], expr)
		}

	case minusIdx != -1:
		sides, err = strconv.Atoi(rest[:minusIdx])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("combat: invalid sides %q in expression %q", rest[:minusIdx], expr)
		}
		mod, err2 := strconv.Atoi(rest[minusIdx+1:])
		if err2 != nil {
			return 0, 0, 0, fmt.Errorf("combat: invalid modifier %q in expression %q", rest[minusIdx+1:], expr)
		}
		modifier = -mod

	default:
		sides, err = strconv.Atoi(rest)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("combat: invalid sides %q in expression %q", rest, expr)
		}
	}

	if sides < 1 {
		return 0, 0, 0, fmt.Errorf("combat: sides must be ≥ 1, got %d in expression %q", sides, expr)
	}

	return count, sides, modifier, nil
}

// rollHandler implements the "combat.roll" tool. It parses the dice
// expression from the JSON args, performs the rolls, and returns a
// JSON-encoded [RollResult].
func rollHandler(_ context.Context, args string) (string, error) {
	var a RollArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("combat: roll: failed to parse arguments: %w", err)
	}
	if a.Expression == "" {
		return "", fmt.Errorf("combat: roll: expression must not be empty")
	}

	count, sides, modifier, err := parseExpression(a.Expression)
	if err != nil {
		return "", err
	}

	rolls := make([]int, count)
	total := modifier
	for i := range count {
		r := rand.IntN(sides) + 1
		rolls[i] = r
		total += r
	}

	res, err := json.Marshal(RollResult{
		Expression: a.Expression,
		Rolls:      rolls,
		Total:      total,
	})
	if err != nil {
		return "", fmt.Errorf("combat: roll: failed to encode result: %w", err)
	}
	return string(res), nil
}

// Tools returns the slice of built-in combat tools ready for registration
// with the MCP Host.
//
// The returned tools are:
//   - "combat.roll": evaluates a dice expression such as "2d6+3".
func Tools() []tools.Tool {
	return []tools.Tool{
		{
			Definition: types.ToolDefinition{
				Name:        "combat.roll",
				Description: "Evaluate a dice expression and return each individual die result and the total. Supports standard notation such as 2d6+3, 1d20, or 4d8-1. Used for to-hit rolls, damage dice, and saving throws.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"expression": map[string]any{
							"type":        "string",
							"description": "Dice expression to evaluate, e.g. 2d6+3, 1d20, 4d8-1",
						},
					},
					"required": []string{"expression"},
				},
				EstimatedDurationMs: 5,
				MaxDurationMs:       20,
				Idempotent:          false,
				CacheableSeconds:    0,
			},
			SideEffect:  tools.Pure,
			Handler:     rollHandler,
			DeclaredP50: 5,
			DeclaredMax: 20,
		},
	}
}
