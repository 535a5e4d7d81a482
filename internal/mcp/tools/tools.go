// Package tools defines the shared [Tool] type used by all built-in MCP tool
// packages of the narrative engine. Each sub-package exports a constructor function that
// returns a slice of [Tool] values ready for registration with the MCP Host.
package tools

import (
	"context"

	"github.com/narrativeforge/engine/pkg/types"
)

// SideEffect classifies what a tool is allowed to do to game state. The
// orchestrator uses this classification to decide whether a tool's result
// can be applied directly or must be staged as a proposal.
type SideEffect string

const (
	// Pure tools compute a result from their arguments alone (e.g. a rules
	// lookup against a static dataset). Safe to call any number of times.
	Pure SideEffect = "pure"

	// StateRead tools read persisted or in-memory game state but do not
	// modify it (e.g. recalling past events).
	StateRead SideEffect = "state-read"

	// StateWrite tools never mutate state directly. They return a list of
	// [StateMutation] proposals that only the orchestrator may apply,
	// atomically, during the commit step of the turn pipeline.
	StateWrite SideEffect = "state-write"

	// LLMInvoking tools themselves call out to a language model (e.g. a
	// generator tool producing a new NPC or location).
	LLMInvoking SideEffect = "llm-invoking"
)

// StateMutation is a typed, atomically-applicable proposal to change some
// part of a game's state. State-write tools return these instead of
// mutating state themselves; only the orchestrator's commit step applies
// them, after validation, to the authoritative GameState.
type StateMutation struct {
	// Kind names the mutation variant (e.g. "loot_drop"). Handlers and the
	// orchestrator agree on the set of kinds in use; the orchestrator logs
	// and drops any kind it does not recognise.
	Kind string

	// TargetID identifies the entity the mutation applies to (a character,
	// an NPC id, an item id) when the mutation is not player-global.
	TargetID string

	// Fields carries the mutation's typed payload, keyed by field name.
	// Handlers document which fields a given Kind expects.
	Fields map[string]any
}

// Tool represents a built-in tool ready for registration with the MCP Host.
//
// Each Tool carries its LLM-facing schema ([types.ToolDefinition]) together
// with the handler function that is invoked when the LLM calls the tool.
// DeclaredP50 and DeclaredMax provide latency estimates used by the
// Budget Enforcer to assign tools to the correct [mcp.BudgetTier].
type Tool struct {
	// Definition is the tool's LLM-facing schema including its name,
	// description, and JSON Schema parameter specification.
	Definition types.ToolDefinition

	// SideEffect classifies what this tool may do to game state. See
	// [SideEffect] for the meaning of each value.
	SideEffect SideEffect

	// Handler executes the tool with JSON-encoded args and returns a
	// JSON-encoded result string on success, or a descriptive error.
	// Implementations must be safe for concurrent use and must respect
	// context cancellation. For SideEffect == StateWrite tools, the result
	// string is a JSON-encoded []StateMutation rather than a direct effect.
	Handler func(ctx context.Context, args string) (string, error)

	// DeclaredP50 is the tool author's declared median (p50) execution
	// latency in milliseconds. Used by the Budget Enforcer for initial tier
	// assignment before live calibration data is available.
	DeclaredP50 int64

	// DeclaredMax is the tool author's declared p99 upper-bound latency in
	// milliseconds. The host records it with the tool; it is not applied as
	// a timeout during tool execution.
	DeclaredMax int64
}
