package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/narrativeforge/engine/pkg/agentsession"
	"github.com/narrativeforge/engine/pkg/llm"
)

const systemDefinerPrompt = `You invent a unique narrative identity for a new tabletop RPG session as
JSON matching this shape:
{"name": "...", "personality": "...", "centralMystery": "...", "threat": "...", "theme": "...",
"factions": ["..."], "hooks": ["..."]}
Reply with only the JSON object.`

// SystemDefinition is the unique narrative identity generated for a game at
// creation time, consumed by the planner's perspective agents to ground
// their proposals in a shared world.
type SystemDefinition struct {
	Name           string   `json:"name"`
	Personality    string   `json:"personality"`
	CentralMystery string   `json:"centralMystery"`
	Threat         string   `json:"threat"`
	Theme          string   `json:"theme"`
	Factions       []string `json:"factions"`
	Hooks          []string `json:"hooks"`
}

// SystemDefiner produces a [SystemDefinition] at game start, and refreshes
// it on later planner runs given the game's current state.
type SystemDefiner struct {
	session *agentsession.Session
}

// NewSystemDefiner starts a dedicated session against provider.
func NewSystemDefiner(provider llm.Provider) *SystemDefiner {
	return &SystemDefiner{session: agentsession.Start(provider, systemDefinerPrompt, agentsession.WithTemperature(0.9))}
}

// Define produces a system definition given a short brief describing the
// game's system type, difficulty, and world settings.
func (d *SystemDefiner) Define(ctx context.Context, brief string) (SystemDefinition, error) {
	resp, err := d.session.Send(ctx, brief)
	if err != nil {
		return SystemDefinition{}, fmt.Errorf("agents: system definer: %w", err)
	}
	for range resp.Chunks {
	}
	if err := resp.Err(); err != nil {
		return SystemDefinition{}, fmt.Errorf("agents: system definer: %w", err)
	}

	raw, ok := extractJSONObject(resp.Text)
	if !ok {
		return SystemDefinition{}, fmt.Errorf("agents: system definer: no JSON object in response")
	}
	var def SystemDefinition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return SystemDefinition{}, fmt.Errorf("agents: system definer: parse: %w", err)
	}
	return def, nil
}
