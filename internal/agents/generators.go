package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/pkg/agentsession"
	"github.com/narrativeforge/engine/pkg/llm"
)

// extractJSONObject returns the span of text from the first '{' to the last
// '}', tolerating surrounding prose (code fences, explanations). The span is
// not checked for balance or validity, so two separate objects in one reply
// come back as a single span. It is
// the shared tolerant-parse step every generator uses: generators ask the
// model for a strictly-typed object but models routinely wrap it in
// commentary.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// ─── NPC generator ────────────────────────────────────────────────────────

const npcGeneratorPrompt = `You generate a single NPC for a tabletop RPG as JSON matching this shape:
{"id": "...", "name": "...", "archetype": "...", "locationId": "...", "personality": "...",
"lore": "...", "greetingContext": "..."}
Reply with only the JSON object.`

// NPCGenerator produces a new [domain.NPC] from a short prompt describing
// the narrative need (e.g. "a suspicious blacksmith guarding a secret").
type NPCGenerator struct {
	session *agentsession.Session
}

// NewNPCGenerator starts a dedicated session against provider.
func NewNPCGenerator(provider llm.Provider) *NPCGenerator {
	return &NPCGenerator{session: agentsession.Start(provider, npcGeneratorPrompt, agentsession.WithTemperature(0.8))}
}

// Generate produces an NPC for locationID given a free-text brief.
func (g *NPCGenerator) Generate(ctx context.Context, locationID, brief string) (domain.NPC, error) {
	resp, err := g.session.Send(ctx, fmt.Sprintf("Location: %s\nBrief: %s", locationID, brief))
	if err != nil {
		return domain.NPC{}, fmt.Errorf("agents: npc generator: %w", err)
	}
	for range resp.Chunks {
	}
	if err := resp.Err(); err != nil {
		return domain.NPC{}, fmt.Errorf("agents: npc generator: %w", err)
	}

	raw, ok := extractJSONObject(resp.Text)
	if !ok {
		return domain.NPC{}, fmt.Errorf("agents: npc generator: no JSON object in response")
	}
	var npc domain.NPC
	if err := json.Unmarshal([]byte(raw), &npc); err != nil {
		return domain.NPC{}, fmt.Errorf("agents: npc generator: parse: %w", err)
	}
	if npc.LocationID == "" {
		npc.LocationID = locationID
	}
	return npc, nil
}

// ─── Location generator ───────────────────────────────────────────────────

const locationGeneratorPrompt = `You generate a single new location for a tabletop RPG as JSON matching
this shape: {"id": "...", "name": "...", "description": "...", "tags": ["..."]}
Reply with only the JSON object.`

// LocationGenerator produces a new [domain.Location] discovered by the
// player during exploration.
type LocationGenerator struct {
	session *agentsession.Session
}

// NewLocationGenerator starts a dedicated session against provider.
func NewLocationGenerator(provider llm.Provider) *LocationGenerator {
	return &LocationGenerator{session: agentsession.Start(provider, locationGeneratorPrompt, agentsession.WithTemperature(0.8))}
}

// Generate produces a location discovered from currentLocationID given a
// free-text discovery cue.
func (g *LocationGenerator) Generate(ctx context.Context, currentLocationID, cue string) (domain.Location, error) {
	resp, err := g.session.Send(ctx, fmt.Sprintf("Discovered from: %s\nCue: %s", currentLocationID, cue))
	if err != nil {
		return domain.Location{}, fmt.Errorf("agents: location generator: %w", err)
	}
	for range resp.Chunks {
	}
	if err := resp.Err(); err != nil {
		return domain.Location{}, fmt.Errorf("agents: location generator: %w", err)
	}

	raw, ok := extractJSONObject(resp.Text)
	if !ok {
		return domain.Location{}, fmt.Errorf("agents: location generator: no JSON object in response")
	}
	var loc domain.Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return domain.Location{}, fmt.Errorf("agents: location generator: parse: %w", err)
	}
	return loc, nil
}

// ─── Quest generator ──────────────────────────────────────────────────────

const questGeneratorPrompt = `You generate a single quest for a tabletop RPG as JSON matching this
shape: {"id": "...", "name": "...", "description": "...", "type": "...",
"objectives": [{"id": "...", "description": "...", "targetProgress": 1}],
"reward": {"xp": 0, "gold": 0, "itemIds": []}, "giverNpcId": "..."}
Reply with only the JSON object.`

// QuestGenerator produces a new [domain.Quest].
type QuestGenerator struct {
	session *agentsession.Session
}

// NewQuestGenerator starts a dedicated session against provider.
func NewQuestGenerator(provider llm.Provider) *QuestGenerator {
	return &QuestGenerator{session: agentsession.Start(provider, questGeneratorPrompt, agentsession.WithTemperature(0.8))}
}

// Generate produces a quest given the NPC offering it and a free-text brief.
func (g *QuestGenerator) Generate(ctx context.Context, giverNPCID, brief string) (domain.Quest, error) {
	resp, err := g.session.Send(ctx, fmt.Sprintf("Giver: %s\nBrief: %s", giverNPCID, brief))
	if err != nil {
		return domain.Quest{}, fmt.Errorf("agents: quest generator: %w", err)
	}
	for range resp.Chunks {
	}
	if err := resp.Err(); err != nil {
		return domain.Quest{}, fmt.Errorf("agents: quest generator: %w", err)
	}

	raw, ok := extractJSONObject(resp.Text)
	if !ok {
		return domain.Quest{}, fmt.Errorf("agents: quest generator: no JSON object in response")
	}
	var q domain.Quest
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return domain.Quest{}, fmt.Errorf("agents: quest generator: parse: %w", err)
	}
	if q.GiverNPCID == "" {
		q.GiverNPCID = giverNPCID
	}
	q.Status = domain.QuestNotStarted
	return q, nil
}
