package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/narrativeforge/engine/internal/consensus"
	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/pkg/agentsession"
	"github.com/narrativeforge/engine/pkg/llm"
)

// perspectivePrompts gives each of the four planning perspectives its own
// narrative lens. The shared proposal JSON shape lets one PerspectiveAgent
// implementation serve all four (see [consensus.AgentPriority] for how
// their proposals are weighted against one another).
var perspectivePrompts = map[string]string{
	"character": `You are the Character perspective of a planning council for a tabletop RPG.
Propose plot beats driven by the player character's personal growth, relationships, and choices.`,
	"world": `You are the World perspective of a planning council for a tabletop RPG.
Propose plot beats driven by the setting itself: factions, locations, and lore coming alive.`,
	"conflict": `You are the Conflict perspective of a planning council for a tabletop RPG.
Propose plot beats that escalate external threats, antagonists, and stakes.`,
	"mystery": `You are the Mystery perspective of a planning council for a tabletop RPG.
Propose plot beats that seed, deepen, or reveal the session's central mystery.`,
}

const perspectiveResponseShape = `
Reply with only a JSON object matching this shape:
{"nodes": [{"id": "...", "threadId": "...", "beat": {"id": "...", "title": "...",
"description": "...", "type": "ESCALATION", "triggerLevel": 5, "consequences": ["..."]}}],
"edges": [{"id": "...", "fromNodeId": "...", "toNodeId": "...", "type": "DEPENDENCY", "weight": 1.0}],
"ratings": {"<nodeId>": 0.8},
"reasoning": "..."}
Valid beat types: INTRODUCTION, ESCALATION, REVELATION, CLIMAX, RESOLUTION, SIDE_CONTENT.
Valid edge types: DEPENDENCY, FORESHADOWS, ALTERNATIVE.`

// proposalResponse is the JSON shape a perspective agent replies with.
type proposalResponse struct {
	Nodes []struct {
		ID       string          `json:"id"`
		ThreadID string          `json:"threadId"`
		Beat     domain.Beat     `json:"beat"`
	} `json:"nodes"`
	Edges     []domain.PlotEdge `json:"edges"`
	Ratings   map[string]float64 `json:"ratings"`
	Reasoning string             `json:"reasoning"`
}

// PerspectiveAgent produces proposed plot nodes and edges from one of the
// four fixed narrative lenses (character, world, conflict, mystery).
type PerspectiveAgent struct {
	agentType string
	session   *agentsession.Session
}

// NewPerspectiveAgent starts a dedicated session for the given perspective.
// agentType must be one of the keys in [consensus.AgentPriority]
// ("character", "world", "conflict", "mystery").
func NewPerspectiveAgent(agentType string, provider llm.Provider) *PerspectiveAgent {
	prompt := perspectivePrompts[agentType] + perspectiveResponseShape
	return &PerspectiveAgent{
		agentType: agentType,
		session:   agentsession.Start(provider, prompt, agentsession.WithTemperature(0.85)),
	}
}

// Propose sends stateSnapshot and systemDefinition to the agent and returns
// its contribution to a planning run. On any LLM or parse failure, Propose
// returns an empty [consensus.AgentProposal] for this agent type rather
// than an error — the planner degrades gracefully when a perspective agent
// is unavailable.
func (p *PerspectiveAgent) Propose(ctx context.Context, agentID, stateSnapshot, systemDefinition string) consensus.AgentProposal {
	empty := consensus.AgentProposal{AgentID: agentID, AgentType: p.agentType}

	resp, err := p.session.Send(ctx, fmt.Sprintf("System definition: %s\nState: %s", systemDefinition, stateSnapshot))
	if err != nil {
		return empty
	}
	for range resp.Chunks {
	}
	if err := resp.Err(); err != nil {
		return empty
	}

	raw, ok := extractJSONObject(resp.Text)
	if !ok {
		return empty
	}
	var pr proposalResponse
	if err := json.Unmarshal([]byte(raw), &pr); err != nil {
		return empty
	}

	nodes := make([]domain.PlotNode, 0, len(pr.Nodes))
	for _, n := range pr.Nodes {
		nodes = append(nodes, domain.PlotNode{
			ID:       n.ID,
			Beat:     n.Beat,
			ThreadID: n.ThreadID,
			Status:   domain.PlotPending,
		})
	}

	return consensus.AgentProposal{
		AgentID:       agentID,
		AgentType:     p.agentType,
		ProposedNodes: nodes,
		ProposedEdges: pr.Edges,
		NodeRatings:   pr.Ratings,
		Reasoning:     pr.Reasoning,
	}
}
