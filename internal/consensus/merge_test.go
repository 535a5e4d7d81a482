package consensus

import (
	"testing"

	"github.com/narrativeforge/engine/internal/domain"
)

func node(id, threadID string, triggerLevel int, beatType domain.BeatType) domain.PlotNode {
	return domain.PlotNode{
		ID:       id,
		ThreadID: threadID,
		Status:   domain.PlotPending,
		Beat: domain.Beat{
			ID:           id,
			Type:         beatType,
			TriggerLevel: triggerLevel,
		},
	}
}

func TestMerge_DuplicateNodesDedupAndWeightedMean(t *testing.T) {
	n1 := node("n1", "thread-a", 5, domain.BeatEscalation)
	n2 := node("n2", "thread-a", 6, domain.BeatEscalation) // within ±2, same type -> same group as n1

	proposals := []AgentProposal{
		{AgentID: "char-1", AgentType: "character", ProposedNodes: []domain.PlotNode{n1}, NodeRatings: map[string]float64{"n1": 0.7}},
		{AgentID: "world-1", AgentType: "world", ProposedNodes: []domain.PlotNode{n2}, NodeRatings: map[string]float64{"n2": 0.5}},
	}

	result := Merge(proposals, domain.PlotGraph{Nodes: map[string]domain.PlotNode{}, Edges: map[string]domain.PlotEdge{}})

	if len(result.AcceptedNodes) != 1 {
		t.Fatalf("AcceptedNodes = %+v, want exactly 1 merged node", result.AcceptedNodes)
	}
	if result.AcceptedNodes[0].ID != "n1" {
		t.Fatalf("canonical node id = %q, want n1 (first seen)", result.AcceptedNodes[0].ID)
	}
}

func TestMerge_BelowThresholdRejected(t *testing.T) {
	n := node("n1", "thread-a", 5, domain.BeatEscalation)
	proposals := []AgentProposal{
		{AgentID: "mystery-1", AgentType: "mystery", ProposedNodes: []domain.PlotNode{n}, NodeRatings: map[string]float64{"n1": 0.3}},
	}

	result := Merge(proposals, domain.PlotGraph{Nodes: map[string]domain.PlotNode{}, Edges: map[string]domain.PlotEdge{}})

	if len(result.AcceptedNodes) != 0 {
		t.Fatalf("AcceptedNodes = %+v, want none (rating below 0.5 combined threshold)", result.AcceptedNodes)
	}
}

func TestMerge_RequiresAtLeastOneHighConfidenceProposal(t *testing.T) {
	n1 := node("n1", "thread-a", 5, domain.BeatEscalation)
	n2 := node("n2", "thread-a", 5, domain.BeatEscalation)
	// Two proposals each rating 0.55: combined mean is 0.55 (>=0.5) but
	// neither individual rating reaches 0.6, so it must still be rejected.
	proposals := []AgentProposal{
		{AgentID: "char-1", AgentType: "character", ProposedNodes: []domain.PlotNode{n1}, NodeRatings: map[string]float64{"n1": 0.55}},
		{AgentID: "world-1", AgentType: "world", ProposedNodes: []domain.PlotNode{n2}, NodeRatings: map[string]float64{"n2": 0.55}},
	}

	result := Merge(proposals, domain.PlotGraph{Nodes: map[string]domain.PlotNode{}, Edges: map[string]domain.PlotEdge{}})

	if len(result.AcceptedNodes) != 0 {
		t.Fatalf("AcceptedNodes = %+v, want none (no proposal reached 0.6)", result.AcceptedNodes)
	}
}

func TestMerge_SynthesizesDependencyEdgesInSequence(t *testing.T) {
	n1 := node("n1", "thread-a", 5, domain.BeatIntroduction)
	n2 := node("n2", "thread-a", 10, domain.BeatEscalation)
	proposals := []AgentProposal{
		{
			AgentID:       "char-1",
			AgentType:     "character",
			ProposedNodes: []domain.PlotNode{n1, n2},
			NodeRatings:   map[string]float64{"n1": 0.9, "n2": 0.9},
		},
	}

	result := Merge(proposals, domain.PlotGraph{Nodes: map[string]domain.PlotNode{}, Edges: map[string]domain.PlotEdge{}})

	if len(result.AcceptedNodes) != 2 {
		t.Fatalf("AcceptedNodes = %+v, want 2", result.AcceptedNodes)
	}
	foundDependency := false
	for _, e := range result.AcceptedEdges {
		if e.Type == domain.EdgeDependency && e.FromNodeID == "n1" && e.ToNodeID == "n2" {
			foundDependency = true
		}
	}
	if !foundDependency {
		t.Fatalf("AcceptedEdges = %+v, want a synthesized n1->n2 DEPENDENCY edge", result.AcceptedEdges)
	}
}

func TestMerge_BreaksCyclesByDroppingLowestWeightEdge(t *testing.T) {
	n1 := node("n1", "thread-a", 5, domain.BeatIntroduction)
	n2 := node("n2", "thread-a", 10, domain.BeatEscalation)
	proposals := []AgentProposal{
		{
			AgentID:   "char-1",
			AgentType: "character",
			ProposedNodes: []domain.PlotNode{n1, n2},
			ProposedEdges: []domain.PlotEdge{
				{ID: "e-back", FromNodeID: "n2", ToNodeID: "n1", Type: domain.EdgeDependency, Weight: 0.2},
			},
			NodeRatings: map[string]float64{"n1": 0.9, "n2": 0.9},
		},
	}

	result := Merge(proposals, domain.PlotGraph{Nodes: map[string]domain.PlotNode{}, Edges: map[string]domain.PlotEdge{}})

	for _, c := range result.Conflicts {
		if c.Kind == ConflictCycle {
			return
		}
	}
	t.Fatalf("expected a CYCLIC_DEPENDENCY conflict, got %+v", result.Conflicts)
}

func TestMerge_ConsensusTypeUnanimousWhenAllSurvive(t *testing.T) {
	n := node("n1", "thread-a", 5, domain.BeatEscalation)
	proposals := []AgentProposal{
		{AgentID: "char-1", AgentType: "character", ProposedNodes: []domain.PlotNode{n}, NodeRatings: map[string]float64{"n1": 0.9}},
	}

	result := Merge(proposals, domain.PlotGraph{Nodes: map[string]domain.PlotNode{}, Edges: map[string]domain.PlotEdge{}})

	if result.ConsensusType != Unanimous {
		t.Fatalf("ConsensusType = %q, want UNANIMOUS", result.ConsensusType)
	}
}

func TestMerge_ConsensusTypeNoConsensusWhenNothingSurvives(t *testing.T) {
	n := node("n1", "thread-a", 5, domain.BeatEscalation)
	proposals := []AgentProposal{
		{AgentID: "mystery-1", AgentType: "mystery", ProposedNodes: []domain.PlotNode{n}, NodeRatings: map[string]float64{"n1": 0.1}},
	}

	result := Merge(proposals, domain.PlotGraph{Nodes: map[string]domain.PlotNode{}, Edges: map[string]domain.PlotEdge{}})

	if result.ConsensusType != NoConsensus {
		t.Fatalf("ConsensusType = %q, want NO_CONSENSUS", result.ConsensusType)
	}
}
