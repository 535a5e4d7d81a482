// Package plotgraph wires the pure plot-graph operations in
// [domain.PlotGraph] to the durable store and to the orchestrator's
// per-turn trigger evaluation step: loading/saving, applying a consensus
// result as a new graph version, and evaluating which PENDING nodes
// become eligible to trigger at a given player level.
//
// Graph mutation is read-copy-update: readers (TriggerEligibleNodes,
// ProjectThreads) operate on an immutable snapshot obtained via Load;
// writers (ApplyConsensus, MarkTriggered) build a new version and persist
// it atomically. A version bump mid-turn never invalidates a turn already
// using an older snapshot, matching the versioning rule the orchestrator's
// trigger-check step relies on.
package plotgraph

import (
	"context"
	"fmt"

	"github.com/narrativeforge/engine/internal/consensus"
	"github.com/narrativeforge/engine/internal/domain"
)

// Store is the slice of the persistence layer this package depends on.
// Satisfied by *persistence.Store.
type Store interface {
	LoadPlotGraph(ctx context.Context, gameID string) (domain.PlotGraph, error)
	SavePlotGraph(ctx context.Context, g domain.PlotGraph) error
	UpdateNodeStatus(ctx context.Context, gameID, nodeID string, status domain.PlotNodeStatus) error
}

// Manager evaluates and mutates plot graphs on behalf of the orchestrator
// and planner.
type Manager struct {
	store Store
}

// NewManager creates a Manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Load returns gameID's current plot graph snapshot.
func (m *Manager) Load(ctx context.Context, gameID string) (domain.PlotGraph, error) {
	return m.store.LoadPlotGraph(ctx, gameID)
}

// TriggerResult is the outcome of evaluating a snapshot for newly-eligible
// nodes.
type TriggerResult struct {
	// TriggeredNodeIDs lists nodes that transitioned PENDING -> TRIGGERED.
	TriggeredNodeIDs []string

	// ForeshadowingHints collects the non-empty Beat.Foreshadowing strings
	// of every newly-triggered node, ready for inclusion in the narrator
	// prompt.
	ForeshadowingHints []string
}

// EvaluateTriggers scans g for every PENDING node eligible to trigger at
// playerLevel (via [domain.TriggerEligibleNodes]), persists each transition,
// and returns the result. It must run against the graph version loaded at
// the start of the current turn (the turn's frozen snapshot S₀'s
// accompanying graph), never a version reloaded mid-turn.
func (m *Manager) EvaluateTriggers(ctx context.Context, gameID string, g domain.PlotGraph, playerLevel int) (TriggerResult, error) {
	eligible := domain.TriggerEligibleNodes(g, playerLevel)

	var result TriggerResult
	for _, nodeID := range eligible {
		if err := m.store.UpdateNodeStatus(ctx, gameID, nodeID, domain.PlotTriggered); err != nil {
			return result, fmt.Errorf("plotgraph: mark triggered %q: %w", nodeID, err)
		}
		result.TriggeredNodeIDs = append(result.TriggeredNodeIDs, nodeID)
		if hint := g.Nodes[nodeID].Beat.Foreshadowing; hint != "" {
			result.ForeshadowingHints = append(result.ForeshadowingHints, hint)
		}
	}
	return result, nil
}

// CompleteNode marks nodeID COMPLETED, the transition the orchestrator
// drives when a quest or beat resolves during a turn.
func (m *Manager) CompleteNode(ctx context.Context, gameID, nodeID string) error {
	return m.store.UpdateNodeStatus(ctx, gameID, nodeID, domain.PlotCompleted)
}

// ApplyConsensus builds the next plot-graph version from prevGraph's
// non-terminal portion plus result's accepted nodes and edges, and persists
// it. Terminal nodes (COMPLETED, ABANDONED) and their edges carry over
// unchanged; they are history, not subject to further planning.
func (m *Manager) ApplyConsensus(ctx context.Context, gameID string, prevGraph domain.PlotGraph, result consensus.ConsensusResult) (domain.PlotGraph, error) {
	next := domain.PlotGraph{
		GameID:  gameID,
		Version: prevGraph.Version + 1,
		Nodes:   make(map[string]domain.PlotNode, len(prevGraph.Nodes)+len(result.AcceptedNodes)),
		Edges:   make(map[string]domain.PlotEdge, len(prevGraph.Edges)+len(result.AcceptedEdges)),
	}

	for id, n := range prevGraph.Nodes {
		next.Nodes[id] = n
	}
	for id, e := range prevGraph.Edges {
		next.Edges[id] = e
	}
	for _, n := range result.AcceptedNodes {
		next.Nodes[n.ID] = n
	}
	for _, e := range result.AcceptedEdges {
		next.Edges[e.ID] = e
	}

	if err := m.store.SavePlotGraph(ctx, next); err != nil {
		return domain.PlotGraph{}, fmt.Errorf("plotgraph: save version %d: %w", next.Version, err)
	}
	return next, nil
}

// ProjectThreads is a thin re-export of [domain.ProjectThreads] for callers
// that only import this package.
func ProjectThreads(g domain.PlotGraph) []domain.PlotThread {
	return domain.ProjectThreads(g)
}
