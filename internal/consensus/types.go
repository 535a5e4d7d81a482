// Package consensus merges multiple agents' proposed plot-graph additions
// into a single accepted set, resolving duplicate beats, contradictions,
// cycles, and unreachable nodes. It is pure and deterministic given its
// inputs: no I/O, no provider calls, no randomness.
package consensus

import "github.com/narrativeforge/engine/internal/domain"

// AgentPriority weights a perspective agent's proposals when merging
// duplicate nodes. Values mirror the narrative weight each perspective
// carries in a typical session: character-level beats are trusted most,
// mystery threads the least (they are the easiest to defer safely).
var AgentPriority = map[string]float64{
	"character": 1.0,
	"world":     0.9,
	"conflict":  0.9,
	"mystery":   0.8,
}

// AgentProposal is one perspective agent's contribution to a planning run.
type AgentProposal struct {
	AgentID      string
	AgentType    string // one of the AgentPriority keys
	ProposedNodes []domain.PlotNode
	ProposedEdges []domain.PlotEdge

	// NodeRatings holds this agent's confidence, in [0,1], for each node it
	// proposed, keyed by PlotNode.ID.
	NodeRatings map[string]float64

	Reasoning string
}

// ConsensusType summarises how broadly a planning run's output was agreed
// on, derived from the fraction of agents whose proposed nodes survived.
type ConsensusType string

const (
	Unanimous  ConsensusType = "UNANIMOUS"
	Majority   ConsensusType = "MAJORITY"
	Split      ConsensusType = "SPLIT"
	NoConsensus ConsensusType = "NO_CONSENSUS"
)

// ConflictKind classifies why a candidate node or edge did not cleanly merge.
type ConflictKind string

const (
	ConflictContradiction ConflictKind = "CONTRADICTORY_CONSEQUENCES"
	ConflictCycle         ConflictKind = "CYCLIC_DEPENDENCY"
	ConflictUnreachable   ConflictKind = "UNREACHABLE_NODE"
)

// Conflict records one unresolved or forcibly-resolved issue found while
// merging proposals.
type Conflict struct {
	Kind        ConflictKind
	NodeID      string
	EdgeID      string
	Description string
}

// ConsensusResult is the output of merging a planning run's [AgentProposal]
// list: the nodes and edges accepted into the next plot-graph version, any
// conflicts encountered, and an overall agreement classification.
type ConsensusResult struct {
	AcceptedNodes []domain.PlotNode
	AcceptedEdges []domain.PlotEdge
	Conflicts     []Conflict
	ConsensusType ConsensusType
}

// PlanningSession is the durable record of one planner run: the proposals it
// collected and the consensus result it produced. A superseded run (see the
// planner's supersession policy) is discarded before a PlanningSession is
// built for it, so every persisted session represents a completed run.
type PlanningSession struct {
	ID              string
	GameID          string
	PlotGraphVersion int // the version number this run produced
	SystemDefinition string
	Proposals       []AgentProposal
	Result          ConsensusResult
	StartedAt       int64
	CompletedAt     int64
}
