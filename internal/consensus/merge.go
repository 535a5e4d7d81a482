package consensus

import (
	"sort"

	"github.com/narrativeforge/engine/internal/domain"
)

// nodeGroup is a set of proposed nodes considered equivalent: same
// ThreadID and either the same Beat.ID or a TriggerLevel within ±2 of each
// other sharing the same BeatType.
type nodeGroup struct {
	canonical domain.PlotNode
	ratings   []weightedRating
	sources   []string // agent ids that proposed into this group
}

type weightedRating struct {
	rating float64
	weight float64
}

// Merge combines proposals into a ConsensusResult, adding accepted nodes
// and edges on top of prevGraph's non-terminal portion. prevGraph's
// terminal (COMPLETED/ABANDONED) nodes are left untouched and excluded from
// re-sequencing and reachability checks — the "build new plot graph
// by adding accepted nodes and edges to the previous version's non-terminal
// portion" of consensus merging.
func Merge(proposals []AgentProposal, prevGraph domain.PlotGraph) ConsensusResult {
	groups, idCanonical := groupNodes(proposals)

	var conflicts []Conflict
	conflicts = append(conflicts, detectContradictions(proposals)...)

	accepted := make([]domain.PlotNode, 0, len(groups))
	survivedAgents := make(map[string]bool)
	proposingAgents := make(map[string]bool)

	for _, g := range groups {
		for _, src := range g.sources {
			proposingAgents[src] = true
		}
		combined, maxRating := combineRatings(g.ratings)
		if combined >= 0.5 && maxRating >= 0.6 {
			accepted = append(accepted, g.canonical)
			for _, src := range g.sources {
				survivedAgents[src] = true
			}
		}
	}

	acceptedEdges := remapEdges(proposals, idCanonical, accepted, prevGraph)

	accepted, acceptedEdges = resequenceAndSynthesize(accepted, acceptedEdges, prevGraph)

	acceptedEdges, cycleConflicts := breakCycles(accepted, acceptedEdges, prevGraph)
	conflicts = append(conflicts, cycleConflicts...)

	conflicts = append(conflicts, detectUnreachable(accepted, acceptedEdges, prevGraph)...)

	return ConsensusResult{
		AcceptedNodes: accepted,
		AcceptedEdges: acceptedEdges,
		Conflicts:     conflicts,
		ConsensusType: classify(proposingAgents, survivedAgents),
	}
}

// groupNodes partitions every proposed node across all proposals into
// equivalence groups and returns, per group, the canonical node (the first
// one seen) and the id→canonical-id map needed to rewrite edges.
func groupNodes(proposals []AgentProposal) ([]*nodeGroup, map[string]string) {
	var groups []*nodeGroup
	idCanonical := make(map[string]string)

	for _, p := range proposals {
		weight := AgentPriority[p.AgentType]
		for _, n := range p.ProposedNodes {
			rating := p.NodeRatings[n.ID]
			group := findGroup(groups, n)
			if group == nil {
				group = &nodeGroup{canonical: n}
				groups = append(groups, group)
			}
			group.ratings = append(group.ratings, weightedRating{rating: rating, weight: weight})
			group.sources = append(group.sources, p.AgentID)
			idCanonical[n.ID] = group.canonical.ID
		}
	}
	return groups, idCanonical
}

func findGroup(groups []*nodeGroup, n domain.PlotNode) *nodeGroup {
	for _, g := range groups {
		if g.canonical.ThreadID != n.ThreadID {
			continue
		}
		if g.canonical.ID == n.ID || (n.Beat.ID != "" && g.canonical.Beat.ID == n.Beat.ID) {
			return g
		}
		if g.canonical.Beat.Type == n.Beat.Type && absInt(g.canonical.Beat.TriggerLevel-n.Beat.TriggerLevel) <= 2 {
			return g
		}
	}
	return nil
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// combineRatings returns the weighted mean of ratings and the maximum raw
// rating among contributors, per the acceptance threshold
// ("combined ≥ 0.5 and at least one proposal ≥ 0.6").
func combineRatings(ratings []weightedRating) (combined, max float64) {
	var sumWeighted, sumWeight float64
	for _, r := range ratings {
		w := r.weight
		if w == 0 {
			w = 1
		}
		sumWeighted += r.rating * w
		sumWeight += w
		if r.rating > max {
			max = r.rating
		}
	}
	if sumWeight == 0 {
		return 0, max
	}
	return sumWeighted / sumWeight, max
}

// detectContradictions flags proposals sharing an exact Beat.ID whose
// consequences lists differ — "contradictory consequences for the same
// beat id".
func detectContradictions(proposals []AgentProposal) []Conflict {
	byBeatID := make(map[string][]domain.PlotNode)
	for _, p := range proposals {
		for _, n := range p.ProposedNodes {
			byBeatID[n.Beat.ID] = append(byBeatID[n.Beat.ID], n)
		}
	}
	var conflicts []Conflict
	for beatID, nodes := range byBeatID {
		if beatID == "" || len(nodes) < 2 {
			continue
		}
		first := nodes[0].Beat.Consequences
		for _, n := range nodes[1:] {
			if !equalStrings(first, n.Beat.Consequences) {
				conflicts = append(conflicts, Conflict{
					Kind:        ConflictContradiction,
					NodeID:      nodes[0].ID,
					Description: "differing consequences proposed for beat " + beatID,
				})
				break
			}
		}
	}
	return conflicts
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// remapEdges rewrites every proposed edge's endpoints through idCanonical
// and keeps only edges whose endpoints are either an accepted node or a
// node already present (non-terminal) in prevGraph.
func remapEdges(proposals []AgentProposal, idCanonical map[string]string, accepted []domain.PlotNode, prevGraph domain.PlotGraph) []domain.PlotEdge {
	valid := make(map[string]bool, len(accepted))
	for _, n := range accepted {
		valid[n.ID] = true
	}
	for _, n := range prevGraph.Nodes {
		if !n.Status.IsTerminal() {
			valid[n.ID] = true
		}
	}

	seen := make(map[string]bool)
	var edges []domain.PlotEdge
	for _, p := range proposals {
		for _, e := range p.ProposedEdges {
			e.FromNodeID = canonicalID(idCanonical, e.FromNodeID)
			e.ToNodeID = canonicalID(idCanonical, e.ToNodeID)
			if !valid[e.FromNodeID] || !valid[e.ToNodeID] {
				continue
			}
			key := e.FromNodeID + "->" + e.ToNodeID + ":" + string(e.Type)
			if seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, e)
		}
	}
	return edges
}

func canonicalID(idCanonical map[string]string, id string) string {
	if c, ok := idCanonical[id]; ok {
		return c
	}
	return id
}

// resequenceAndSynthesize re-sequences accepted nodes within each thread by
// TriggerLevel ascending and synthesises a DEPENDENCY edge between
// successive nodes of the same thread when no explicit edge already
// connects them ("ordering integrity").
func resequenceAndSynthesize(accepted []domain.PlotNode, edges []domain.PlotEdge, prevGraph domain.PlotGraph) ([]domain.PlotNode, []domain.PlotEdge) {
	byThread := make(map[string][]int) // thread -> indices into accepted
	for i, n := range accepted {
		byThread[n.ThreadID] = append(byThread[n.ThreadID], i)
	}

	hasEdge := make(map[string]bool, len(edges))
	for _, e := range edges {
		hasEdge[e.FromNodeID+"->"+e.ToNodeID] = true
	}

	for thread, idxs := range byThread {
		sort.Slice(idxs, func(a, b int) bool {
			return accepted[idxs[a]].Beat.TriggerLevel < accepted[idxs[b]].Beat.TriggerLevel
		})
		baseSeq := maxExistingSequence(prevGraph, thread) + 1
		for pos, idx := range idxs {
			accepted[idx].Position.Sequence = baseSeq + pos
			if pos == 0 {
				continue
			}
			from := accepted[idxs[pos-1]].ID
			to := accepted[idx].ID
			if hasEdge[from+"->"+to] {
				continue
			}
			edges = append(edges, domain.PlotEdge{
				ID:         from + "_to_" + to,
				FromNodeID: from,
				ToNodeID:   to,
				Type:       domain.EdgeDependency,
				Weight:     1.0,
			})
			hasEdge[from+"->"+to] = true
		}
	}
	return accepted, edges
}

func maxExistingSequence(g domain.PlotGraph, threadID string) int {
	max := -1
	for _, n := range g.Nodes {
		if n.ThreadID == threadID && n.Position.Sequence > max {
			max = n.Position.Sequence
		}
	}
	return max
}

// breakCycles detects cycles among DEPENDENCY edges over the combined set
// of accepted nodes and prevGraph's non-terminal nodes, breaking each by
// dropping its lowest-weight edge.
func breakCycles(accepted []domain.PlotNode, edges []domain.PlotEdge, prevGraph domain.PlotGraph) ([]domain.PlotEdge, []Conflict) {
	nodeIDs := make(map[string]bool)
	for _, n := range accepted {
		nodeIDs[n.ID] = true
	}
	for _, n := range prevGraph.Nodes {
		if !n.Status.IsTerminal() {
			nodeIDs[n.ID] = true
		}
	}

	var conflicts []Conflict
	for {
		cycle := findCycle(nodeIDs, edges)
		if cycle == nil {
			break
		}
		weakest := weakestEdge(edges, cycle)
		if weakest == "" {
			break
		}
		conflicts = append(conflicts, Conflict{
			Kind:        ConflictCycle,
			EdgeID:      weakest,
			Description: "cyclic dependency broken by dropping lowest-weight edge",
		})
		edges = dropEdge(edges, weakest)
	}
	return edges, conflicts
}

// findCycle returns the edge ids forming one cycle among DEPENDENCY edges,
// or nil if the graph is acyclic. Uses plain DFS cycle detection.
func findCycle(nodeIDs map[string]bool, edges []domain.PlotEdge) []string {
	adj := make(map[string][]domain.PlotEdge)
	for _, e := range edges {
		if e.Type != domain.EdgeDependency || e.Disabled {
			continue
		}
		adj[e.FromNodeID] = append(adj[e.FromNodeID], e)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodeIDs))
	var path []string
	pathEdges := make(map[string]string) // node -> edge id used to reach it

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		path = append(path, node)
		for _, e := range adj[node] {
			switch color[e.ToNodeID] {
			case white:
				pathEdges[e.ToNodeID] = e.ID
				if cyc := dfs(e.ToNodeID); cyc != nil {
					return cyc
				}
			case gray:
				// found a back-edge closing a cycle; collect edge ids along path
				var cyc []string
				for i := len(path) - 1; i >= 0; i-- {
					if id, ok := pathEdges[path[i]]; ok {
						cyc = append(cyc, id)
					}
					if path[i] == e.ToNodeID {
						break
					}
				}
				cyc = append(cyc, e.ID)
				return cyc
			}
		}
		path = path[:len(path)-1]
		color[node] = black
		return nil
	}

	for id := range nodeIDs {
		if color[id] == white {
			if cyc := dfs(id); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}

func weakestEdge(edges []domain.PlotEdge, edgeIDs []string) string {
	set := make(map[string]bool, len(edgeIDs))
	for _, id := range edgeIDs {
		set[id] = true
	}
	var weakestID string
	weakestWeight := -1.0
	for _, e := range edges {
		if !set[e.ID] {
			continue
		}
		if weakestWeight < 0 || e.Weight < weakestWeight {
			weakestWeight = e.Weight
			weakestID = e.ID
		}
	}
	return weakestID
}

func dropEdge(edges []domain.PlotEdge, edgeID string) []domain.PlotEdge {
	out := make([]domain.PlotEdge, 0, len(edges))
	for _, e := range edges {
		if e.ID == edgeID {
			continue
		}
		out = append(out, e)
	}
	return out
}

// detectUnreachable flags accepted nodes with no path from any PENDING node
// — they are recorded as conflicts but retained.
func detectUnreachable(accepted []domain.PlotNode, edges []domain.PlotEdge, prevGraph domain.PlotGraph) []Conflict {
	reachable := make(map[string]bool)
	var queue []string
	for _, n := range prevGraph.Nodes {
		if n.Status == domain.PlotPending {
			reachable[n.ID] = true
			queue = append(queue, n.ID)
		}
	}
	for _, n := range accepted {
		if n.Status == domain.PlotPending {
			reachable[n.ID] = true
			queue = append(queue, n.ID)
		}
	}

	adj := make(map[string][]string)
	for _, e := range edges {
		if e.Disabled {
			continue
		}
		adj[e.FromNodeID] = append(adj[e.FromNodeID], e.ToNodeID)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	var conflicts []Conflict
	for _, n := range accepted {
		if !reachable[n.ID] {
			conflicts = append(conflicts, Conflict{
				Kind:        ConflictUnreachable,
				NodeID:      n.ID,
				Description: "no path from any PENDING node",
			})
		}
	}
	return conflicts
}

// classify derives a ConsensusType from the fraction of proposing agents
// whose nodes survived into the accepted set. The exact fraction
// boundaries are an Open Question resolution (see DESIGN.md): 100% survival
// is UNANIMOUS, >50% is MAJORITY, exactly 50% is SPLIT, anything lower
// (including zero proposing agents) is NO_CONSENSUS.
func classify(proposing, survived map[string]bool) ConsensusType {
	if len(proposing) == 0 {
		return NoConsensus
	}
	fraction := float64(len(survived)) / float64(len(proposing))
	switch {
	case fraction >= 1.0:
		return Unanimous
	case fraction > 0.5:
		return Majority
	case fraction == 0.5:
		return Split
	default:
		return NoConsensus
	}
}
