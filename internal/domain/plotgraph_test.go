package domain

import "testing"

func TestEligibleToTrigger_NoPredecessors(t *testing.T) {
	g := PlotGraph{
		Nodes: map[string]PlotNode{
			"n1": {ID: "n1", Status: PlotPending, Beat: Beat{TriggerLevel: 2}},
		},
		Edges: map[string]PlotEdge{},
	}
	if !EligibleToTrigger(g, g.Nodes["n1"], 2) {
		t.Error("expected node with no predecessors to be eligible at its trigger level")
	}
	if EligibleToTrigger(g, g.Nodes["n1"], 1) {
		t.Error("expected node to be ineligible below its trigger level")
	}
}

func TestEligibleToTrigger_RequiresCompletedPredecessors(t *testing.T) {
	g := PlotGraph{
		Nodes: map[string]PlotNode{
			"n1": {ID: "n1", Status: PlotPending},
			"n2": {ID: "n2", Status: PlotPending},
		},
		Edges: map[string]PlotEdge{
			"e1": {ID: "e1", FromNodeID: "n1", ToNodeID: "n2", Type: EdgeDependency},
		},
	}
	if EligibleToTrigger(g, g.Nodes["n2"], 100) {
		t.Error("n2 should not be eligible while its dependency n1 is still pending")
	}
	g.Nodes["n1"] = PlotNode{ID: "n1", Status: PlotCompleted}
	if !EligibleToTrigger(g, g.Nodes["n2"], 100) {
		t.Error("n2 should be eligible once n1 is completed")
	}
}

func TestEligibleToTrigger_IgnoresDisabledEdges(t *testing.T) {
	g := PlotGraph{
		Nodes: map[string]PlotNode{
			"n1": {ID: "n1", Status: PlotPending},
			"n2": {ID: "n2", Status: PlotPending},
		},
		Edges: map[string]PlotEdge{
			"e1": {ID: "e1", FromNodeID: "n1", ToNodeID: "n2", Type: EdgeDependency, Disabled: true},
		},
	}
	if !EligibleToTrigger(g, g.Nodes["n2"], 100) {
		t.Error("n2 should be eligible since its only dependency edge is disabled")
	}
}

func TestEligibleToTrigger_OnlyFromPending(t *testing.T) {
	g := PlotGraph{Nodes: map[string]PlotNode{}, Edges: map[string]PlotEdge{}}
	triggered := PlotNode{ID: "n1", Status: PlotTriggered, Beat: Beat{TriggerLevel: 1}}
	if EligibleToTrigger(g, triggered, 100) {
		t.Error("a non-PENDING node should never be eligible to trigger")
	}
}

func TestWithNodeStatus_UpdatesOnlyTargetNode(t *testing.T) {
	g := PlotGraph{
		Nodes: map[string]PlotNode{
			"n1": {ID: "n1", Status: PlotPending},
			"n2": {ID: "n2", Status: PlotPending},
		},
		Edges: map[string]PlotEdge{},
	}
	next := WithNodeStatus(g, "n1", PlotTriggered)
	if next.Nodes["n1"].Status != PlotTriggered {
		t.Errorf("n1 status = %v, want TRIGGERED", next.Nodes["n1"].Status)
	}
	if next.Nodes["n2"].Status != PlotPending {
		t.Errorf("n2 status = %v, want PENDING (unaffected)", next.Nodes["n2"].Status)
	}
	if g.Nodes["n1"].Status != PlotPending {
		t.Error("original graph must remain unmutated")
	}
}
