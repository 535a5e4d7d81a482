package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/narrativeforge/engine/internal/agents"
	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/internal/plotgraph"
	"github.com/narrativeforge/engine/pkg/llm"
	"github.com/narrativeforge/engine/pkg/llm/mock"
)

// fakeStore is a minimal in-memory implementation of Store for exercising
// the full ProcessTurn pipeline without a real persistence layer.
type fakeStore struct {
	game   domain.Game
	state  domain.GameState
	events []domain.GameEvent
}

func (s *fakeStore) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	return s.game, nil
}

func (s *fakeStore) LoadState(ctx context.Context, gameID string) (domain.GameState, error) {
	return s.state, nil
}

func (s *fakeStore) SaveGame(ctx context.Context, state domain.GameState, playtimeSeconds int64) error {
	s.state = state
	s.game.PlaytimeSeconds = playtimeSeconds
	return nil
}

func (s *fakeStore) LogEvent(ctx context.Context, gameID string, e domain.GameEvent) (domain.GameEvent, error) {
	e.ID = int64(len(s.events) + 1)
	s.events = append(s.events, e)
	return e, nil
}

func (s *fakeStore) RecentEvents(ctx context.Context, gameID string, limit int) ([]domain.GameEvent, error) {
	if len(s.events) <= limit {
		return s.events, nil
	}
	return s.events[len(s.events)-limit:], nil
}

// fakePlotStore is a minimal in-memory implementation of plotgraph.Store.
type fakePlotStore struct {
	graph domain.PlotGraph
}

func (s *fakePlotStore) LoadPlotGraph(ctx context.Context, gameID string) (domain.PlotGraph, error) {
	return s.graph, nil
}

func (s *fakePlotStore) SavePlotGraph(ctx context.Context, g domain.PlotGraph) error {
	s.graph = g
	return nil
}

func (s *fakePlotStore) UpdateNodeStatus(ctx context.Context, gameID, nodeID string, status domain.PlotNodeStatus) error {
	node := s.graph.Nodes[nodeID]
	node.Status = status
	s.graph.Nodes[nodeID] = node
	return nil
}

func newTestOrchestrator() (*Orchestrator, *fakeStore) {
	store := &fakeStore{
		game: domain.Game{GameID: "g1", PlayerName: "Alex"},
		state: domain.GameState{
			GameID:          "g1",
			CurrentLocation: domain.Location{ID: "town", Name: "Town Square"},
			CharacterSheet:  domain.CharacterSheet{Level: 1, HP: domain.Resource{Current: 20, Max: 20}},
			NPCsByLocation:  map[string][]domain.NPC{},
			ActiveQuests:    map[string]domain.Quest{},
			CompletedQuests: map[string]struct{}{},
			CustomLocations: map[string]domain.Location{},
			DiscoveredTemplateLocations: map[string]struct{}{},
		},
	}
	graphs := plotgraph.NewManager(&fakePlotStore{graph: domain.PlotGraph{GameID: "g1", Version: 1, Nodes: map[string]domain.PlotNode{}, Edges: map[string]domain.PlotEdge{}}})

	provider := &mock.Provider{StreamChunks: []llm.Chunk{{Text: "The town square hums with quiet life.", FinishReason: "stop"}}}

	o := &Orchestrator{
		store:      store,
		graphs:     graphs,
		intent:     agents.NewIntentAnalyzer(provider),
		narrator:   agents.NewNarrator(provider),
		host:       newStubHost(),
		catalog:    newBuiltinCatalog(),
		locks:      make(map[string]*sync.Mutex),
		nextReplan: make(map[string]int),
	}
	return o, store
}

func TestProcessTurn_ExplorationTurnCommitsNarrationEvent(t *testing.T) {
	o, store := newTestOrchestrator()

	result, err := o.ProcessTurn(context.Background(), "g1", "I look around the square")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text == "" {
		t.Fatal("expected the narrator's text to be populated")
	}
	if len(result.Events) == 0 || result.Events[0].Type != domain.EventNarratorText {
		t.Fatalf("events = %+v, want a leading NARRATOR_TEXT event", result.Events)
	}
	if len(store.events) == 0 {
		t.Fatal("expected the commit step to log at least one event")
	}
	if store.game.PlaytimeSeconds != turnPlaytimeSeconds {
		t.Errorf("playtime = %d, want %d", store.game.PlaytimeSeconds, turnPlaytimeSeconds)
	}

	var drained int
	for range result.Chunks {
		drained++
	}
	if drained == 0 {
		t.Error("expected at least one narrator chunk to have been drained onto TurnResult.Chunks")
	}
}

func TestProcessTurn_CombatTurnAppliesDamageAndLogsCombat(t *testing.T) {
	o, store := newTestOrchestrator()

	result, err := o.ProcessTurn(context.Background(), "g1", "I attack the bandit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawCombatLog bool
	for _, e := range result.Events {
		if e.Type == domain.EventCombatLog {
			sawCombatLog = true
		}
	}
	if !sawCombatLog {
		t.Fatalf("events = %+v, want a COMBAT_LOG event from the attack", result.Events)
	}
	if store.state.CharacterSheet.XP == 0 {
		t.Error("expected combat to award the character XP")
	}
}

func TestProcessTurn_InvalidActionLogsNotificationWithoutDispatch(t *testing.T) {
	o, store := newTestOrchestrator()
	store.state.CharacterSheet.HP.Current = 0 // dead

	result, err := o.ProcessTurn(context.Background(), "g1", "I attack the bandit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Events) != 1 || result.Events[0].Type != domain.EventSystemNotification {
		t.Fatalf("events = %+v, want exactly one SYSTEM_NOTIFICATION", result.Events)
	}
	if len(store.events) != 1 {
		t.Fatalf("expected only the validation notice to be logged, got %d events", len(store.events))
	}
}

func TestProcessTurn_SerialisesTurnsPerGame(t *testing.T) {
	o, _ := newTestOrchestrator()

	unlock := o.lockGame("g1")
	done := make(chan struct{})
	go func() {
		o.ProcessTurn(context.Background(), "g1", "I wait quietly")
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected ProcessTurn to block while the game's turn lock is held")
	default:
	}
	unlock()
	<-done
}
