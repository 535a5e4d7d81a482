// Package orchestrator runs one turn of play end to end: classify the
// player's input, validate it against the frozen state snapshot, dispatch
// it to the handler for its intent, check whether the dispatch unlocked any
// plot-graph triggers, narrate the result, and commit the new state and
// event log atomically.
//
// Per-game serialisation is grounded on [agent/orchestrator.Orchestrator] in
// the reference NPC-routing engine this package's architecture descends
// from: a mutex-protected map keyed by id, with functional Option
// construction. That Orchestrator snapshots shared state, mutates it under
// lock, then releases the lock before any LLM call. This package keeps the
// per-id lock (keyed by game id, not NPC id) held for the full turn instead,
// because a turn's steps are not independent reads — dispatch must see the
// exact snapshot classify/validate ran against, and commit must persist the
// exact state dispatch produced, so no other turn for the same game may
// interleave.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/narrativeforge/engine/internal/agents"
	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/internal/mcp"
	"github.com/narrativeforge/engine/internal/observe"
	"github.com/narrativeforge/engine/internal/planner"
	"github.com/narrativeforge/engine/internal/plotgraph"
	"github.com/narrativeforge/engine/internal/skills"
	"github.com/narrativeforge/engine/pkg/llm"
)

// narratorChunkBacklog is the minimum capacity of the buffered channel a
// turn's narrator chunks are drained into before being handed back on
// [TurnResult.Chunks]; it bounds how far the orchestrator can run ahead of a
// UI consumer that has stopped reading.
const narratorChunkBacklog = 256

// Store is the slice of the persistence layer the orchestrator depends on.
// Satisfied by *persistence.Store.
type Store interface {
	GetGame(ctx context.Context, gameID string) (domain.Game, error)
	LoadState(ctx context.Context, gameID string) (domain.GameState, error)
	SaveGame(ctx context.Context, state domain.GameState, playtimeSeconds int64) error
	LogEvent(ctx context.Context, gameID string, e domain.GameEvent) (domain.GameEvent, error)
	RecentEvents(ctx context.Context, gameID string, limit int) ([]domain.GameEvent, error)
}

// recentEventsForContext bounds how many recent events are fetched for
// intent classification and narration context each turn.
const recentEventsForContext = 10

// Orchestrator drives the per-turn pipeline for every game. One Orchestrator
// serves all games; turns for different games run concurrently, turns for
// the same game never do.
type Orchestrator struct {
	store    Store
	graphs   *plotgraph.Manager
	plan     *planner.Planner
	intent   *agents.IntentAnalyzer
	narrator *agents.Narrator
	npcGen   *agents.NPCGenerator
	locGen   *agents.LocationGenerator
	questGen *agents.QuestGenerator
	host     mcp.Host
	catalog  *builtinCatalog

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // gameID -> turn lock

	replanMu   sync.Mutex
	nextReplan map[string]int // gameID -> player level that triggers the next planner run
}

// New constructs an Orchestrator. llmProvider backs the intent analyzer and
// narrator sessions directly; npcGen/locGen/questGen/plan/graphs/host are
// wired by the caller so this package never constructs its own provider
// clients or MCP connections.
func New(store Store, graphs *plotgraph.Manager, plan *planner.Planner, llmProvider llm.Provider, npcGen *agents.NPCGenerator, locGen *agents.LocationGenerator, questGen *agents.QuestGenerator, host mcp.Host) *Orchestrator {
	return &Orchestrator{
		store:      store,
		graphs:     graphs,
		plan:       plan,
		intent:     agents.NewIntentAnalyzer(llmProvider),
		narrator:   agents.NewNarrator(llmProvider),
		npcGen:     npcGen,
		locGen:     locGen,
		questGen:   questGen,
		host:       host,
		catalog:    newBuiltinCatalog(),
		locks:      make(map[string]*sync.Mutex),
		nextReplan: make(map[string]int),
	}
}

// SetNextReplanLevel records the player level that should trigger the next
// periodic planner run for gameID. Called by the game-creation flow once the
// initial synchronous planning run completes.
func (o *Orchestrator) SetNextReplanLevel(gameID string, level int) {
	o.replanMu.Lock()
	defer o.replanMu.Unlock()
	o.nextReplan[gameID] = level
}

// lockGame returns the unlock function for gameID's turn lock, blocking
// until it is acquired. Lazily creates the per-game mutex on first use; the
// map itself is guarded by locksMu, a distinct, short-held lock so acquiring
// one game's turn lock never blocks another game's.
func (o *Orchestrator) lockGame(gameID string) func() {
	o.locksMu.Lock()
	l, ok := o.locks[gameID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[gameID] = l
	}
	o.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

// callTool invokes a named MCP tool and returns its content, translating an
// application-level error result into a Go error alongside transport
// failures so callers have one error path.
func (o *Orchestrator) callTool(ctx context.Context, name, argsJSON string) (string, error) {
	m := observe.DefaultMetrics()
	started := time.Now()
	res, err := o.host.ExecuteTool(ctx, name, argsJSON)
	m.ToolExecutionDuration.Record(ctx, time.Since(started).Seconds())

	if err != nil {
		m.RecordToolCall(ctx, name, "error")
		return "", fmt.Errorf("orchestrator: execute tool %s: %w", name, err)
	}
	if res.IsError {
		m.RecordToolCall(ctx, name, "error")
		return "", fmt.Errorf("orchestrator: tool %s: %s", name, res.Content)
	}
	m.RecordToolCall(ctx, name, "ok")
	return res.Content, nil
}

// TurnResult is what ProcessTurn returns: the narrated text plus the
// channel it was streamed through, and the committed events.
type TurnResult struct {
	// Text is the narrator's full final text for the turn.
	Text string

	// Chunks carries the narrator's incremental output, already fully
	// populated and closed by the time ProcessTurn returns. A caller that
	// wants a true live stream should read from a [llm.Chunk] channel handed
	// to the narrator session directly; this field exists so a UI consumer
	// can still replay the turn incrementally instead of all at once.
	Chunks <-chan llm.Chunk

	// Events lists every GameEvent committed this turn, in commit order.
	Events []domain.GameEvent

	// PlotGraphVersion is the plot-graph version read at the start of this
	// turn (trigger evaluation runs against exactly this version).
	PlotGraphVersion int
}

// ProcessTurn runs the full nine-step turn pipeline for one player input:
// ingest a frozen snapshot, classify intent, validate it, dispatch to the
// matching handler, track insight, check plot triggers, narrate, commit, and
// advance playtime. At most one call for a given gameID runs at a time;
// concurrent calls for different games proceed independently.
func (o *Orchestrator) ProcessTurn(ctx context.Context, gameID, playerInput string) (TurnResult, error) {
	started := time.Now()
	defer func() {
		observe.DefaultMetrics().TurnDuration.Record(ctx, time.Since(started).Seconds())
	}()

	unlock := o.lockGame(gameID)
	defer unlock()

	// 1. Ingest: freeze the snapshot this whole turn reasons about.
	game, err := o.store.GetGame(ctx, gameID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: load game: %w", err)
	}
	s0, err := o.store.LoadState(ctx, gameID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: load state: %w", err)
	}
	graph, err := o.graphs.Load(ctx, gameID)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: load plot graph: %w", err)
	}
	recent, err := o.store.RecentEvents(ctx, gameID, recentEventsForContext)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: load recent events: %w", err)
	}

	// 2. Classify.
	classified := o.intent.Classify(ctx, playerInput, recent)

	// 3. Validate.
	if err := validateAction(classified, s0); err != nil {
		notice := domain.GameEvent{
			GameID: gameID, Type: domain.EventSystemNotification,
			Category: domain.CategorySystem, Importance: domain.ImportanceNormal,
			SearchText: err.Error(),
		}
		if _, logErr := o.store.LogEvent(ctx, gameID, notice); logErr != nil {
			return TurnResult{}, fmt.Errorf("orchestrator: log validation notice: %w", logErr)
		}
		return TurnResult{Events: []domain.GameEvent{notice}, PlotGraphVersion: graph.Version}, nil
	}

	// 4. Dispatch.
	outcome, err := o.dispatch(ctx, gameID, classified, playerInput, s0)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: dispatch %s: %w", classified.Intent, err)
	}
	state := outcome.state

	// 5. Track actions for insight, regardless of intent. The player's verb
	// choice, not the classified intent, is what the insight system learns
	// from (a COMBAT turn might be a "slash" or a "cast").
	actionCtx := skills.ActionContext{
		EquippedWeaponType: equippedWeaponType(state.CharacterSheet),
		LocationTags:       state.CurrentLocation.Tags,
		InCombat:           classified.Intent == agents.IntentCombat,
	}
	owned := skills.OwnedSkillIDs(state.CharacterSheet)
	for _, actionType := range skills.Classify(playerInput, actionCtx) {
		var signals []skills.InsightSignal
		state.CharacterSheet.Insight, signals = skills.ApplyAction(state.CharacterSheet.Insight, owned, actionType, o.catalog)
		for _, sig := range signals {
			if sig.Kind != skills.SignalFullUnlock {
				continue
			}
			state.CharacterSheet = skills.GrantSkill(state.CharacterSheet, sig.Skill)
			owned[sig.SkillID] = struct{}{}
			outcome.events = append(outcome.events, domain.GameEvent{
				GameID: gameID, Type: domain.EventLearnedFromInsight, Category: domain.CategorySystem,
				Importance: domain.ImportanceHigh, SearchText: fmt.Sprintf("learned %s from repeated action", sig.SkillID),
			})
		}
	}

	// 6. Check plot triggers against the turn's frozen graph version.
	triggers, err := o.graphs.EvaluateTriggers(ctx, gameID, graph, state.CharacterSheet.Level)
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: evaluate plot triggers: %w", err)
	}

	// 7. Narrate.
	resp, err := o.narrator.Narrate(ctx, agents.NarrationRequest{
		StateSummary:  summarizeState(state),
		PlayerInput:   playerInput,
		Intent:        classified.Intent,
		ToolResults:   outcome.toolResults,
		Foreshadowing: triggers.ForeshadowingHints,
		RecentEvents:  recent,
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: narrate: %w", err)
	}
	chunks := make(chan llm.Chunk, narratorChunkBacklog)
	for chunk := range resp.Chunks {
		chunks <- chunk
	}
	close(chunks)
	if err := resp.Err(); err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: narration stream: %w", err)
	}

	if outcome.dialogueNPCID != "" {
		state = appendNPCReply(state, outcome.dialogueNPCID, gameID, resp.Text)
		observe.DefaultMetrics().RecordNPCDialogueTurn(ctx, outcome.dialogueNPCID)
	}

	// 8. Commit: persist the event batch and the new state transactionally.
	narratorEvent := domain.GameEvent{
		GameID: gameID, Type: domain.EventNarratorText, Category: domain.CategoryNarrative,
		Importance: domain.ImportanceNormal, SearchText: resp.Text,
	}
	committed := append([]domain.GameEvent{narratorEvent}, outcome.events...)
	for i, e := range committed {
		e.GameID = gameID
		logged, err := o.store.LogEvent(ctx, gameID, e)
		if err != nil {
			return TurnResult{}, fmt.Errorf("orchestrator: log event: %w", err)
		}
		committed[i] = logged
	}
	if err := o.store.SaveGame(ctx, state, game.PlaytimeSeconds+turnPlaytimeSeconds); err != nil {
		return TurnResult{}, fmt.Errorf("orchestrator: save game: %w", err)
	}

	// 9. Advance playtime and schedule a background planner run if the
	// player has crossed the recorded replan threshold.
	o.maybeScheduleReplan(gameID, state.CharacterSheet.Level, graph)

	return TurnResult{
		Text:             resp.Text,
		Chunks:           chunks,
		Events:           committed,
		PlotGraphVersion: graph.Version,
	}, nil
}

// turnPlaytimeSeconds is the fixed playtime cost attributed to one turn. A
// real session-duration clock is wall-clock state the orchestrator does not
// otherwise track; a flat per-turn cost keeps Game.PlaytimeSeconds moving
// forward without one.
const turnPlaytimeSeconds = 30

// equippedWeaponType derives the compound-token weapon type skills.Classify
// combines with a recognised verb (e.g. the equipped item id "sword" plus
// verb "slash" yields "sword_slash"). Returns "" when nothing is equipped.
func equippedWeaponType(sheet domain.CharacterSheet) string {
	if sheet.Equipment.Weapon == nil {
		return ""
	}
	return sheet.Equipment.Weapon.ID
}

// appendNPCReply appends the narrator's reply as the NPC's conversation turn
// once its final text is known, completing the exchange dispatchDialogue
// started by recording only the player's side.
func appendNPCReply(s domain.GameState, npcID, gameID, text string) domain.GameState {
	npcs := s.NPCsByLocation[s.CurrentLocation.ID]
	for _, n := range npcs {
		if n.ID != npcID {
			continue
		}
		updated := domain.AppendConversation(n, domain.ConversationTurn{GameID: gameID, Speaker: n.ID, Text: text})
		return placeNPC(s, updated)
	}
	return s
}

// maybeScheduleReplan triggers a periodic planner run, in the background, if
// playerLevel has reached or passed the recorded next-replan threshold for
// gameID. A missing threshold (no initial run recorded yet) is treated as
// "not due" rather than "always due".
func (o *Orchestrator) maybeScheduleReplan(gameID string, playerLevel int, graph domain.PlotGraph) {
	o.replanMu.Lock()
	threshold, ok := o.nextReplan[gameID]
	o.replanMu.Unlock()
	if !ok || playerLevel < threshold {
		return
	}

	go func() {
		grade := domain.GradeFromLevel(playerLevel)
		result, err := o.plan.Run(context.Background(), planner.ModePeriodic, gameID, graph, grade, playerLevel, "", summarizeGraphForPlanner(graph))
		if err != nil {
			return
		}
		o.SetNextReplanLevel(gameID, result.NextReplanLevel)
	}()
}

// summarizeGraphForPlanner renders a compact textual summary of the current
// plot threads for inclusion in a periodic planning run's prompt context.
func summarizeGraphForPlanner(g domain.PlotGraph) string {
	threads := plotgraph.ProjectThreads(g)
	if len(threads) == 0 {
		return "No active plot threads yet."
	}
	out := ""
	for _, t := range threads {
		out += fmt.Sprintf("Thread %s (%s, %s): %d beats\n", t.ThreadID, t.Category, t.Status, len(t.Beats))
	}
	return out
}
