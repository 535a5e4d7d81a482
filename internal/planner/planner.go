// Package planner runs the planning pipeline that keeps a game's plot graph
// ahead of the player: refresh the system definition, fan the four
// perspective agents out in parallel, merge their proposals via
// [consensus.Merge], and persist the result as a new plot-graph version and
// [consensus.PlanningSession].
//
// Planner runs in two modes: initial (synchronous, at game creation) and
// periodic (asynchronous, triggered when the player crosses a level
// threshold). A newer periodic run for the same game supersedes an
// in-flight one; the superseded run's partial results are discarded without
// a persistence call.
package planner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/narrativeforge/engine/internal/agents"
	"github.com/narrativeforge/engine/internal/config"
	"github.com/narrativeforge/engine/internal/consensus"
	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/internal/observe"
	"github.com/narrativeforge/engine/internal/plotgraph"
)

// perspectiveOrder fixes the four planning perspectives' iteration order;
// the agents themselves are looked up by these keys in [consensus.AgentPriority].
var perspectiveOrder = []string{"character", "world", "conflict", "mystery"}

// Store is the slice of the persistence layer the planner depends on.
// Satisfied by *persistence.Store.
type Store interface {
	SavePlanningSession(ctx context.Context, session consensus.PlanningSession) error
}

// Planner runs planning sessions for games.
type Planner struct {
	store      Store
	graphs     *plotgraph.Manager
	definer    *agents.SystemDefiner
	perspectives map[string]*agents.PerspectiveAgent
	cfg        config.PlannerConfig

	mu         sync.Mutex
	inFlight   map[string]context.CancelFunc // gameID -> cancel of the current run
	invocation map[string]int64              // gameID -> monotonically increasing invocation counter
}

// New creates a Planner. perspectives must contain an entry for each of
// "character", "world", "conflict", "mystery".
func New(store Store, graphs *plotgraph.Manager, definer *agents.SystemDefiner, perspectives map[string]*agents.PerspectiveAgent, cfg config.PlannerConfig) *Planner {
	return &Planner{
		store:        store,
		graphs:       graphs,
		definer:      definer,
		perspectives: perspectives,
		cfg:          cfg,
		inFlight:     make(map[string]context.CancelFunc),
		invocation:   make(map[string]int64),
	}
}

// Mode distinguishes the synchronous initial planning run from later
// periodic ones.
type Mode string

const (
	ModeInitial  Mode = "initial"
	ModePeriodic Mode = "periodic"
)

// Result is the outcome of one planning run.
type Result struct {
	PlotGraph       domain.PlotGraph
	NextReplanLevel int
	Session         consensus.PlanningSession
}

// Run executes one planning pass for gameID: refresh the system definition,
// fan the four perspective agents out in parallel with a per-agent timeout,
// merge their proposals, and persist the new plot-graph version and
// planning session. A new Run call for the same gameID cancels any
// in-flight run for that game; the superseded run's partial results are
// discarded without a persistence call.
func (p *Planner) Run(ctx context.Context, mode Mode, gameID string, prevGraph domain.PlotGraph, grade domain.Grade, playerLevel int, definitionBrief, stateSnapshot string) (Result, error) {
	runCtx, cancel := p.beginRun(gameID)
	defer p.endRun(gameID, cancel)

	runStart := time.Now()
	startedAt := runStart.UnixNano()
	defer func() {
		observe.DefaultMetrics().PlanningDuration.Record(ctx, time.Since(runStart).Seconds())
	}()

	def, err := p.definer.Define(runCtx, definitionBrief)
	if err != nil {
		return Result{}, fmt.Errorf("planner: define system: %w", err)
	}
	defJSON := fmt.Sprintf("%s: %s (mystery: %s, threat: %s)", def.Name, def.Personality, def.CentralMystery, def.Threat)

	proposals := p.collectProposals(runCtx, gameID, defJSON, stateSnapshot)
	if runCtx.Err() != nil {
		return Result{}, fmt.Errorf("planner: superseded: %w", runCtx.Err())
	}

	result := consensus.Merge(proposals, prevGraph)

	newGraph, err := p.graphs.ApplyConsensus(ctx, gameID, prevGraph, result)
	if err != nil {
		return Result{}, fmt.Errorf("planner: apply consensus: %w", err)
	}

	session := consensus.PlanningSession{
		ID:               fmt.Sprintf("plan-%s-%d", gameID, startedAt),
		GameID:           gameID,
		PlotGraphVersion: newGraph.Version,
		SystemDefinition: defJSON,
		Proposals:        proposals,
		Result:           result,
		StartedAt:        startedAt,
		CompletedAt:      time.Now().UnixNano(),
	}
	if err := p.store.SavePlanningSession(ctx, session); err != nil {
		return Result{}, fmt.Errorf("planner: save planning session: %w", err)
	}

	return Result{
		PlotGraph:       newGraph,
		NextReplanLevel: playerLevel + p.cfg.ReplanStride(gradeLetter(grade)),
		Session:         session,
	}, nil
}

// collectProposals dispatches the four perspective agents in parallel, each
// bounded by the configured per-agent timeout. An agent that errors or
// times out contributes nothing; the planner degrades gracefully rather
// than failing the whole run.
func (p *Planner) collectProposals(ctx context.Context, gameID, systemDefinition, stateSnapshot string) []consensus.AgentProposal {
	timeout := time.Duration(p.cfg.PerspectiveAgentTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	proposals := make([]consensus.AgentProposal, len(perspectiveOrder))
	g, gctx := errgroup.WithContext(ctx)

	for i, agentType := range perspectiveOrder {
		i, agentType := i, agentType
		agent, ok := p.perspectives[agentType]
		if !ok {
			continue
		}
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()
			proposals[i] = agent.Propose(callCtx, fmt.Sprintf("%s-%s", gameID, agentType), stateSnapshot, systemDefinition)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]consensus.AgentProposal, 0, len(proposals))
	for _, pr := range proposals {
		if len(pr.ProposedNodes) > 0 {
			out = append(out, pr)
		}
	}
	return out
}

// beginRun registers a new in-flight run for gameID, cancelling any
// previous one (supersession).
func (p *Planner) beginRun(gameID string) (context.Context, context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prevCancel, ok := p.inFlight[gameID]; ok {
		prevCancel()
	}
	p.invocation[gameID]++

	ctx, cancel := context.WithCancel(context.Background())
	p.inFlight[gameID] = cancel
	return ctx, cancel
}

// endRun clears the in-flight entry for gameID if it still belongs to this
// run (it may already have been replaced by a newer, superseding run).
func (p *Planner) endRun(gameID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cancel()
	delete(p.inFlight, gameID)
}

// gradeLetter maps a domain.Grade ("E_GRADE", ...) to the single-letter key
// config.PlannerConfig.ReplanStride expects ("E", ...).
func gradeLetter(g domain.Grade) string {
	return strings.TrimSuffix(string(g), "_GRADE")
}
