// Package app wires all narrative engine subsystems into a running
// application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, CreateGame starts a new save slot, ProcessTurn drives the
// per-turn pipeline, Run serves the HTTP API until the context is
// cancelled, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithMCPHost). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/narrativeforge/engine/internal/agents"
	"github.com/narrativeforge/engine/internal/config"
	"github.com/narrativeforge/engine/internal/consensus"
	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/internal/health"
	"github.com/narrativeforge/engine/internal/mcp"
	"github.com/narrativeforge/engine/internal/mcp/mcphost"
	"github.com/narrativeforge/engine/internal/mcp/tools/combat"
	"github.com/narrativeforge/engine/internal/mcp/tools/loot"
	toolmemory "github.com/narrativeforge/engine/internal/mcp/tools/memory"
	"github.com/narrativeforge/engine/internal/mcp/tools/ruleslookup"
	"github.com/narrativeforge/engine/internal/observe"
	"github.com/narrativeforge/engine/internal/orchestrator"
	"github.com/narrativeforge/engine/internal/persistence"
	"github.com/narrativeforge/engine/internal/planner"
	"github.com/narrativeforge/engine/internal/plotgraph"
	"github.com/narrativeforge/engine/pkg/llm"
	"github.com/narrativeforge/engine/pkg/provider/embeddings"
)

// perspectiveTypes fixes the four planning perspectives New instantiates.
var perspectiveTypes = []string{"character", "world", "conflict", "mystery"}

// errMissingPlayerName and errMissingInput are the validation errors
// returned by the HTTP API for empty required fields.
var (
	errMissingPlayerName = errors.New("app: playerName is required")
	errMissingInput      = errors.New("app: input is required")
	errEventLogDegraded  = errors.New("app: event log store is degraded")
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM        llm.Provider
	Embeddings embeddings.Provider
}

// Store is the slice of the persistence layer App depends on directly,
// beyond what it hands to the orchestrator and planner. Satisfied by
// *persistence.Store; tests may inject a fake via WithStore.
type Store interface {
	orchestrator.Store
	plotgraph.Store
	planner.Store
	toolmemory.EventSearcher
	CreateGame(ctx context.Context, game domain.Game, state domain.GameState) error
}

// App owns all subsystem lifetimes and orchestrates turn processing for
// every game the engine is serving.
type App struct {
	cfg       *config.Config
	providers *Providers

	store   Store
	mcpHost mcp.Host
	graphs  *plotgraph.Manager
	plan    *planner.Planner
	orch    *orchestrator.Orchestrator
	metrics *observe.Metrics
	health  *health.Handler

	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of creating one from config.
func WithStore(s Store) Option {
	return func(a *App) { a.store = s }
}

// WithMCPHost injects an MCP host instead of creating one from config.
func WithMCPHost(h mcp.Host) Option {
	return func(a *App) { a.mcpHost = h }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers
// struct comes from main.go (populated via the config registry). Use
// Option functions to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: persistence connection,
// MCP host registration + calibration, and agent/planner/orchestrator
// assembly.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		metrics:   observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	a.store = newGuardedStore(a.store)

	if err := a.initMCP(ctx); err != nil {
		return nil, fmt.Errorf("app: init mcp: %w", err)
	}

	a.graphs = plotgraph.NewManager(a.store)

	definer := agents.NewSystemDefiner(providers.LLM)
	perspectives := make(map[string]*agents.PerspectiveAgent, len(perspectiveTypes))
	for _, t := range perspectiveTypes {
		perspectives[t] = agents.NewPerspectiveAgent(t, providers.LLM)
	}
	a.plan = planner.New(a.store, a.graphs, definer, perspectives, cfg.Planner)

	npcGen := agents.NewNPCGenerator(providers.LLM)
	locGen := agents.NewLocationGenerator(providers.LLM)
	questGen := agents.NewQuestGenerator(providers.LLM)
	a.orch = orchestrator.New(a.store, a.graphs, a.plan, providers.LLM, npcGen, locGen, questGen, a.mcpHost)

	a.health = health.New(
		health.Checker{
			Name:  "mcp_host",
			Check: func(ctx context.Context) error { return nil },
		},
		health.Checker{
			Name: "event_log",
			Check: func(ctx context.Context) error {
				if gs, ok := a.store.(*guardedStore); ok && gs.IsDegraded() {
					return errEventLogDegraded
				}
				return nil
			},
		},
	)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore connects to PostgreSQL or uses an injected store.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Persistence.PostgresDSN
	if dsn == "" {
		return fmt.Errorf("persistence.postgres_dsn is required when no store is injected")
	}

	dims := a.cfg.Persistence.EmbeddingDimensions
	if dims == 0 {
		dims = 1536 // sensible default for OpenAI text-embedding-3-small
	}

	store, err := persistence.NewStore(ctx, dsn, dims)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// initMCP sets up the MCP host, registers the built-in dice/loot/rules/memory
// tools plus any externally configured servers, then calibrates.
func (a *App) initMCP(ctx context.Context) error {
	if a.mcpHost != nil {
		a.closers = append(a.closers, a.mcpHost.Close)
		return nil
	}

	host := mcphost.New()
	a.closers = append(a.closers, host.Close)

	for _, t := range combat.Tools() {
		if err := host.RegisterBuiltin(mcphost.BuiltinTool{
			Definition:  t.Definition,
			Handler:     t.Handler,
			DeclaredP50: 50,
			DeclaredMax: 200,
		}); err != nil {
			return fmt.Errorf("register builtin tool %q: %w", t.Definition.Name, err)
		}
	}
	for _, t := range loot.Tools() {
		if err := host.RegisterBuiltin(mcphost.BuiltinTool{
			Definition:  t.Definition,
			Handler:     t.Handler,
			DeclaredP50: 50,
			DeclaredMax: 200,
		}); err != nil {
			return fmt.Errorf("register builtin tool %q: %w", t.Definition.Name, err)
		}
	}
	for _, t := range ruleslookup.Tools() {
		if err := host.RegisterBuiltin(mcphost.BuiltinTool{
			Definition:  t.Definition,
			Handler:     t.Handler,
			DeclaredP50: 50,
			DeclaredMax: 200,
		}); err != nil {
			return fmt.Errorf("register builtin tool %q: %w", t.Definition.Name, err)
		}
	}
	for _, t := range toolmemory.NewTools(a.store) {
		if err := host.RegisterBuiltin(mcphost.BuiltinTool{
			Definition:  t.Definition,
			Handler:     t.Handler,
			DeclaredP50: 200,
			DeclaredMax: 1000,
		}); err != nil {
			return fmt.Errorf("register builtin tool %q: %w", t.Definition.Name, err)
		}
	}

	for _, srv := range a.cfg.MCP.Servers {
		serverCfg := mcp.ServerConfig{
			Name:      srv.Name,
			Transport: string(srv.Transport),
			Command:   srv.Command,
			URL:       srv.URL,
			Env:       srv.Env,
		}
		if err := host.RegisterServer(ctx, serverCfg); err != nil {
			return fmt.Errorf("register mcp server %q: %w", srv.Name, err)
		}
		slog.Info("registered MCP server", "name", srv.Name)
	}

	if err := host.Calibrate(ctx); err != nil {
		slog.Warn("MCP calibration failed, using declared latencies", "err", err)
	}

	a.mcpHost = host
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// MCPHost returns the MCP host.
func (a *App) MCPHost() mcp.Host { return a.mcpHost }

// Store returns the persistence layer.
func (a *App) Store() Store { return a.store }

// ─── Game lifecycle ──────────────────────────────────────────────────────────

// defaultStats is the baseline ability-score spread granted to every
// freshly created character, before any class selection.
var defaultStats = domain.Stats{STR: 10, DEX: 10, CON: 10, INT: 10, WIS: 10, CHA: 10}

// CreateGame starts a new save slot for playerName using the engine's
// configured defaults, runs the synchronous initial planning pass to seed
// the plot graph, and persists both. The returned Game is ready for its
// first ProcessTurn call.
func (a *App) CreateGame(ctx context.Context, gameID, playerName string) (domain.Game, error) {
	now := time.Now().Unix()
	game := domain.Game{
		GameID:     gameID,
		PlayerName: playerName,
		SystemType: domain.SystemType(a.cfg.GameDefaults.SystemType),
		Difficulty: domain.Difficulty(a.cfg.GameDefaults.Difficulty),
		Level:      1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	startLocation := domain.Location{
		ID:   a.cfg.GameDefaults.StartLocationID,
		Name: a.cfg.GameDefaults.StartLocationID,
	}
	sheet := domain.CharacterSheet{
		Level: 1,
		Base:  defaultStats,
		HP:    domain.Resource{Current: 20, Max: 20},
		Mana:  domain.Resource{Current: 10, Max: 10},
	}
	state := domain.NewGameState(gameID, playerName, game.SystemType, domain.WorldSettings{}, startLocation, sheet)

	if err := a.store.CreateGame(ctx, game, state); err != nil {
		return domain.Game{}, fmt.Errorf("app: create game: %w", err)
	}

	result, err := a.plan.Run(ctx, planner.ModeInitial, gameID, domain.PlotGraph{GameID: gameID}, domain.GradeFromLevel(1), 1,
		fmt.Sprintf("A new %s story for %s, difficulty %s.", game.SystemType, playerName, game.Difficulty),
		"The story has not yet begun.")
	if err != nil {
		return domain.Game{}, fmt.Errorf("app: initial planning run: %w", err)
	}
	a.orch.SetNextReplanLevel(gameID, result.NextReplanLevel)
	a.metrics.ActiveGames.Add(ctx, 1)

	return game, nil
}

// ProcessTurn runs one turn of gameID's pipeline for the given player input.
func (a *App) ProcessTurn(ctx context.Context, gameID, input string) (orchestrator.TurnResult, error) {
	return a.orch.ProcessTurn(ctx, gameID, input)
}

// ─── Planning session access ─────────────────────────────────────────────────

// PlanningSession is re-exported for callers that only need the consensus
// package's type without importing it directly.
type PlanningSession = consensus.PlanningSession

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the HTTP API (health checks plus turn processing) and blocks
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	a.health.Register(mux)
	a.registerGameRoutes(mux)

	srv := &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: observe.Middleware(a.metrics)(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("app listening", "addr", a.cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
