package app

import (
	"context"

	"github.com/narrativeforge/engine/internal/domain"
	toolmemory "github.com/narrativeforge/engine/internal/mcp/tools/memory"
	"github.com/narrativeforge/engine/internal/session"
)

// guardedStore wraps a Store so that event-log reads and writes degrade
// gracefully instead of failing a turn outright. Game/state/plot-graph
// persistence still propagates errors as-is: losing a save or a plot
// transition is not something a turn should silently paper over, but a
// flaky event log should never be the reason a turn fails.
type guardedStore struct {
	Store
	events *session.MemoryGuard
}

// newGuardedStore wraps store's event-log methods in a [session.MemoryGuard].
func newGuardedStore(store Store) *guardedStore {
	return &guardedStore{Store: store, events: session.NewMemoryGuard(store)}
}

func (g *guardedStore) LogEvent(ctx context.Context, gameID string, e domain.GameEvent) (domain.GameEvent, error) {
	return g.events.LogEvent(ctx, gameID, e)
}

func (g *guardedStore) RecentEvents(ctx context.Context, gameID string, limit int) ([]domain.GameEvent, error) {
	return g.events.RecentEvents(ctx, gameID, limit)
}

func (g *guardedStore) SearchEvents(ctx context.Context, gameID string, opts toolmemory.EventSearchOpts) ([]domain.GameEvent, error) {
	return g.events.SearchEvents(ctx, gameID, opts)
}

// IsDegraded reports whether the most recent event-log operation failed.
func (g *guardedStore) IsDegraded() bool {
	return g.events.IsDegraded()
}

var _ Store = (*guardedStore)(nil)
