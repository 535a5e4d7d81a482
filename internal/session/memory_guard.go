package session

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/narrativeforge/engine/internal/domain"
	toolmemory "github.com/narrativeforge/engine/internal/mcp/tools/memory"
)

// EventStore is the slice of the persistence layer that [MemoryGuard] wraps.
// Satisfied by *persistence.Store.
type EventStore interface {
	LogEvent(ctx context.Context, gameID string, e domain.GameEvent) (domain.GameEvent, error)
	RecentEvents(ctx context.Context, gameID string, limit int) ([]domain.GameEvent, error)
	SearchEvents(ctx context.Context, gameID string, opts toolmemory.EventSearchOpts) ([]domain.GameEvent, error)
}

// MemoryGuard wraps an [EventStore] and makes all operations non-fatal. If
// the underlying store fails, operations return defaults and log warnings
// instead of propagating errors.
//
// This allows the orchestrator to keep processing turns even when the
// database backing the event log is temporarily unavailable (e.g. database
// restart, network partition). IsDegraded reports whether the store is
// currently experiencing failures.
//
// MemoryGuard implements [EventStore].
//
// All methods are safe for concurrent use.
type MemoryGuard struct {
	store    EventStore
	degraded atomic.Bool
}

// NewMemoryGuard creates a new [MemoryGuard] wrapping the given store.
func NewMemoryGuard(store EventStore) *MemoryGuard {
	return &MemoryGuard{store: store}
}

// LogEvent attempts to append e to gameID's event log. On failure the error
// is logged and swallowed; the store is marked as degraded.
func (mg *MemoryGuard) LogEvent(ctx context.Context, gameID string, e domain.GameEvent) (domain.GameEvent, error) {
	logged, err := mg.store.LogEvent(ctx, gameID, e)
	if err != nil {
		mg.degraded.Store(true)
		slog.Warn("memory guard: LogEvent failed, swallowing error",
			"game_id", gameID,
			"error", err,
		)
		return e, nil
	}
	mg.degraded.Store(false)
	return logged, nil
}

// RecentEvents attempts to read recent events from the underlying store.
// On failure an empty slice is returned and the store is marked as degraded.
func (mg *MemoryGuard) RecentEvents(ctx context.Context, gameID string, limit int) ([]domain.GameEvent, error) {
	events, err := mg.store.RecentEvents(ctx, gameID, limit)
	if err != nil {
		mg.degraded.Store(true)
		slog.Warn("memory guard: RecentEvents failed, returning empty",
			"game_id", gameID,
			"limit", limit,
			"error", err,
		)
		return []domain.GameEvent{}, nil
	}
	mg.degraded.Store(false)
	return events, nil
}

// SearchEvents attempts a search over the event log. On failure an empty
// slice is returned and the store is marked as degraded.
func (mg *MemoryGuard) SearchEvents(ctx context.Context, gameID string, opts toolmemory.EventSearchOpts) ([]domain.GameEvent, error) {
	events, err := mg.store.SearchEvents(ctx, gameID, opts)
	if err != nil {
		mg.degraded.Store(true)
		slog.Warn("memory guard: SearchEvents failed, returning empty",
			"game_id", gameID,
			"query", opts.Query,
			"error", err,
		)
		return []domain.GameEvent{}, nil
	}
	mg.degraded.Store(false)
	return events, nil
}

// IsDegraded reports whether the store is currently operating in degraded
// mode (i.e. the most recent operation on the underlying store failed).
func (mg *MemoryGuard) IsDegraded() bool {
	return mg.degraded.Load()
}

// Compile-time check that MemoryGuard satisfies EventStore.
var _ EventStore = (*MemoryGuard)(nil)
