// Package memory provides the built-in "memory.recall_events" MCP tool: a
// read-only window onto a game's event log, used by NPC dialogue and the
// narrator to recall what has already happened instead of re-inventing it.
//
// This consolidates the three-layer session/semantic/knowledge-graph
// memory tool set with a single tool backed directly by the persistence
// layer's event log, which is the one durable, searchable history this
// engine keeps.
//
// All handlers are safe for concurrent use.
package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/internal/mcp/tools"
	"github.com/narrativeforge/engine/pkg/types"
)

// EventSearcher is the read-only slice of the persistence layer that
// memory.recall_events depends on. Satisfied by *persistence.Store.
type EventSearcher interface {
	// RecentEvents returns the most recent events for gameID, newest first,
	// capped at limit.
	RecentEvents(ctx context.Context, gameID string, limit int) ([]domain.GameEvent, error)

	// SearchEvents returns events for gameID matching opts, newest first.
	SearchEvents(ctx context.Context, gameID string, opts EventSearchOpts) ([]domain.GameEvent, error)
}

// EventSearchOpts narrows an event search by free text and by the
// denormalised foreign-key columns the event log carries.
type EventSearchOpts struct {
	// Query is matched against each event's SearchText (case-insensitive
	// substring match at minimum; implementations may use full-text search).
	Query string

	// Category restricts results to a single event category. Empty matches
	// all categories.
	Category domain.EventCategory

	// NPCID, LocationID, and QuestID restrict results to events denormalised
	// against that entity. Empty matches all.
	NPCID, LocationID, QuestID string

	// Limit caps the number of results. Defaults to [defaultLimit] when ≤ 0.
	Limit int
}

const defaultLimit = 20

// recallEventsArgs is the JSON-decoded input for the "memory.recall_events" tool.
type recallEventsArgs struct {
	// GameID is the game whose event log is being queried.
	GameID string `json:"game_id"`

	// Query is an optional free-text search string. Empty returns the most
	// recent events instead of searching.
	Query string `json:"query,omitempty"`

	// Category optionally restricts results to one event category
	// (NARRATIVE, COMBAT, SYSTEM, DIALOGUE, EXPLORATION, SETUP, AI_CALL).
	Category string `json:"category,omitempty"`

	// NPCID, LocationID, and QuestID optionally restrict results to events
	// denormalised against that entity.
	NPCID      string `json:"npc_id,omitempty"`
	LocationID string `json:"location_id,omitempty"`
	QuestID    string `json:"quest_id,omitempty"`

	// Limit caps the number of results returned. Defaults to 20 when ≤ 0.
	Limit int `json:"limit,omitempty"`
}

// makeRecallEventsHandler returns a handler for the "memory.recall_events"
// tool bound to the given event searcher.
func makeRecallEventsHandler(events EventSearcher) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a recallEventsArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("memory: recall_events: failed to parse arguments: %w", err)
		}
		if a.GameID == "" {
			return "", fmt.Errorf("memory: recall_events: game_id must not be empty")
		}

		limit := a.Limit
		if limit <= 0 {
			limit = defaultLimit
		}

		var (
			results []domain.GameEvent
			err     error
		)
		if a.Query == "" && a.Category == "" && a.NPCID == "" && a.LocationID == "" && a.QuestID == "" {
			results, err = events.RecentEvents(ctx, a.GameID, limit)
		} else {
			results, err = events.SearchEvents(ctx, a.GameID, EventSearchOpts{
				Query:      a.Query,
				Category:   domain.EventCategory(a.Category),
				NPCID:      a.NPCID,
				LocationID: a.LocationID,
				QuestID:    a.QuestID,
				Limit:      limit,
			})
		}
		if err != nil {
			return "", fmt.Errorf("memory: recall_events: %w", err)
		}

		res, err := json.Marshal(results)
		if err != nil {
			return "", fmt.Errorf("memory: recall_events: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// NewTools constructs the memory tool set, wired to the persistence layer's
// event log via events.
func NewTools(events EventSearcher) []tools.Tool {
	return []tools.Tool{
		{
			Definition: types.ToolDefinition{
				Name:        "memory.recall_events",
				Description: "Recall past events from a game's event log, either the most recent ones or filtered by free-text query, category, or related NPC/location/quest. Use this before narrating or voicing an NPC to stay consistent with what has already happened.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"game_id": map[string]any{
							"type":        "string",
							"description": "The game whose event log to query.",
						},
						"query": map[string]any{
							"type":        "string",
							"description": "Free-text search across event text. Omit to return the most recent events instead.",
						},
						"category": map[string]any{
							"type":        "string",
							"description": "Restrict to one event category.",
							"enum":        []string{"NARRATIVE", "COMBAT", "SYSTEM", "DIALOGUE", "EXPLORATION", "SETUP", "AI_CALL"},
						},
						"npc_id":      map[string]any{"type": "string", "description": "Restrict to events involving this NPC."},
						"location_id": map[string]any{"type": "string", "description": "Restrict to events at this location."},
						"quest_id":    map[string]any{"type": "string", "description": "Restrict to events involving this quest."},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of events to return. Defaults to 20.",
							"minimum":     1,
							"maximum":     200,
						},
					},
					"required": []string{"game_id"},
				},
				EstimatedDurationMs: 60,
				MaxDurationMs:       250,
				Idempotent:          true,
				CacheableSeconds:    10,
			},
			SideEffect:  tools.StateRead,
			Handler:     makeRecallEventsHandler(events),
			DeclaredP50: 60,
			DeclaredMax: 250,
		},
	}
}
