package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Game + GameState DDL
// ─────────────────────────────────────────────────────────────────────────────

const ddlGames = `
CREATE TABLE IF NOT EXISTS games (
    game_id          TEXT         PRIMARY KEY,
    player_name      TEXT         NOT NULL,
    system_type      TEXT         NOT NULL,
    difficulty       TEXT         NOT NULL,
    level            INT          NOT NULL DEFAULT 1,
    playtime_seconds BIGINT       NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS game_states (
    game_id    TEXT  PRIMARY KEY REFERENCES games (game_id) ON DELETE CASCADE,
    state_blob JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// ─────────────────────────────────────────────────────────────────────────────
// Event log — denormalised for indexed lookup + full-text search
// ─────────────────────────────────────────────────────────────────────────────

const ddlGameEvents = `
CREATE TABLE IF NOT EXISTS game_events (
    id          BIGSERIAL   PRIMARY KEY,
    game_id     TEXT        NOT NULL REFERENCES games (game_id) ON DELETE CASCADE,
    event_type  TEXT        NOT NULL,
    category    TEXT        NOT NULL,
    importance  TEXT        NOT NULL,
    search_text TEXT        NOT NULL,
    npc_id      TEXT        NOT NULL DEFAULT '',
    location_id TEXT        NOT NULL DEFAULT '',
    quest_id    TEXT        NOT NULL DEFAULT '',
    item_id     TEXT        NOT NULL DEFAULT '',
    timestamp   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_game_events_game_ts
    ON game_events (game_id, timestamp);

CREATE INDEX IF NOT EXISTS idx_game_events_category
    ON game_events (game_id, category);

CREATE INDEX IF NOT EXISTS idx_game_events_npc
    ON game_events (game_id, npc_id) WHERE npc_id <> '';

CREATE INDEX IF NOT EXISTS idx_game_events_location
    ON game_events (game_id, location_id) WHERE location_id <> '';

CREATE INDEX IF NOT EXISTS idx_game_events_quest
    ON game_events (game_id, quest_id) WHERE quest_id <> '';

CREATE INDEX IF NOT EXISTS idx_game_events_fts
    ON game_events USING GIN (to_tsvector('english', search_text));
`

// ddlSemanticEvents returns the pgvector-backed semantic index over event
// text, keyed by event id, with the embedding dimension baked into the
// column type.
func ddlSemanticEvents(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS game_event_embeddings (
    event_id  BIGINT PRIMARY KEY REFERENCES game_events (id) ON DELETE CASCADE,
    game_id   TEXT   NOT NULL,
    embedding vector(%d) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_game_event_embeddings_hnsw
    ON game_event_embeddings USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// ─────────────────────────────────────────────────────────────────────────────
// NPCs, Quests, Custom Locations — one JSONB blob per entity
// ─────────────────────────────────────────────────────────────────────────────

const ddlNPCs = `
CREATE TABLE IF NOT EXISTS npcs (
    game_id     TEXT  NOT NULL REFERENCES games (game_id) ON DELETE CASCADE,
    npc_id      TEXT  NOT NULL,
    location_id TEXT  NOT NULL DEFAULT '',
    blob        JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (game_id, npc_id)
);

CREATE INDEX IF NOT EXISTS idx_npcs_location
    ON npcs (game_id, location_id);
`

const ddlQuests = `
CREATE TABLE IF NOT EXISTS quests (
    game_id    TEXT  NOT NULL REFERENCES games (game_id) ON DELETE CASCADE,
    quest_id   TEXT  NOT NULL,
    status     TEXT  NOT NULL,
    blob       JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (game_id, quest_id)
);

CREATE INDEX IF NOT EXISTS idx_quests_status
    ON quests (game_id, status);
`

const ddlCustomLocations = `
CREATE TABLE IF NOT EXISTS custom_locations (
    game_id     TEXT  NOT NULL REFERENCES games (game_id) ON DELETE CASCADE,
    location_id TEXT  NOT NULL,
    blob        JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (game_id, location_id)
);
`

// ─────────────────────────────────────────────────────────────────────────────
// Plot graph — denormalised node columns for tier/sequence/triggerLevel/status
// query efficiency.
// ─────────────────────────────────────────────────────────────────────────────

const ddlPlotGraph = `
CREATE TABLE IF NOT EXISTS plot_graphs (
    game_id    TEXT PRIMARY KEY REFERENCES games (game_id) ON DELETE CASCADE,
    version    INT  NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS plot_nodes (
    game_id       TEXT  NOT NULL REFERENCES games (game_id) ON DELETE CASCADE,
    node_id       TEXT  NOT NULL,
    thread_id     TEXT  NOT NULL DEFAULT '',
    tier          INT   NOT NULL DEFAULT 0,
    sequence      INT   NOT NULL DEFAULT 0,
    trigger_level INT   NOT NULL DEFAULT 1,
    status        TEXT  NOT NULL,
    blob          JSONB NOT NULL,
    PRIMARY KEY (game_id, node_id)
);

CREATE INDEX IF NOT EXISTS idx_plot_nodes_trigger
    ON plot_nodes (game_id, status, trigger_level);

CREATE INDEX IF NOT EXISTS idx_plot_nodes_thread
    ON plot_nodes (game_id, thread_id, sequence);

CREATE TABLE IF NOT EXISTS plot_edges (
    game_id       TEXT  NOT NULL REFERENCES games (game_id) ON DELETE CASCADE,
    edge_id       TEXT  NOT NULL,
    from_node_id  TEXT  NOT NULL,
    to_node_id    TEXT  NOT NULL,
    blob          JSONB NOT NULL,
    PRIMARY KEY (game_id, edge_id)
);

CREATE INDEX IF NOT EXISTS idx_plot_edges_from
    ON plot_edges (game_id, from_node_id);
`

// ─────────────────────────────────────────────────────────────────────────────
// Planning sessions — links proposals and the consensus result that followed
// ─────────────────────────────────────────────────────────────────────────────

const ddlPlanningSessions = `
CREATE TABLE IF NOT EXISTS planning_sessions (
    session_id    TEXT  PRIMARY KEY,
    game_id       TEXT  NOT NULL REFERENCES games (game_id) ON DELETE CASCADE,
    plot_version  INT   NOT NULL,
    consensus_type TEXT NOT NULL,
    blob          JSONB NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    completed_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_planning_sessions_game
    ON planning_sessions (game_id, completed_at);
`

// Migrate creates or ensures all required tables, indexes, and extensions
// exist. It is idempotent and safe to call on every application start.
//
// embeddingDimensions must match the vector model configured for semantic
// event search (e.g. 1536 for OpenAI text-embedding-3-small). Changing this
// value after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlGames,
		ddlGameEvents,
		ddlSemanticEvents(embeddingDimensions),
		ddlNPCs,
		ddlQuests,
		ddlCustomLocations,
		ddlPlotGraph,
		ddlPlanningSessions,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return wrapErr("migrate", err)
		}
	}
	return nil
}
