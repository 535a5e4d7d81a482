package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/narrativeforge/engine/internal/domain"
)

// Store is the PostgreSQL-backed durable store for games, their states,
// NPCs, quests, custom locations, the plot graph, planning sessions, and
// the event log. All operations are safe for concurrent use; per-game
// write atomicity is provided by [pgx.Tx], not by in-process locking — the
// orchestrator is responsible for serialising writes per game.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and runs
// [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the embedding
// provider configured for semantic event search.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, wrapErr("parse dsn", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, wrapErr("create pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapErr("ping", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CreateGame inserts a new Game row and its bootstrap GameState in a single
// transaction.
func (s *Store) CreateGame(ctx context.Context, game domain.Game, state domain.GameState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapErr("create game: begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO games (game_id, player_name, system_type, difficulty, level, playtime_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, to_timestamp($7), to_timestamp($8))`,
		game.GameID, game.PlayerName, string(game.SystemType), string(game.Difficulty),
		game.Level, game.PlaytimeSeconds, game.CreatedAt, game.UpdatedAt); err != nil {
		return wrapErr("create game: insert game", err)
	}

	blob, err := json.Marshal(state)
	if err != nil {
		return wrapErr("create game: marshal state", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO game_states (game_id, state_blob) VALUES ($1, $2)`,
		game.GameID, blob); err != nil {
		return wrapErr("create game: insert state", err)
	}

	return wrapErr("create game: commit", tx.Commit(ctx))
}

// GetGame returns the Game identity record for gameID.
func (s *Store) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	var (
		g          domain.Game
		systemType string
		difficulty string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT game_id, player_name, system_type, difficulty, level, playtime_seconds,
		       extract(epoch from created_at)::bigint, extract(epoch from updated_at)::bigint
		FROM games WHERE game_id = $1`, gameID)
	if err := row.Scan(&g.GameID, &g.PlayerName, &systemType, &difficulty, &g.Level, &g.PlaytimeSeconds,
		&g.CreatedAt, &g.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Game{}, ErrNotFound
		}
		return domain.Game{}, wrapErr("get game", err)
	}
	g.SystemType = domain.SystemType(systemType)
	g.Difficulty = domain.Difficulty(difficulty)
	return g, nil
}

// SaveGame atomically persists the metadata update, the state blob, every
// NPC blob, every active quest blob, and every custom location blob for
// state.GameID. Completed quests are saved only as ids inside the state
// blob; their quest rows are not rewritten. Failure leaves the previous snapshot
// intact (the whole operation runs inside one transaction).
func (s *Store) SaveGame(ctx context.Context, state domain.GameState, playtimeSeconds int64) error {
	if !domain.Invariant(state) {
		return wrapErr("save game", fmt.Errorf("game state invariant violated for game %q", state.GameID))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapErr("save game: begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE games SET level = $2, playtime_seconds = $3, updated_at = now()
		WHERE game_id = $1`, state.GameID, state.CharacterSheet.Level, playtimeSeconds); err != nil {
		return wrapErr("save game: update metadata", err)
	}

	blob, err := json.Marshal(state)
	if err != nil {
		return wrapErr("save game: marshal state", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO game_states (game_id, state_blob, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (game_id) DO UPDATE SET state_blob = EXCLUDED.state_blob, updated_at = now()`,
		state.GameID, blob); err != nil {
		return wrapErr("save game: upsert state", err)
	}

	for _, npcs := range state.NPCsByLocation {
		for _, n := range npcs {
			if err := upsertNPC(ctx, tx, state.GameID, n); err != nil {
				return err
			}
		}
	}
	for _, q := range state.ActiveQuests {
		if err := upsertQuest(ctx, tx, state.GameID, q); err != nil {
			return err
		}
	}
	for _, loc := range state.CustomLocations {
		if err := upsertCustomLocation(ctx, tx, state.GameID, loc); err != nil {
			return err
		}
	}

	return wrapErr("save game: commit", tx.Commit(ctx))
}

// LoadState reconstitutes a GameState by loading the base blob and
// overlaying freshly-deserialised NPCs, quests, custom locations, so that
// anything persisted out-of-band after the blob was last written (e.g. an
// NPC conversation update from a dialogue turn) still appears.
func (s *Store) LoadState(ctx context.Context, gameID string) (domain.GameState, error) {
	var blob []byte
	row := s.pool.QueryRow(ctx, `SELECT state_blob FROM game_states WHERE game_id = $1`, gameID)
	if err := row.Scan(&blob); err != nil {
		if err == pgx.ErrNoRows {
			return domain.GameState{}, ErrNotFound
		}
		return domain.GameState{}, wrapErr("load state", err)
	}

	var state domain.GameState
	if err := json.Unmarshal(blob, &state); err != nil {
		return domain.GameState{}, wrapErr("load state: unmarshal", err)
	}

	npcs, err := s.loadAllNPCs(ctx, gameID)
	if err != nil {
		return domain.GameState{}, err
	}
	byLoc := make(map[string][]domain.NPC)
	for _, n := range npcs {
		byLoc[n.LocationID] = append(byLoc[n.LocationID], n)
	}
	state.NPCsByLocation = byLoc

	active, completed, err := s.loadAllQuests(ctx, gameID)
	if err != nil {
		return domain.GameState{}, err
	}
	state.ActiveQuests = active
	state.CompletedQuests = completed

	locs, err := s.loadAllCustomLocations(ctx, gameID)
	if err != nil {
		return domain.GameState{}, err
	}
	state.CustomLocations = locs

	return state, nil
}

// DeleteGame cascades to all child tables (state, events, NPCs, quests,
// custom locations, plot graph, planning sessions) in a single transaction
// via ON DELETE CASCADE foreign keys, plus an explicit delete of the games
// row itself.
func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM games WHERE game_id = $1`, gameID)
	if err != nil {
		return wrapErr("delete game", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
