package persistence

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/narrativeforge/engine/internal/domain"
)

func upsertCustomLocation(ctx context.Context, tx pgx.Tx, gameID string, loc domain.Location) error {
	blob, err := json.Marshal(loc)
	if err != nil {
		return wrapErr("upsert custom location: marshal", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO custom_locations (game_id, location_id, blob, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (game_id, location_id) DO UPDATE SET
			blob = EXCLUDED.blob, updated_at = now()`,
		gameID, loc.ID, blob)
	return wrapErr("upsert custom location", err)
}

// SaveCustomLocation persists a single player-discovered location
// independently of a full SaveGame, e.g. when exploration reveals a new
// connection without otherwise mutating GameState.
func (s *Store) SaveCustomLocation(ctx context.Context, gameID string, loc domain.Location) error {
	blob, err := json.Marshal(loc)
	if err != nil {
		return wrapErr("save custom location: marshal", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO custom_locations (game_id, location_id, blob, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (game_id, location_id) DO UPDATE SET
			blob = EXCLUDED.blob, updated_at = now()`,
		gameID, loc.ID, blob)
	return wrapErr("save custom location", err)
}

// LoadCustomLocation returns a single player-discovered location by id.
func (s *Store) LoadCustomLocation(ctx context.Context, gameID, locationID string) (domain.Location, error) {
	var blob []byte
	row := s.pool.QueryRow(ctx, `SELECT blob FROM custom_locations WHERE game_id = $1 AND location_id = $2`, gameID, locationID)
	if err := row.Scan(&blob); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Location{}, ErrNotFound
		}
		return domain.Location{}, wrapErr("load custom location", err)
	}
	var loc domain.Location
	if err := json.Unmarshal(blob, &loc); err != nil {
		return domain.Location{}, wrapErr("load custom location: unmarshal", err)
	}
	return loc, nil
}

func (s *Store) loadAllCustomLocations(ctx context.Context, gameID string) (map[string]domain.Location, error) {
	rows, err := s.pool.Query(ctx, `SELECT blob FROM custom_locations WHERE game_id = $1`, gameID)
	if err != nil {
		return nil, wrapErr("load all custom locations", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Location)
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, wrapErr("load all custom locations: scan", err)
		}
		var loc domain.Location
		if err := json.Unmarshal(blob, &loc); err != nil {
			continue // schema-tolerant: skip a corrupt blob
		}
		out[loc.ID] = loc
	}
	return out, wrapErr("load all custom locations: rows", rows.Err())
}
