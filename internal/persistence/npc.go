package persistence

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/narrativeforge/engine/internal/domain"
)

func upsertNPC(ctx context.Context, tx pgx.Tx, gameID string, n domain.NPC) error {
	blob, err := json.Marshal(n)
	if err != nil {
		return wrapErr("upsert npc: marshal", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO npcs (game_id, npc_id, location_id, blob, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (game_id, npc_id) DO UPDATE SET
			location_id = EXCLUDED.location_id, blob = EXCLUDED.blob, updated_at = now()`,
		gameID, n.ID, n.LocationID, blob)
	return wrapErr("upsert npc", err)
}

// SaveNPC persists a single NPC's blob independently of a full SaveGame,
// for the common case of an NPC dialogue turn updating conversation
// history or affinity.
func (s *Store) SaveNPC(ctx context.Context, gameID string, n domain.NPC) error {
	blob, err := json.Marshal(n)
	if err != nil {
		return wrapErr("save npc: marshal", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO npcs (game_id, npc_id, location_id, blob, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (game_id, npc_id) DO UPDATE SET
			location_id = EXCLUDED.location_id, blob = EXCLUDED.blob, updated_at = now()`,
		gameID, n.ID, n.LocationID, blob)
	return wrapErr("save npc", err)
}

// LoadNPC returns a single NPC by id.
func (s *Store) LoadNPC(ctx context.Context, gameID, npcID string) (domain.NPC, error) {
	var blob []byte
	row := s.pool.QueryRow(ctx, `SELECT blob FROM npcs WHERE game_id = $1 AND npc_id = $2`, gameID, npcID)
	if err := row.Scan(&blob); err != nil {
		if err == pgx.ErrNoRows {
			return domain.NPC{}, ErrNotFound
		}
		return domain.NPC{}, wrapErr("load npc", err)
	}
	var n domain.NPC
	if err := json.Unmarshal(blob, &n); err != nil {
		return domain.NPC{}, wrapErr("load npc: unmarshal", err)
	}
	return n, nil
}

func (s *Store) loadAllNPCs(ctx context.Context, gameID string) ([]domain.NPC, error) {
	rows, err := s.pool.Query(ctx, `SELECT blob FROM npcs WHERE game_id = $1`, gameID)
	if err != nil {
		return nil, wrapErr("load all npcs", err)
	}
	defer rows.Close()

	var out []domain.NPC
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, wrapErr("load all npcs: scan", err)
		}
		var n domain.NPC
		if err := json.Unmarshal(blob, &n); err != nil {
			// Schema-tolerant: skip a corrupt blob rather than failing the load.
			continue
		}
		out = append(out, n)
	}
	return out, wrapErr("load all npcs: rows", rows.Err())
}
