package persistence

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/narrativeforge/engine/internal/domain"
)

func upsertQuest(ctx context.Context, tx pgx.Tx, gameID string, q domain.Quest) error {
	blob, err := json.Marshal(q)
	if err != nil {
		return wrapErr("upsert quest: marshal", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO quests (game_id, quest_id, status, blob, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (game_id, quest_id) DO UPDATE SET
			status = EXCLUDED.status, blob = EXCLUDED.blob, updated_at = now()`,
		gameID, q.ID, string(q.Status), blob)
	return wrapErr("upsert quest", err)
}

// SaveQuest persists a single quest's blob independently of a full
// SaveGame, for objective-progress updates outside the main turn commit.
func (s *Store) SaveQuest(ctx context.Context, gameID string, q domain.Quest) error {
	blob, err := json.Marshal(q)
	if err != nil {
		return wrapErr("save quest: marshal", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quests (game_id, quest_id, status, blob, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (game_id, quest_id) DO UPDATE SET
			status = EXCLUDED.status, blob = EXCLUDED.blob, updated_at = now()`,
		gameID, q.ID, string(q.Status), blob)
	return wrapErr("save quest", err)
}

// LoadQuest returns a single quest by id, regardless of whether it is
// currently active or completed.
func (s *Store) LoadQuest(ctx context.Context, gameID, questID string) (domain.Quest, error) {
	var blob []byte
	row := s.pool.QueryRow(ctx, `SELECT blob FROM quests WHERE game_id = $1 AND quest_id = $2`, gameID, questID)
	if err := row.Scan(&blob); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Quest{}, ErrNotFound
		}
		return domain.Quest{}, wrapErr("load quest", err)
	}
	var q domain.Quest
	if err := json.Unmarshal(blob, &q); err != nil {
		return domain.Quest{}, wrapErr("load quest: unmarshal", err)
	}
	return q, nil
}

// loadAllQuests returns every quest for gameID split into active and
// completed maps, keyed by quest id, matching GameState's shape.
func (s *Store) loadAllQuests(ctx context.Context, gameID string) (active map[string]domain.Quest, completed map[string]struct{}, err error) {
	rows, err := s.pool.Query(ctx, `SELECT blob, status FROM quests WHERE game_id = $1`, gameID)
	if err != nil {
		return nil, nil, wrapErr("load all quests", err)
	}
	defer rows.Close()

	active = make(map[string]domain.Quest)
	completed = make(map[string]struct{})
	for rows.Next() {
		var (
			blob   []byte
			status string
		)
		if err := rows.Scan(&blob, &status); err != nil {
			return nil, nil, wrapErr("load all quests: scan", err)
		}
		var q domain.Quest
		if err := json.Unmarshal(blob, &q); err != nil {
			continue // schema-tolerant: skip a corrupt blob
		}
		switch domain.QuestStatus(status) {
		case domain.QuestCompleted:
			completed[q.ID] = struct{}{}
		case domain.QuestFailed:
			// Failed quests are neither active nor completed; they are
			// retained only in the blob table for history/event lookups.
		default:
			active[q.ID] = q
		}
	}
	return active, completed, wrapErr("load all quests: rows", rows.Err())
}
