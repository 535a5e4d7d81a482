package persistence

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/narrativeforge/engine/internal/consensus"
)

// SavePlanningSession persists a completed planner run: its full proposal
// set and consensus result as a JSONB blob, with version and consensus
// type denormalised for listing without deserialising every blob.
func (s *Store) SavePlanningSession(ctx context.Context, session consensus.PlanningSession) error {
	blob, err := json.Marshal(session)
	if err != nil {
		return wrapErr("save planning session: marshal", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO planning_sessions (session_id, game_id, plot_version, consensus_type, blob, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, to_timestamp($6 / 1e9), to_timestamp($7 / 1e9))
		ON CONFLICT (session_id) DO UPDATE SET
			plot_version = EXCLUDED.plot_version, consensus_type = EXCLUDED.consensus_type,
			blob = EXCLUDED.blob, completed_at = EXCLUDED.completed_at`,
		session.ID, session.GameID, session.PlotGraphVersion, string(session.Result.ConsensusType),
		blob, session.StartedAt, session.CompletedAt)
	return wrapErr("save planning session", err)
}

// LoadPlanningSession returns a single planning session by id.
func (s *Store) LoadPlanningSession(ctx context.Context, sessionID string) (consensus.PlanningSession, error) {
	var blob []byte
	row := s.pool.QueryRow(ctx, `SELECT blob FROM planning_sessions WHERE session_id = $1`, sessionID)
	if err := row.Scan(&blob); err != nil {
		if err == pgx.ErrNoRows {
			return consensus.PlanningSession{}, ErrNotFound
		}
		return consensus.PlanningSession{}, wrapErr("load planning session", err)
	}
	var session consensus.PlanningSession
	if err := json.Unmarshal(blob, &session); err != nil {
		return consensus.PlanningSession{}, wrapErr("load planning session: unmarshal", err)
	}
	return session, nil
}

// RecentPlanningSessions returns gameID's planning sessions, most recently
// completed first, capped at limit, for surfacing planner history. Only
// completed runs are saved, so it does not show whether a replan is in
// flight.
func (s *Store) RecentPlanningSessions(ctx context.Context, gameID string, limit int) ([]consensus.PlanningSession, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT blob FROM planning_sessions WHERE game_id = $1 ORDER BY completed_at DESC LIMIT $2`,
		gameID, limit)
	if err != nil {
		return nil, wrapErr("recent planning sessions", err)
	}
	defer rows.Close()

	var out []consensus.PlanningSession
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, wrapErr("recent planning sessions: scan", err)
		}
		var session consensus.PlanningSession
		if err := json.Unmarshal(blob, &session); err != nil {
			continue // schema-tolerant: skip a corrupt blob
		}
		out = append(out, session)
	}
	return out, wrapErr("recent planning sessions: rows", rows.Err())
}
