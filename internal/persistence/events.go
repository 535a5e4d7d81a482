package persistence

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/narrativeforge/engine/internal/domain"
	"github.com/narrativeforge/engine/internal/mcp/tools/memory"
)

// LogEvent appends e to gameID's event log. The database assigns the
// monotonically increasing id; e.ID is ignored on input.
func (s *Store) LogEvent(ctx context.Context, gameID string, e domain.GameEvent) (domain.GameEvent, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO game_events (game_id, event_type, category, importance, search_text,
		                         npc_id, location_id, quest_id, item_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, to_timestamp($10 / 1e9))
		RETURNING id`,
		gameID, string(e.Type), string(e.Category), string(e.Importance), e.SearchText,
		e.NPCID, e.LocationID, e.QuestID, e.ItemID, e.Timestamp)

	var id int64
	if err := row.Scan(&id); err != nil {
		return domain.GameEvent{}, wrapErr("log event", err)
	}
	e.ID = id
	e.GameID = gameID
	return e, nil
}

// RecentEvents returns gameID's most recent events, newest first, capped at
// limit. It satisfies [memory.EventSearcher].
func (s *Store) RecentEvents(ctx context.Context, gameID string, limit int) ([]domain.GameEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, category, importance, search_text,
		       npc_id, location_id, quest_id, item_id, (extract(epoch from timestamp) * 1e9)::bigint
		FROM game_events
		WHERE game_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`, gameID, limit)
	if err != nil {
		return nil, wrapErr("recent events", err)
	}
	defer rows.Close()
	return scanEvents(gameID, rows)
}

// SearchEvents returns events for gameID matching opts, newest first. It
// satisfies [memory.EventSearcher]. Free-text matching uses a case
// insensitive substring match against search_text via ILIKE; a dedicated
// semantic search over game_event_embeddings is a separate concern from
// this keyword path.
func (s *Store) SearchEvents(ctx context.Context, gameID string, opts memory.EventSearchOpts) ([]domain.GameEvent, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	query := strings.Builder{}
	query.WriteString(`
		SELECT id, event_type, category, importance, search_text,
		       npc_id, location_id, quest_id, item_id, (extract(epoch from timestamp) * 1e9)::bigint
		FROM game_events
		WHERE game_id = $1`)
	args := []any{gameID}

	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query.WriteString(" AND " + column + " = $" + strconv.Itoa(len(args)))
	}
	addFilter("npc_id", opts.NPCID)
	addFilter("location_id", opts.LocationID)
	addFilter("quest_id", opts.QuestID)
	if opts.Category != "" {
		args = append(args, string(opts.Category))
		query.WriteString(" AND category = $" + strconv.Itoa(len(args)))
	}
	if opts.Query != "" {
		args = append(args, "%"+opts.Query+"%")
		query.WriteString(" AND search_text ILIKE $" + strconv.Itoa(len(args)))
	}

	args = append(args, limit)
	query.WriteString(" ORDER BY timestamp DESC, id DESC LIMIT $" + strconv.Itoa(len(args)))

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, wrapErr("search events", err)
	}
	defer rows.Close()
	return scanEvents(gameID, rows)
}

func scanEvents(gameID string, rows pgx.Rows) ([]domain.GameEvent, error) {
	var out []domain.GameEvent
	for rows.Next() {
		var (
			e                                domain.GameEvent
			eventType, category, importance string
		)
		if err := rows.Scan(&e.ID, &eventType, &category, &importance, &e.SearchText,
			&e.NPCID, &e.LocationID, &e.QuestID, &e.ItemID, &e.Timestamp); err != nil {
			return nil, wrapErr("scan events", err)
		}
		e.GameID = gameID
		e.Type = domain.EventType(eventType)
		e.Category = domain.EventCategory(category)
		e.Importance = domain.EventImportance(importance)
		out = append(out, e)
	}
	return out, wrapErr("scan events: rows", rows.Err())
}
