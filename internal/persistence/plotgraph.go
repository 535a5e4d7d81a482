package persistence

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/narrativeforge/engine/internal/domain"
)

// SavePlotGraph persists every node and edge of g, and bumps the stored
// plot_graphs.version to g.Version, in a single transaction. Nodes and
// edges absent from a prior version remain in the table (plot nodes are
// append-and-update, never deleted — an ABANDONED status records that a
// beat was dropped rather than removing its row).
func (s *Store) SavePlotGraph(ctx context.Context, g domain.PlotGraph) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapErr("save plot graph: begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO plot_graphs (game_id, version, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (game_id) DO UPDATE SET version = EXCLUDED.version, updated_at = now()`,
		g.GameID, g.Version); err != nil {
		return wrapErr("save plot graph: upsert graph", err)
	}

	for _, n := range g.Nodes {
		blob, err := json.Marshal(n)
		if err != nil {
			return wrapErr("save plot graph: marshal node", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO plot_nodes (game_id, node_id, thread_id, tier, sequence, trigger_level, status, blob)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (game_id, node_id) DO UPDATE SET
				thread_id = EXCLUDED.thread_id, tier = EXCLUDED.tier, sequence = EXCLUDED.sequence,
				trigger_level = EXCLUDED.trigger_level, status = EXCLUDED.status, blob = EXCLUDED.blob`,
			g.GameID, n.ID, n.ThreadID, n.Position.Tier, n.Position.Sequence, n.Beat.TriggerLevel,
			string(n.Status), blob); err != nil {
			return wrapErr("save plot graph: upsert node", err)
		}
	}

	for _, e := range g.Edges {
		blob, err := json.Marshal(e)
		if err != nil {
			return wrapErr("save plot graph: marshal edge", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO plot_edges (game_id, edge_id, from_node_id, to_node_id, blob)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (game_id, edge_id) DO UPDATE SET
				from_node_id = EXCLUDED.from_node_id, to_node_id = EXCLUDED.to_node_id, blob = EXCLUDED.blob`,
			g.GameID, e.ID, e.FromNodeID, e.ToNodeID, blob); err != nil {
			return wrapErr("save plot graph: upsert edge", err)
		}
	}

	return wrapErr("save plot graph: commit", tx.Commit(ctx))
}

// LoadPlotGraph reconstructs gameID's full plot graph from its nodes and
// edges tables.
func (s *Store) LoadPlotGraph(ctx context.Context, gameID string) (domain.PlotGraph, error) {
	var version int
	row := s.pool.QueryRow(ctx, `SELECT version FROM plot_graphs WHERE game_id = $1`, gameID)
	if err := row.Scan(&version); err != nil {
		if err == pgx.ErrNoRows {
			return domain.PlotGraph{}, ErrNotFound
		}
		return domain.PlotGraph{}, wrapErr("load plot graph", err)
	}

	g := domain.PlotGraph{
		GameID:  gameID,
		Version: version,
		Nodes:   make(map[string]domain.PlotNode),
		Edges:   make(map[string]domain.PlotEdge),
	}

	nodeRows, err := s.pool.Query(ctx, `SELECT blob FROM plot_nodes WHERE game_id = $1`, gameID)
	if err != nil {
		return domain.PlotGraph{}, wrapErr("load plot graph: nodes", err)
	}
	defer nodeRows.Close()
	for nodeRows.Next() {
		var blob []byte
		if err := nodeRows.Scan(&blob); err != nil {
			return domain.PlotGraph{}, wrapErr("load plot graph: scan node", err)
		}
		var n domain.PlotNode
		if err := json.Unmarshal(blob, &n); err != nil {
			continue // schema-tolerant: skip a corrupt blob
		}
		g.Nodes[n.ID] = n
	}
	if err := nodeRows.Err(); err != nil {
		return domain.PlotGraph{}, wrapErr("load plot graph: node rows", err)
	}

	edgeRows, err := s.pool.Query(ctx, `SELECT blob FROM plot_edges WHERE game_id = $1`, gameID)
	if err != nil {
		return domain.PlotGraph{}, wrapErr("load plot graph: edges", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var blob []byte
		if err := edgeRows.Scan(&blob); err != nil {
			return domain.PlotGraph{}, wrapErr("load plot graph: scan edge", err)
		}
		var e domain.PlotEdge
		if err := json.Unmarshal(blob, &e); err != nil {
			continue
		}
		g.Edges[e.ID] = e
	}
	return g, wrapErr("load plot graph: edge rows", edgeRows.Err())
}

// UpdateNodeStatus transitions a single node's status without rewriting the
// whole graph, for the common trigger/complete/abandon case during a turn.
func (s *Store) UpdateNodeStatus(ctx context.Context, gameID, nodeID string, status domain.PlotNodeStatus) error {
	node, err := s.loadPlotNode(ctx, gameID, nodeID)
	if err != nil {
		return err
	}
	node.Status = status
	blob, err := json.Marshal(node)
	if err != nil {
		return wrapErr("update node status: marshal", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE plot_nodes SET status = $3, blob = $4 WHERE game_id = $1 AND node_id = $2`,
		gameID, nodeID, string(status), blob)
	if err != nil {
		return wrapErr("update node status", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) loadPlotNode(ctx context.Context, gameID, nodeID string) (domain.PlotNode, error) {
	var blob []byte
	row := s.pool.QueryRow(ctx, `SELECT blob FROM plot_nodes WHERE game_id = $1 AND node_id = $2`, gameID, nodeID)
	if err := row.Scan(&blob); err != nil {
		if err == pgx.ErrNoRows {
			return domain.PlotNode{}, ErrNotFound
		}
		return domain.PlotNode{}, wrapErr("load plot node", err)
	}
	var n domain.PlotNode
	if err := json.Unmarshal(blob, &n); err != nil {
		return domain.PlotNode{}, wrapErr("load plot node: unmarshal", err)
	}
	return n, nil
}
