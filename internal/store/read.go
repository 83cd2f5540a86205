package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/verayang01/clocksim/internal/event"
)

// ReadAll returns every entry, ordered by node then per-node sequence.
// Returns an empty slice (not nil) for an empty log.
func (s *Store) ReadAll(ctx context.Context) ([]event.Entry, error) {
	return s.readEntries(ctx, `
		SELECT node, seq, wall, kind, clock, queue_len, peer, message_id, message_clock
		FROM entries
		ORDER BY node ASC, seq ASC
	`)
}

// ReadNode returns one node's entries in log order.
func (s *Store) ReadNode(ctx context.Context, nodeID string) ([]event.Entry, error) {
	return s.readEntries(ctx, `
		SELECT node, seq, wall, kind, clock, queue_len, peer, message_id, message_clock
		FROM entries
		WHERE node = ?
		ORDER BY seq ASC
	`, nodeID)
}

// Nodes returns the distinct node IDs present in the log, sorted.
func (s *Store) Nodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT node FROM entries ORDER BY node ASC`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func (s *Store) readEntries(ctx context.Context, query string, args ...any) ([]event.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []event.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (event.Entry, error) {
	var (
		e    event.Entry
		wall string
		kind string
	)
	if err := rows.Scan(&e.Node, &e.Seq, &wall, &kind, &e.Clock, &e.QueueLen, &e.Peer, &e.MessageID, &e.MessageClock); err != nil {
		return event.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, wall)
	if err != nil {
		return event.Entry{}, fmt.Errorf("parse wall time %q: %w", wall, err)
	}
	e.Wall = t
	e.Kind = event.Kind(kind)
	return e, nil
}
