// Package store keeps a SQLite ledger of maze run transitions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RunEvent is one tracker transition observed in a session.
type RunEvent struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// Stats aggregates the ledger.
type Stats struct {
	Sessions  int `json:"sessions"`
	Started   int `json:"started"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

// Store manages the run ledger database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens a ledger at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS run_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		reason TEXT NOT NULL,
		at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_run_events_session ON run_events(session_id);
	CREATE INDEX IF NOT EXISTS idx_run_events_reason ON run_events(reason);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends an event.
func (s *Store) Record(ctx context.Context, ev RunEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_events (session_id, from_state, to_state, reason, at) VALUES (?, ?, ?, ?, ?)`,
		ev.SessionID, ev.From, ev.To, ev.Reason, ev.At.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record run event: %w", err)
	}
	return nil
}

// History returns a session's events, oldest first. limit <= 0 means all.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]RunEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, from_state, to_state, reason, at FROM run_events
		 WHERE session_id = ? ORDER BY id ASC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var events []RunEvent
	for rows.Next() {
		var ev RunEvent
		var at int64
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.From, &ev.To, &ev.Reason, &at); err != nil {
			return nil, fmt.Errorf("failed to scan run event: %w", err)
		}
		ev.At = time.Unix(0, at).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return events, nil
}

// Stats counts sessions and outcomes. Failed covers both wall hits and
// leaving the maze.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT session_id),
			COALESCE(SUM(CASE WHEN reason = 'started' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reason IN ('hit_wall', 'left_maze') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reason = 'completed' THEN 1 ELSE 0 END), 0)
		FROM run_events`).Scan(&st.Sessions, &st.Started, &st.Failed, &st.Completed)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	return st, nil
}
