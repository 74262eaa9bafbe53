package remed

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	target     TEXT NOT NULL,
	alert_name TEXT NOT NULL,
	action     TEXT NOT NULL,
	state      TEXT NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0,
	reason     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_updated ON tasks(updated_at DESC);
`

// Store is the durable remediation task history. Advisory: the audit log
// is the tamper-evident record; this exists for operator queries.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the task database at the given path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("taskstore: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("taskstore: open %s: %w", path, err)
	}
	// Single connection: modernc sqlite serializes writers anyway, and
	// this avoids SQLITE_BUSY between dispatcher workers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("taskstore: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts the task's current state.
func (s *Store) Save(t *Task) error {
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, target, alert_name, action, state, attempts, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			attempts = excluded.attempts,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		t.ID, t.Target, t.AlertName, t.Action, string(t.State), t.Attempts, t.Reason,
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("taskstore: save %s: %w", t.ID, err)
	}
	return nil
}

// Recent returns the most recently updated tasks, newest first.
func (s *Store) Recent(limit int) ([]Task, error) {
	rows, err := s.db.Query(`
		SELECT id, target, alert_name, action, state, attempts, reason, created_at, updated_at
		FROM tasks ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("taskstore: query recent: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var state, createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Target, &t.AlertName, &t.Action, &state,
			&t.Attempts, &t.Reason, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("taskstore: scan row: %w", err)
		}
		t.State = State(state)
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
