// Package store is the durable persistence layer: tasks, users, the
// schedule queue, and the per-user audit log, all on SQLite. The store
// is the single source of truth; the per-user cache is a projection of
// it and is refreshed from the changed-id sets the write methods return.
package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/taskfuse/taskfuse/pkg/logger"
)

// Store wraps the SQLite handle and the registered audit-log listener.
type Store struct {
	db  *sql.DB
	log logger.Logger

	mu          sync.RWMutex
	logListener func(userID string, entry *LogEntry)
}

// ChangeSet names the task ids a write touched, grouped the way the
// cache's incremental refresh consumes them. Every admission-path write
// returns one so the caller can hand it straight to the cache.
type ChangeSet struct {
	Added   []string
	Updated []string
	Deleted []string
}

// Empty reports whether the change set names no ids.
func (cs ChangeSet) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Updated) == 0 && len(cs.Deleted) == 0
}

// Open opens (creating if necessary) the database at path and applies
// migrations. Use ":memory:" for tests.
func Open(path string, l logger.Logger) (*Store, error) {
	if l == nil {
		l = logger.NewNopLogger()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids table-lock errors under interleaved writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db, log: l}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RegisterLogListener sets the callback invoked after every audit-log
// append. Only one listener is kept; the notifier registers here.
func (s *Store) RegisterLogListener(fn func(userID string, entry *LogEntry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logListener = fn
}

func (s *Store) notifyLog(userID string, entry *LogEntry) {
	s.mu.RLock()
	fn := s.logListener
	s.mu.RUnlock()
	if fn != nil {
		fn(userID, entry)
	}
}

// migrate creates the base schema and applies additive column
// migrations. Re-running against an existing database must succeed, so
// column additions ignore duplicate-column errors.
func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name            TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			location        TEXT NOT NULL DEFAULT '',
			attendees       TEXT NOT NULL DEFAULT '[]',
			importance      TEXT NOT NULL DEFAULT '',
			reminder        INTEGER NOT NULL DEFAULT 0,
			start_time      TEXT NOT NULL DEFAULT '',
			end_time        TEXT NOT NULL DEFAULT '',
			due_date        TEXT NOT NULL DEFAULT '',
			schedule_type   TEXT NOT NULL DEFAULT 'single',
			recurrence_rule TEXT NOT NULL DEFAULT '',
			parent_task_id  TEXT NOT NULL DEFAULT '',
			completed       INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id)`,
		`CREATE TABLE IF NOT EXISTS schedule_queue (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			raw_request TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_logs (
			id      TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			time    TEXT NOT NULL,
			type    TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_logs_user ON user_logs(user_id, time)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	// Columns added after the initial release. Idempotent: a duplicate
	// column is not an error.
	addColumn := []string{
		`ALTER TABLE tasks ADD COLUMN pushed_to_mstodo INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE users ADD COLUMN boundary_inclusive INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE users ADD COLUMN week_offset INTEGER NOT NULL DEFAULT 0`,
	}
	for _, stmt := range addColumn {
		if _, err := s.db.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return err
		}
	}
	return nil
}

// now returns the canonical timestamp form used across all tables.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// marshalJSON serializes v, falling back to an empty JSON value on
// failure so a bad payload never blocks the primary write.
func marshalJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
