// Package history records which sessions were resumed, in
// <home>/state.db. It is informational only and never feeds ranking.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/asheshgoplani/session-search/internal/logging"
)

var historyLog = logging.ForComponent(logging.CompHistory)

// SchemaVersion is bumped whenever Migrate gains a step.
const SchemaVersion = 1

// FileName is the database file inside the home directory.
const FileName = "state.db"

// DefaultMaxEntries is used by Prune when given a non-positive limit.
const DefaultMaxEntries = 500

// Entry is one resume, executed or dry-run.
type Entry struct {
	ID        int64     `json:"-"`
	SessionID string    `json:"session_id"`
	Path      string    `json:"path"`
	Label     string    `json:"label,omitempty"`
	Query     string    `json:"query"`
	Command   string    `json:"command"`
	DryRun    bool      `json:"dry_run"`
	At        time.Time `json:"at"`
}

// DB wraps the SQLite handle. Safe for concurrent use within a process;
// WAL mode and a busy timeout cover concurrent processes.
type DB struct {
	db *sql.DB
}

// Open creates or opens the database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	// Pragmas are per connection; one connection keeps them in force.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", p, err)
		}
	}
	return &DB{db: db}, nil
}

// Close checkpoints the WAL and closes the database.
func (h *DB) Close() error {
	_, _ = h.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return h.db.Close()
}

// Migrate creates the tables if needed.
func (h *DB) Migrate() error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("history: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("history: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS resumes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			path       TEXT NOT NULL DEFAULT '',
			label      TEXT NOT NULL DEFAULT '',
			query      TEXT NOT NULL DEFAULT '',
			command    TEXT NOT NULL DEFAULT '',
			dry_run    INTEGER NOT NULL DEFAULT 0,
			resumed_at INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("history: create resumes: %w", err)
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS resumes_at ON resumes(resumed_at)`); err != nil {
		return fmt.Errorf("history: create index: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, strconv.Itoa(SchemaVersion)); err != nil {
		return fmt.Errorf("history: set schema version: %w", err)
	}
	return tx.Commit()
}

// Record appends e. A zero At is stamped with the current time.
func (h *DB) Record(ctx context.Context, e Entry) error {
	if e.SessionID == "" {
		return errors.New("history: empty session id")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO resumes (session_id, path, label, query, command, dry_run, resumed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.SessionID, e.Path, e.Label, e.Query, e.Command, boolToInt(e.DryRun), e.At.UnixNano())
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	historyLog.Debug("history_recorded", "session_id", e.SessionID, "dry_run", e.DryRun)
	return nil
}

// Recent returns up to n entries, newest first.
func (h *DB) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = DefaultMaxEntries
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, session_id, path, label, query, command, dry_run, resumed_at
		FROM resumes ORDER BY resumed_at DESC, id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var dry int
		var at int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Path, &e.Label, &e.Query, &e.Command, &dry, &at); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.DryRun = dry != 0
		e.At = time.Unix(0, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune keeps the newest keep entries and returns how many were removed.
func (h *DB) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		keep = DefaultMaxEntries
	}
	res, err := h.db.ExecContext(ctx, `
		DELETE FROM resumes WHERE id NOT IN (
			SELECT id FROM resumes ORDER BY resumed_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		historyLog.Info("history_pruned", "removed", n, "kept", keep)
	}
	return n, nil
}

// SchemaVersionOnDisk reads the stored schema version.
func (h *DB) SchemaVersionOnDisk() (int, error) {
	var v string
	err := h.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
