package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const (
	schemaVersion      = 1
	defaultBusyTimeout = 5000 // milliseconds
)

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id                TEXT PRIMARY KEY,
		account_id        TEXT NOT NULL,
		credential        TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'active',
		last_success_at   TEXT,
		in_progress_since TEXT,
		error_reason      TEXT NOT NULL DEFAULT '',
		created_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,

	`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status, id)`,
}

// SQLiteStore persists sessions in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens a SQLite database at the given path and migrates the
// schema. The database uses WAL mode, a 5 s busy timeout, and a single
// connection (SQLite serialises writes).
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// migrate creates or updates the database schema to the latest version.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("store: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("store: record schema version: %w", err)
	}

	return nil
}

// ListByStatus implements Store. Results are ordered by ID ascending.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status Status) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, credential, status, last_success_at, in_progress_since, error_reason
		FROM sessions
		WHERE status = ?
		ORDER BY id ASC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Session
	for rows.Next() {
		var (
			sess                    Session
			status                  string
			lastSuccess, inProgress sql.NullString
		)
		if err := rows.Scan(&sess.ID, &sess.AccountID, &sess.Credential, &status, &lastSuccess, &inProgress, &sess.ErrorReason); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		sess.Status = Status(status)
		if sess.LastSuccessAt, err = parseNullTime(lastSuccess); err != nil {
			return nil, err
		}
		if sess.InProgressSince, err = parseNullTime(inProgress); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate sessions: %w", err)
	}
	return out, nil
}

// Put inserts or replaces a session by ID.
func (s *SQLiteStore) Put(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (id, account_id, credential, status, last_success_at, in_progress_since, error_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.AccountID, sess.Credential, string(sess.Status),
		formatNullTime(sess.LastSuccessAt), formatNullTime(sess.InProgressSince), sess.ErrorReason,
	)
	if err != nil {
		return fmt.Errorf("store: put session: %w", err)
	}
	return nil
}

// UpdateFields applies a partial update to the session with the given ID.
// Returns ErrNotFound if no such session exists.
func (s *SQLiteStore) UpdateFields(ctx context.Context, id string, fields Fields) error {
	var (
		sets []string
		args []any
	)
	if fields.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*fields.Status))
	}
	if fields.LastSuccessAt != nil {
		sets = append(sets, "last_success_at = ?")
		args = append(args, fields.LastSuccessAt.UTC().Format(time.RFC3339Nano))
	}
	if fields.InProgressSince != nil {
		sets = append(sets, "in_progress_since = ?")
		args = append(args, fields.InProgressSince.UTC().Format(time.RFC3339Nano))
	}
	if fields.ClearInProgress {
		sets = append(sets, "in_progress_since = NULL")
	}
	if fields.ErrorReason != nil {
		sets = append(sets, "error_reason = ?")
		args = append(args, *fields.ErrorReason)
	}
	if fields.ClearError {
		sets = append(sets, "error_reason = ''")
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("store: update session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: update %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountByStatus returns the number of sessions per status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM sessions GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("store: count sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("store: scan count: %w", err)
		}
		counts[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate counts: %w", err)
	}
	return counts, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, fmt.Errorf("store: parse timestamp %q: %w", v.String, err)
	}
	return &t, nil
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
