// Package history persists finished healing sessions to a local
// SQLite database so past runs can be listed and inspected.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/jabva-1990/agentic-healer/internal/heal"
)

// schema contains the DDL executed on first open. Using IF NOT EXISTS
// makes it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id              TEXT PRIMARY KEY,
    repo_path       TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL,
    exit_code       INTEGER NOT NULL,
    issues_found    INTEGER NOT NULL,
    issues_resolved INTEGER NOT NULL,
    fixes_applied   INTEGER NOT NULL,
    files_modified  INTEGER NOT NULL,
    started_at      TEXT NOT NULL,
    finished_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS iterations (
    session_id    TEXT NOT NULL REFERENCES sessions(id),
    idx           INTEGER NOT NULL,
    issues_before INTEGER NOT NULL,
    issues_after  INTEGER NOT NULL,
    fixes_applied INTEGER NOT NULL,
    elapsed_ms    INTEGER NOT NULL,
    PRIMARY KEY (session_id, idx)
);
`

// Store records healing sessions in a SQLite database in WAL mode.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at dbPath, enables WAL
// mode and busy timeout, and creates the schema if needed.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	// One connection: SQLite supports a single writer, and a pool of
	// connections would each need their own PRAGMA setup.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordSession writes a terminal session and its iteration records in
// one transaction. Re-recording the same session replaces it.
func (s *Store) RecordSession(ctx context.Context, sess *heal.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO sessions (id, repo_path, description, status, exit_code,
			issues_found, issues_resolved, fixes_applied, files_modified,
			started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			exit_code = excluded.exit_code,
			issues_found = excluded.issues_found,
			issues_resolved = excluded.issues_resolved,
			fixes_applied = excluded.fixes_applied,
			files_modified = excluded.files_modified,
			finished_at = excluded.finished_at`
	if _, err := tx.ExecContext(ctx, upsert,
		sess.ID, sess.RepoPath, sess.Description, string(sess.Status), sess.ExitCode,
		sess.IssuesFound, sess.IssuesResolved, sess.FixesApplied, len(sess.FilesModified),
		sess.StartedAt.Format(time.RFC3339Nano), sess.FinishedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("history: record session %s: %w", sess.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM iterations WHERE session_id = ?", sess.ID); err != nil {
		return fmt.Errorf("history: clear iterations for %s: %w", sess.ID, err)
	}
	for _, rec := range sess.Iterations {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO iterations (session_id, idx, issues_before, issues_after, fixes_applied, elapsed_ms) VALUES (?, ?, ?, ?, ?, ?)",
			sess.ID, rec.Index, rec.IssuesBefore, rec.IssuesAfter, rec.FixesApplied, rec.ElapsedMS,
		); err != nil {
			return fmt.Errorf("history: record iteration %d of %s: %w", rec.Index, sess.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

// Summary is one past session as listed by `healer status`.
type Summary struct {
	ID             string
	RepoPath       string
	Description    string
	Status         heal.Status
	ExitCode       int
	IssuesFound    int
	IssuesResolved int
	FixesApplied   int
	FilesModified  int
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Recent returns the most recently started sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Summary, error) {
	if limit < 1 {
		limit = 10
	}
	const q = `
		SELECT id, repo_path, description, status, exit_code,
			issues_found, issues_resolved, fixes_applied, files_modified,
			started_at, finished_at
		FROM sessions ORDER BY started_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		var status, started, finished string
		if err := rows.Scan(&sm.ID, &sm.RepoPath, &sm.Description, &status, &sm.ExitCode,
			&sm.IssuesFound, &sm.IssuesResolved, &sm.FixesApplied, &sm.FilesModified,
			&started, &finished); err != nil {
			return nil, fmt.Errorf("history: scan session: %w", err)
		}
		sm.Status = heal.Status(status)
		if sm.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("history: parse started_at: %w", err)
		}
		if sm.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("history: parse finished_at: %w", err)
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list sessions: %w", err)
	}
	return out, nil
}

// Iterations returns a session's iteration records in index order.
func (s *Store) Iterations(ctx context.Context, sessionID string) ([]heal.IterationRecord, error) {
	const q = `
		SELECT idx, issues_before, issues_after, fixes_applied, elapsed_ms
		FROM iterations WHERE session_id = ? ORDER BY idx`
	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("history: list iterations: %w", err)
	}
	defer rows.Close()

	var out []heal.IterationRecord
	for rows.Next() {
		var rec heal.IterationRecord
		if err := rows.Scan(&rec.Index, &rec.IssuesBefore, &rec.IssuesAfter, &rec.FixesApplied, &rec.ElapsedMS); err != nil {
			return nil, fmt.Errorf("history: scan iteration: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list iterations: %w", err)
	}
	return out, nil
}
