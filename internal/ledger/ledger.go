// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records every run and its per-record outcomes in a SQLite
// database so past triage decisions and failures can be searched. The
// ledger is an audit trail; the dataset file stays the source of truth.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-triage/pkg/types"
)

const defaultMaxResults = 20

// Run describes one pipeline invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Sources    []string
	Succeeded  int
	Failed     int
	Skipped    int
}

// Store manages the ledger database.
type Store struct {
	db  *sql.DB
	fts bool
}

// Open opens or creates the ledger at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FullText reports whether searches use the FTS5 index. Builds without the
// sqlite_fts5 tag fall back to substring matching.
func (s *Store) FullText() bool { return s.fts }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			sources TEXT,
			succeeded INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			paper_id TEXT NOT NULL,
			title TEXT,
			source_url TEXT,
			summary TEXT,
			decision TEXT,
			composite REAL,
			failed INTEGER NOT NULL DEFAULT 0,
			failure_kind TEXT,
			error TEXT,
			attempts INTEGER NOT NULL DEFAULT 0,
			UNIQUE(run_id, paper_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_paper_id ON outcomes(paper_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_decision ON outcomes(decision)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='outcomes_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		s.fts = true
		return nil
	}

	// Without FTS5 compiled in the virtual table fails; search then uses LIKE.
	if _, err := s.db.Exec(
		`CREATE VIRTUAL TABLE outcomes_fts USING fts5(title, summary, error, content=outcomes, content_rowid=rowid)`,
	); err != nil {
		return nil
	}
	triggers := []string{
		`CREATE TRIGGER outcomes_ai AFTER INSERT ON outcomes BEGIN
			INSERT INTO outcomes_fts(rowid, title, summary, error) VALUES (new.rowid, new.title, new.summary, new.error);
		END`,
		`CREATE TRIGGER outcomes_ad AFTER DELETE ON outcomes BEGIN
			INSERT INTO outcomes_fts(outcomes_fts, rowid, title, summary, error) VALUES('delete', old.rowid, old.title, old.summary, old.error);
		END`,
		`CREATE TRIGGER outcomes_au AFTER UPDATE ON outcomes BEGIN
			INSERT INTO outcomes_fts(outcomes_fts, rowid, title, summary, error) VALUES('delete', old.rowid, old.title, old.summary, old.error);
			INSERT INTO outcomes_fts(rowid, title, summary, error) VALUES (new.rowid, new.title, new.summary, new.error);
		END`,
	}
	for _, stmt := range triggers {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	s.fts = true
	return nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RecordRun stores run and its outcomes in one transaction. An empty run ID
// is replaced with a new one; the ID used is returned.
func (s *Store) RecordRun(ctx context.Context, run Run, outcomes []types.Outcome) (string, error) {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	finished := ""
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, sources, succeeded, failed, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			finished_at=excluded.finished_at, sources=excluded.sources,
			succeeded=excluded.succeeded, failed=excluded.failed, skipped=excluded.skipped`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339), finished,
		strings.Join(run.Sources, "\n"), run.Succeeded, run.Failed, run.Skipped,
	)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outcomes
			(run_id, paper_id, title, source_url, summary, decision, composite, failed, failure_kind, error, attempts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, paper_id) DO UPDATE SET
			title=excluded.title, source_url=excluded.source_url, summary=excluded.summary,
			decision=excluded.decision, composite=excluded.composite, failed=excluded.failed,
			failure_kind=excluded.failure_kind, error=excluded.error, attempts=excluded.attempts`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		row := outcomeRow(o)
		if _, err := stmt.ExecContext(ctx,
			run.ID, row.PaperID, row.Title, row.SourceURL, row.Summary,
			string(row.Decision), row.Composite, row.Failed,
			string(row.FailureKind), row.Error, row.Attempts,
		); err != nil {
			return "", fmt.Errorf("inserting outcome %s: %w", row.PaperID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

func outcomeRow(o types.Outcome) Entry {
	e := Entry{Attempts: o.Attempts}
	switch {
	case o.Result != nil:
		r := o.Result
		e.PaperID = r.Record.ID
		e.Title = r.Record.Title
		e.SourceURL = r.Record.SourceURL
		e.Decision = r.Decision
		e.Composite = r.Composite
		if r.RepositoryAnalysis != nil && r.RepositoryAnalysis.Summary != "" {
			e.Summary = r.RepositoryAnalysis.Summary
		} else if r.PaperAnalysis != nil {
			e.Summary = r.PaperAnalysis.Summary
		}
	case o.Failure != nil:
		f := o.Failure
		e.PaperID = f.Record.ID
		e.Title = f.Record.Title
		e.SourceURL = f.Record.SourceURL
		e.Failed = true
		e.FailureKind = f.Kind
		e.Error = f.Error
	}
	return e
}
