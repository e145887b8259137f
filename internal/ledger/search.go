// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// QueryOptions holds parameters for ledger searches.
type QueryOptions struct {
	// Query is matched against title, summary and error text.
	Query string

	// Decision filters successful outcomes by decision.
	Decision types.Decision

	// FailedOnly restricts results to failures.
	FailedOnly bool

	// PaperID filters by record identifier.
	PaperID string

	// MaxResults limits result count. Zero uses the default of 20.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Decision == "" && !q.FailedOnly && q.PaperID == ""
}

// Entry is one recorded outcome.
type Entry struct {
	RunID       string            `json:"run_id" yaml:"run_id"`
	RunStarted  string            `json:"run_started" yaml:"run_started"`
	PaperID     string            `json:"paper_id" yaml:"paper_id"`
	Title       string            `json:"title" yaml:"title"`
	SourceURL   string            `json:"source_url" yaml:"source_url"`
	Summary     string            `json:"summary,omitempty" yaml:"summary,omitempty"`
	Decision    types.Decision    `json:"decision,omitempty" yaml:"decision,omitempty"`
	Composite   float64           `json:"composite" yaml:"composite"`
	Failed      bool              `json:"failed" yaml:"failed"`
	FailureKind types.FailureKind `json:"failure_kind,omitempty" yaml:"failure_kind,omitempty"`
	Error       string            `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts    int               `json:"attempts" yaml:"attempts"`
}

// Search queries recorded outcomes. Full-text queries are ranked by
// relevance when FTS5 is available; otherwise results are newest run first.
func (s *Store) Search(ctx context.Context, opts QueryOptions) ([]Entry, error) {
	if opts.IsEmpty() {
		return nil, fmt.Errorf("search requires a query or at least one filter")
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != "" && s.fts
	)

	const columns = `o.run_id, r.started_at, o.paper_id, o.title, o.source_url, o.summary,
		o.decision, o.composite, o.failed, o.failure_kind, o.error, o.attempts`

	if useFTS {
		qb.WriteString(`SELECT ` + columns + `
			FROM outcomes_fts
			JOIN outcomes o ON o.rowid = outcomes_fts.rowid
			JOIN runs r ON r.id = o.run_id
			WHERE outcomes_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(`SELECT ` + columns + `
			FROM outcomes o
			JOIN runs r ON r.id = o.run_id
			WHERE 1=1`)
		if opts.Query != "" {
			like := "%" + opts.Query + "%"
			qb.WriteString(` AND (o.title LIKE ? OR o.summary LIKE ? OR o.error LIKE ?)`)
			args = append(args, like, like, like)
		}
	}

	if opts.Decision != "" {
		qb.WriteString(` AND o.decision = ?`)
		args = append(args, string(opts.Decision))
	}
	if opts.FailedOnly {
		qb.WriteString(` AND o.failed = 1`)
	}
	if opts.PaperID != "" {
		qb.WriteString(` AND o.paper_id = ?`)
		args = append(args, opts.PaperID)
	}

	if useFTS {
		qb.WriteString(` ORDER BY outcomes_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY r.started_at DESC, o.paper_id`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                            Entry
			title, url, summary, errText sql.NullString
			decision, kind               sql.NullString
		)
		if err := rows.Scan(
			&e.RunID, &e.RunStarted, &e.PaperID, &title, &url, &summary,
			&decision, &e.Composite, &e.Failed, &kind, &errText, &e.Attempts,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		e.Title = title.String
		e.SourceURL = url.String
		e.Summary = summary.String
		e.Decision = types.Decision(decision.String)
		e.FailureKind = types.FailureKind(kind.String)
		e.Error = errText.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID         string `json:"id" yaml:"id"`
	StartedAt  string `json:"started_at" yaml:"started_at"`
	FinishedAt string `json:"finished_at" yaml:"finished_at"`
	Succeeded  int    `json:"succeeded" yaml:"succeeded"`
	Failed     int    `json:"failed" yaml:"failed"`
	Skipped    int    `json:"skipped" yaml:"skipped"`
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = defaultMaxResults
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, COALESCE(finished_at, ''), succeeded, failed, skipped
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Succeeded, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
