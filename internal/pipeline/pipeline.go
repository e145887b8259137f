// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline wires the stages of a triage run: read listings, skip
// checkpointed records, dispatch the rest to workers, assemble the dataset
// from checkpointed and fresh results, write it, and record the run in the
// ledger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-triage/internal/analyzer"
	"github.com/pdiddy/paper-triage/internal/assemble"
	"github.com/pdiddy/paper-triage/internal/checkpoint"
	"github.com/pdiddy/paper-triage/internal/dataset"
	"github.com/pdiddy/paper-triage/internal/dispatch"
	"github.com/pdiddy/paper-triage/internal/ledger"
	"github.com/pdiddy/paper-triage/internal/observability"
	"github.com/pdiddy/paper-triage/internal/scoring"
	"github.com/pdiddy/paper-triage/internal/source"
	"github.com/pdiddy/paper-triage/internal/worker"
	"github.com/pdiddy/paper-triage/pkg/types"
)

var (
	// ErrNoRecords is returned when the sources contain no paper records.
	ErrNoRecords = errors.New("no paper records found in sources")

	// ErrNoneSucceeded is returned when records were dispatched and every
	// one of them failed.
	ErrNoneSucceeded = errors.New("no records were analyzed successfully")
)

// Deps are the collaborators of a run. Zero values select defaults: a
// discarding status writer, a disabled logger, no metrics and time.Now.
type Deps struct {
	Backend analyzer.Backend
	Logger  zerolog.Logger
	Status  io.Writer
	Metrics *observability.Metrics
	Now     func() time.Time
	RunID   string
}

func (d Deps) withDefaults() Deps {
	if d.Status == nil {
		d.Status = io.Discard
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.RunID == "" {
		d.RunID = ledger.NewRunID()
	}
	return d
}

// Summary reports what a run did.
type Summary struct {
	RunID string

	// Read is the number of distinct records in the sources.
	Read int

	// Filter counts records the checkpoint, tier filter and limit removed.
	Filter source.FilterStats

	// Dispatched is the number of records sent to workers this run.
	Dispatched int

	// Succeeded counts records analyzed this run.
	Succeeded int

	// Failures lists records that exhausted their attempts this run.
	Failures []types.FailureRecord

	// Dataset is the written dataset.
	Dataset *types.Dataset

	// Progress is the dispatcher state at the end of the run.
	Progress dispatch.Snapshot
}

// Total returns the number of records dispatched this run.
func (s *Summary) Total() int { return s.Dispatched }

// HasFailures reports whether any dispatched record failed.
func (s *Summary) HasFailures() bool { return len(s.Failures) > 0 }

// Print writes the end-of-run report.
func (s *Summary) Print(w io.Writer) {
	inc, exc, rev := 0, 0, 0
	if s.Dataset != nil {
		inc, exc, rev = s.Dataset.Metadata.Included, s.Dataset.Metadata.Excluded, s.Dataset.Metadata.Review
	}
	fmt.Fprintf(w, "\nRun summary: %d analyzed, %d failed, %d skipped (checkpointed), %d filtered (total read: %d)\n",
		s.Succeeded, len(s.Failures), s.Filter.Skipped, s.Filter.BelowTier+s.Filter.OverLimit, s.Read)
	fmt.Fprintf(w, "Dataset: %d included, %d excluded, %d review\n", inc, exc, rev)
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  failed %s (%s, %d attempt(s)): %s\n", f.Record.ID, f.Kind, f.Attempts, f.Error)
	}
}

// Run executes one triage run. The dataset is written even when ctx is
// cancelled mid-run, from everything completed so far; the cancellation
// error is then returned.
func Run(ctx context.Context, cfg types.PipelineConfig, deps Deps) (*Summary, error) {
	deps = deps.withDefaults()
	log := observability.WithRun(deps.Logger, deps.RunID)
	started := deps.Now()

	if deps.Backend == nil {
		return nil, fmt.Errorf("no analyzer backend configured")
	}
	scorer, err := scoring.New(cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("scoring configuration: %w", err)
	}

	records, err := source.NewReader(cfg.Source).ReadAll(cfg.Source.Paths)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	cp, err := checkpoint.Load(cfg.Dataset.Checkpoint)
	if err != nil {
		return nil, err
	}
	if cp.Truncated() {
		log.Warn().Str("checkpoint", cfg.Dataset.Checkpoint).Msg("ignored incomplete final checkpoint line")
	}

	todo, stats := source.Filter(records, source.FilterOptions{
		Limit:   cfg.Source.Limit,
		MinTier: cfg.Source.MinTier,
		Skip:    cp,
	})
	deps.Metrics.Skipped(stats.Skipped)
	log.Info().
		Int("read", len(records)).
		Int("checkpointed", stats.Skipped).
		Int("filtered", stats.BelowTier+stats.OverLimit).
		Int("dispatching", len(todo)).
		Msg("records selected")

	summary := &Summary{RunID: deps.RunID, Read: len(records), Filter: stats, Dispatched: len(todo)}

	writer, err := checkpoint.OpenWriter(cfg.Dataset.Checkpoint)
	if err != nil {
		return nil, err
	}
	defer writer.Close()

	d := dispatch.New(
		worker.New(deps.Backend, deps.Backend, scorer),
		dispatch.ConfigFrom(cfg.Dispatch),
		dispatch.WithCheckpoint(writer),
		dispatch.WithMetrics(deps.Metrics),
		dispatch.WithLogger(log),
		dispatch.WithStatus(deps.Status),
	)
	outcomes, dispatchErr := d.Dispatch(ctx, todo)
	summary.Progress = d.State().Snapshot()

	results := cp.Results()
	for _, o := range outcomes {
		if o.Failed() {
			summary.Failures = append(summary.Failures, *o.Failure)
			continue
		}
		summary.Succeeded++
		results = append(results, *o.Result)
	}

	ds, err := assembleAndWrite(cfg.Dataset, results, deps.Now)
	if err != nil {
		return summary, err
	}
	summary.Dataset = ds
	log.Info().
		Str("output", cfg.Dataset.Output).
		Int("total", ds.Metadata.Total).
		Int("included", ds.Metadata.Included).
		Int("excluded", ds.Metadata.Excluded).
		Int("review", ds.Metadata.Review).
		Msg("dataset written")

	recordLedger(ctx, log, cfg, ledger.Run{
		ID:         deps.RunID,
		StartedAt:  started,
		FinishedAt: deps.Now(),
		Sources:    cfg.Source.Paths,
		Succeeded:  summary.Succeeded,
		Failed:     len(summary.Failures),
		Skipped:    stats.Skipped,
	}, outcomes)

	if dispatchErr != nil {
		return summary, dispatchErr
	}
	if len(todo) > 0 && summary.Succeeded == 0 {
		return summary, ErrNoneSucceeded
	}
	return summary, nil
}

// Rebuild assembles the dataset from the checkpoint alone and writes it.
// It repeats the write step of a run whose write failed.
func Rebuild(cfg types.DatasetConfig, now func() time.Time) (*types.Dataset, error) {
	cp, err := checkpoint.Load(cfg.Checkpoint)
	if err != nil {
		return nil, err
	}
	if cp.Len() == 0 {
		return nil, fmt.Errorf("checkpoint %s holds no results", cfg.Checkpoint)
	}
	if now == nil {
		now = time.Now
	}
	return assembleAndWrite(cfg, cp.Results(), now)
}

func assembleAndWrite(cfg types.DatasetConfig, results []types.AnalysisResult, now func() time.Time) (*types.Dataset, error) {
	var existing *types.Dataset
	if cfg.Update {
		var err error
		existing, err = dataset.Read(cfg.Output)
		if err != nil {
			return nil, fmt.Errorf("loading existing dataset: %w", err)
		}
	}

	ds := assemble.Assemble(results, existing, assemble.Options{
		UpdateThreshold: cfg.UpdateThreshold,
		Now:             now,
	})
	if err := dataset.Write(ds, cfg.Output); err != nil {
		return nil, err
	}
	return ds, nil
}

// recordLedger stores the run when a ledger is configured. Failures are
// logged and never fail the run.
func recordLedger(ctx context.Context, log zerolog.Logger, cfg types.PipelineConfig, run ledger.Run, outcomes []types.Outcome) {
	if cfg.Dataset.Ledger == "" {
		return
	}
	store, err := ledger.Open(cfg.Dataset.Ledger)
	if err != nil {
		log.Warn().Err(err).Str("ledger", cfg.Dataset.Ledger).Msg("ledger unavailable")
		return
	}
	defer store.Close()

	// The run context may already be cancelled; the ledger write is short.
	if _, err := store.RecordRun(context.WithoutCancel(ctx), run, outcomes); err != nil {
		log.Warn().Err(err).Str("ledger", cfg.Dataset.Ledger).Msg("recording run in ledger failed")
	}
}
