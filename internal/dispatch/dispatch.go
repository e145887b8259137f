// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dispatch runs paper workers on a bounded pool. Each attempt is
// bounded by a hard timeout; failed attempts are retried with exponential
// backoff up to a fixed cap. Every input record yields exactly one outcome.
// Successful results are handed back to the dispatching goroutine, which is
// the only writer of the checkpoint.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-triage/internal/analyzer"
	"github.com/pdiddy/paper-triage/internal/observability"
	"github.com/pdiddy/paper-triage/internal/queue"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// Defaults applied to zero Config fields.
const (
	DefaultTaskTimeout     = 300 * time.Second
	DefaultMaxAttempts     = 3
	DefaultBackoffBase     = 2 * time.Second
	DefaultCheckpointEvery = 10
)

// Processor analyzes one record. worker.Worker implements it.
type Processor interface {
	ProcessOne(ctx context.Context, rec types.PaperRecord) (types.AnalysisResult, error)
}

// Checkpointer persists completed results. checkpoint.Writer implements it.
type Checkpointer interface {
	Append(results []types.AnalysisResult) error
}

// Config controls concurrency, timeouts and retries.
type Config struct {
	MaxConcurrency  int
	TaskTimeout     time.Duration
	MaxAttempts     int
	BackoffBase     time.Duration
	CheckpointEvery int
}

// ConfigFrom converts the persisted dispatch settings.
func ConfigFrom(c types.DispatchConfig) Config {
	return Config{
		MaxConcurrency:  c.Concurrency,
		TaskTimeout:     c.TaskTimeout,
		MaxAttempts:     c.MaxAttempts,
		BackoffBase:     c.BackoffBase,
		CheckpointEvery: c.CheckpointEvery,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 1
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = DefaultCheckpointEvery
	}
	return c
}

// Backoff returns the delay before the attempt following attempt:
// BackoffBase, 2·BackoffBase, 4·BackoffBase, ...
func (c Config) Backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt-1))) * c.BackoffBase
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCheckpoint sets the checkpoint sink for successful results.
func WithCheckpoint(c Checkpointer) Option {
	return func(d *Dispatcher) { d.checkpoint = c }
}

// WithMetrics records attempts and outcomes in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithStatus prints one human-readable line per outcome and retry to w.
func WithStatus(w io.Writer) Option {
	return func(d *Dispatcher) { d.status = w }
}

// Dispatcher drives a Processor over a set of records.
type Dispatcher struct {
	proc       Processor
	cfg        Config
	state      *State
	checkpoint Checkpointer
	metrics    *observability.Metrics
	log        zerolog.Logger
	status     io.Writer
}

// New creates a Dispatcher. Zero Config fields take the package defaults.
func New(proc Processor, cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		proc:   proc,
		cfg:    cfg.withDefaults(),
		state:  &State{},
		log:    zerolog.Nop(),
		status: io.Discard,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the dispatcher's progress counters.
func (d *Dispatcher) State() *State { return d.state }

// attemptKind is the explicit result of one attempt.
type attemptKind int

const (
	attemptSuccess attemptKind = iota
	attemptTransient
	attemptPermanent
)

type attemptResult struct {
	kind    attemptKind
	failure types.FailureKind
	result  types.AnalysisResult
	err     error
}

// Dispatch processes records and returns one outcome per record, in no
// particular order. If ctx is cancelled, workers stop taking new records,
// results collected so far are checkpointed, and the partial outcomes are
// returned with ctx's error.
func (d *Dispatcher) Dispatch(ctx context.Context, records []types.PaperRecord) ([]types.Outcome, error) {
	d.state.start(len(records))
	if len(records) == 0 {
		return nil, nil
	}

	q := queue.New(records)
	outcomes := make(chan types.Outcome)

	g, gctx := errgroup.WithContext(ctx)
	workers := min(d.cfg.MaxConcurrency, len(records))
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return d.work(gctx, q, outcomes)
		})
	}

	var waitErr error
	go func() {
		waitErr = g.Wait()
		close(outcomes)
	}()

	out := make([]types.Outcome, 0, len(records))
	pending := make([]types.AnalysisResult, 0, d.cfg.CheckpointEvery)
	for o := range outcomes {
		out = append(out, o)
		if o.Failed() {
			d.state.failed()
			d.metrics.Outcome("failed")
			continue
		}
		d.state.completed()
		d.metrics.Outcome(string(o.Result.Decision))
		pending = append(pending, *o.Result)
		if len(pending) >= d.cfg.CheckpointEvery {
			d.flush(pending)
			pending = pending[:0]
		}
	}
	d.flush(pending)

	if waitErr != nil {
		return out, waitErr
	}
	return out, nil
}

// work is one pool goroutine.
func (d *Dispatcher) work(ctx context.Context, q *queue.Queue, outcomes chan<- types.Outcome) error {
	for {
		item, ok, err := q.Dequeue(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		ar := d.attempt(ctx, item)
		if ctx.Err() != nil {
			q.Done(item)
			return ctx.Err()
		}

		rec := item.Record
		log := observability.WithRecord(d.log, rec.ID, item.Attempt)

		switch {
		case ar.kind == attemptSuccess:
			q.Done(item)
			fmt.Fprintf(d.status, "analyzed %s: %s (%.2f)\n", rec.ID, ar.result.Decision, ar.result.Composite)
			log.Debug().Str("decision", string(ar.result.Decision)).Float64("composite", ar.result.Composite).Msg("analyzed")
			res := ar.result
			if !send(ctx, outcomes, types.Outcome{Result: &res, Attempts: item.Attempt}) {
				return ctx.Err()
			}

		case ar.kind == attemptTransient && item.Attempt < d.cfg.MaxAttempts:
			delay := d.cfg.Backoff(item.Attempt)
			d.state.retried()
			d.metrics.Retried()
			fmt.Fprintf(d.status, "retry    %s: attempt %d/%d %s: %v (next in %v)\n",
				rec.ID, item.Attempt, d.cfg.MaxAttempts, ar.failure, ar.err, delay)
			log.Warn().Err(ar.err).Str("kind", string(ar.failure)).Dur("backoff", delay).Msg("attempt failed, retrying")
			q.Requeue(item, delay)

		default:
			q.Done(item)
			fmt.Fprintf(d.status, "failed   %s after %d attempt(s): %v\n", rec.ID, item.Attempt, ar.err)
			log.Error().Err(ar.err).Str("kind", string(ar.failure)).Msg("record failed")
			fr := &types.FailureRecord{
				Record:   rec,
				Error:    ar.err.Error(),
				Kind:     ar.failure,
				Attempts: item.Attempt,
			}
			if !send(ctx, outcomes, types.Outcome{Failure: fr, Attempts: item.Attempt}) {
				return ctx.Err()
			}
		}
	}
}

// attempt runs one bounded call to the processor. The processor runs in its
// own goroutine so that a call ignoring its context cannot hold the pool
// slot past the timeout; its late result is discarded.
func (d *Dispatcher) attempt(ctx context.Context, item queue.Item) attemptResult {
	d.state.attempted()
	d.metrics.AttemptStarted()
	start := time.Now()

	actx, cancel := context.WithTimeout(ctx, d.cfg.TaskTimeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		res, err := d.proc.ProcessOne(actx, item.Record)
		done <- classify(res, err)
	}()

	var ar attemptResult
	select {
	case ar = <-done:
	case <-actx.Done():
		ar = attemptResult{kind: attemptTransient, err: actx.Err()}
	}

	if ar.kind != attemptSuccess && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		ar.kind = attemptTransient
		ar.failure = types.FailureTimeout
		ar.err = fmt.Errorf("attempt exceeded %v: %w", d.cfg.TaskTimeout, context.DeadlineExceeded)
	}
	if ar.failure == types.FailureTimeout {
		d.state.timedOut()
	}

	result := "success"
	if ar.kind != attemptSuccess {
		result = string(ar.failure)
	}
	d.metrics.AttemptFinished(result, time.Since(start))
	return ar
}

func classify(res types.AnalysisResult, err error) attemptResult {
	if err == nil {
		return attemptResult{kind: attemptSuccess, result: res}
	}
	kind := analyzer.Classify(err)
	if !kind.Retryable() {
		return attemptResult{kind: attemptPermanent, failure: kind, err: err}
	}
	return attemptResult{kind: attemptTransient, failure: kind, err: err}
}

func send(ctx context.Context, ch chan<- types.Outcome, o types.Outcome) bool {
	select {
	case ch <- o:
		return true
	case <-ctx.Done():
		return false
	}
}

// flush appends results to the checkpoint. A failed flush is logged and the
// run continues; the results are still returned to the caller.
func (d *Dispatcher) flush(results []types.AnalysisResult) {
	if d.checkpoint == nil || len(results) == 0 {
		return
	}
	err := d.checkpoint.Append(results)
	d.metrics.CheckpointFlushed(err)
	if err != nil {
		d.log.Warn().Err(err).Int("results", len(results)).Msg("checkpoint flush failed")
		return
	}
	d.state.checkpointed(len(results))
}
