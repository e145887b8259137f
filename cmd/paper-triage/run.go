// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-triage/internal/analyzer"
	"github.com/pdiddy/paper-triage/internal/ledger"
	"github.com/pdiddy/paper-triage/internal/observability"
	"github.com/pdiddy/paper-triage/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [sources...]",
	Short: "Analyze papers from listing files and update the dataset",
	Long: `Run reads the given listing files (or source.paths from the config),
skips papers already in the checkpoint, analyzes the rest in parallel, and
writes the dataset. Each paper is retried on transient failures up to
--max-attempts times.

Without --update the dataset file is replaced with the checkpointed and new
results. With --update it is merged into the existing file; an existing entry
is replaced only when its composite score moves by more than
dataset.update_threshold.

Exit status is non-zero when a source cannot be read, when no paper succeeds,
or when the dataset cannot be written.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Int("limit", 0, "maximum number of papers to analyze (0 = all)")
	runCmd.Flags().Int("min-tier", 0, "only analyze papers with tier 1..N (0 = no tier filter)")
	runCmd.Flags().Bool("update", false, "merge into the existing dataset instead of replacing it")
	runCmd.Flags().Int("concurrency", 0, "number of papers analyzed in parallel (default 4)")
	runCmd.Flags().String("output", "", "dataset file, .json or .yaml (default dataset.json)")
	runCmd.Flags().String("checkpoint", "", "checkpoint file (default .paper-triage/checkpoint.jsonl)")
	runCmd.Flags().Duration("timeout", 0, "time limit for one attempt at one paper (default 300s)")
	runCmd.Flags().Int("max-attempts", 0, "attempts per paper before it is reported failed (default 3)")
	runCmd.Flags().String("backend", "", "analyzer backend: claude or command (default claude)")
	runCmd.Flags().String("model", "", "Claude model for the claude backend")
	runCmd.Flags().Float64("rate-limit", 0, "maximum analyzer calls per second (0 = unlimited)")
	runCmd.Flags().String("ledger", "", "SQLite run ledger to record outcomes in")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address during the run")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfg.Source.Paths = args
	}
	if len(cfg.Source.Paths) == 0 {
		return fmt.Errorf("provide one or more listing files (or set source.paths in the config)")
	}

	backend, err := analyzer.New(cfg.Analyzer)
	if err != nil {
		return err
	}

	runID := ledger.NewRunID()
	log := observability.WithRun(logger, runID)
	ctx := log.WithContext(cmd.Context())

	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(reg)
		stop := serveMetrics(cfg.MetricsAddr, reg)
		defer stop()
	}

	summary, err := pipeline.Run(ctx, cfg, pipeline.Deps{
		Backend: backend,
		Logger:  logger,
		Status:  os.Stdout,
		Metrics: metrics,
		RunID:   runID,
	})
	if summary != nil {
		summary.Print(os.Stdout)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("run interrupted; completed papers are checkpointed in %s", cfg.Dataset.Checkpoint)
	case err != nil:
		return err
	}
	fmt.Printf("Wrote %s\n", cfg.Dataset.Output)
	return nil
}

// serveMetrics exposes reg on addr/metrics until the returned function is
// called.
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
