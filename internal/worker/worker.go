// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package worker analyzes one paper end to end: paper analysis, optional
// repository analysis, weighting and classification.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/paper-triage/internal/analyzer"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// Scorer weights analyzer scores and classifies the composite.
type Scorer interface {
	Combine(paper *types.PaperAnalysis, repo *types.RepositoryAnalysis) (map[string]float64, float64)
	Classify(composite float64) types.Decision
}

// Worker holds the analyzers and scoring policy shared by all tasks. It has
// no mutable state and is safe for concurrent use.
type Worker struct {
	papers analyzer.PaperAnalyzer
	repos  analyzer.RepositoryAnalyzer
	scorer Scorer
	now    func() time.Time
}

// New creates a Worker.
func New(papers analyzer.PaperAnalyzer, repos analyzer.RepositoryAnalyzer, scorer Scorer) *Worker {
	return &Worker{papers: papers, repos: repos, scorer: scorer, now: time.Now}
}

// ProcessOne analyzes a single record. Analyzer errors are returned wrapped
// so analyzer.Classify still sees the underlying kind.
func (w *Worker) ProcessOne(ctx context.Context, rec types.PaperRecord) (types.AnalysisResult, error) {
	pa, err := w.papers.AnalyzePaper(ctx, analyzer.PaperRequest{
		Title:   rec.Title,
		URL:     rec.SourceURL,
		Content: rec.ContentSnippet,
	})
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("paper analysis of %s: %w", rec.ID, err)
	}

	var ra *types.RepositoryAnalysis
	if pa.RepositoryURL != "" {
		r, err := w.repos.AnalyzeRepository(ctx, analyzer.RepositoryRequest{
			RepositoryURL: pa.RepositoryURL,
			PaperTitle:    rec.Title,
		})
		if err != nil {
			return types.AnalysisResult{}, fmt.Errorf("repository analysis of %s (%s): %w", rec.ID, pa.RepositoryURL, err)
		}
		ra = &r
	}

	scores, composite := w.scorer.Combine(&pa, ra)
	return types.AnalysisResult{
		Record:             rec,
		PaperAnalysis:      &pa,
		RepositoryAnalysis: ra,
		Scores:             scores,
		Composite:          composite,
		Decision:           w.scorer.Classify(composite),
		AnalyzedAt:         w.now().UTC().Truncate(time.Second),
	}, nil
}
