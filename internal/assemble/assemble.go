// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble groups analysis results by decision, computes dataset
// statistics, and merges a batch into a previously persisted dataset
// without duplicating identifiers.
package assemble

import (
	"math"
	"sort"
	"time"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// DefaultUpdateThreshold is the composite delta an incoming result must
// exceed to replace an existing entry.
const DefaultUpdateThreshold = 0.5

// CompositeDimension is the statistics key for the composite score.
const CompositeDimension = "composite"

// Options controls merging.
type Options struct {
	// UpdateThreshold: an existing entry is replaced only when
	// |new.Composite - old.Composite| > UpdateThreshold.
	UpdateThreshold float64

	// Now stamps the dataset metadata. Defaults to time.Now.
	Now func() time.Time
}

// Assemble merges results into existing (which may be nil) and returns a new
// dataset. existing is not modified. The output depends only on the set of
// results, not their order, and assembling the same results twice yields
// the same entries as assembling them once.
func Assemble(results []types.AnalysisResult, existing *types.Dataset, opts Options) *types.Dataset {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	entries := make(map[string]types.AnalysisResult)
	if existing != nil {
		for _, r := range existing.Systems.All() {
			entries[r.Record.ID] = r
		}
	}

	for _, r := range collapse(results) {
		old, ok := entries[r.Record.ID]
		if ok && math.Abs(r.Composite-old.Composite) <= opts.UpdateThreshold {
			continue
		}
		entries[r.Record.ID] = r
	}

	ds := &types.Dataset{
		Systems: types.Systems{
			Included: []types.AnalysisResult{},
			Excluded: []types.AnalysisResult{},
			Review:   []types.AnalysisResult{},
		},
	}
	for _, id := range sortedKeys(entries) {
		r := entries[id]
		bucket := ds.Systems.Bucket(r.Decision)
		*bucket = append(*bucket, r)
	}

	ds.Metadata = types.DatasetMetadata{
		GeneratedAt:     now().UTC().Truncate(time.Second),
		Total:           len(entries),
		Included:        len(ds.Systems.Included),
		Excluded:        len(ds.Systems.Excluded),
		Review:          len(ds.Systems.Review),
		UpdateThreshold: opts.UpdateThreshold,
	}
	ds.Statistics = Statistics(ds.Systems)
	return ds
}

// collapse sorts results by identifier and keeps one result per identifier:
// the highest composite, then the latest analysis, then the greatest title.
func collapse(results []types.AnalysisResult) []types.AnalysisResult {
	sorted := make([]types.AnalysisResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Record.ID != b.Record.ID {
			return a.Record.ID < b.Record.ID
		}
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		if !a.AnalyzedAt.Equal(b.AnalyzedAt) {
			return a.AnalyzedAt.After(b.AnalyzedAt)
		}
		return a.Record.Title > b.Record.Title
	})

	out := sorted[:0]
	for i, r := range sorted {
		if i > 0 && r.Record.ID == sorted[i-1].Record.ID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Statistics counts entries per decision and summarizes every score
// dimension, plus the composite. Means are rounded to four decimals.
func Statistics(s types.Systems) types.DatasetStatistics {
	stats := types.DatasetStatistics{
		Counts: map[types.Decision]int{
			types.DecisionInclude: len(s.Included),
			types.DecisionExclude: len(s.Excluded),
			types.DecisionReview:  len(s.Review),
		},
		Scores: map[string]types.ScoreDistribution{},
	}

	sums := map[string]float64{}
	observe := func(dim string, v float64) {
		d, ok := stats.Scores[dim]
		if !ok {
			d = types.ScoreDistribution{Min: v, Max: v}
		}
		d.Count++
		d.Min = math.Min(d.Min, v)
		d.Max = math.Max(d.Max, v)
		stats.Scores[dim] = d
		sums[dim] += v
	}

	// Iterate in a fixed order so floating-point sums are reproducible.
	for _, r := range s.All() {
		observe(CompositeDimension, r.Composite)
		for _, dim := range sortedKeys(r.Scores) {
			observe(dim, r.Scores[dim])
		}
	}

	for dim, d := range stats.Scores {
		d.Mean = math.Round(sums[dim]/float64(d.Count)*1e4) / 1e4
		stats.Scores[dim] = d
	}
	return stats
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
