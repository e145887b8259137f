// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scoring combines analyzer scores into a composite and classifies
// it into a triage decision. Weights and thresholds are configuration.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// Dimension prefixes for paper-level and repository-level scores.
const (
	PaperPrefix = "paper."
	RepoPrefix  = "repo."
)

// DefaultWeights is the weighting used when none is configured.
var DefaultWeights = map[string]float64{
	"paper.relevance":    3,
	"paper.novelty":      1,
	"paper.clarity":      1,
	"repo.code_quality":  2,
	"repo.documentation": 1,
	"repo.activity":      1,
}

// Default classification bands.
const (
	DefaultIncludeThreshold = 7.0
	DefaultExcludeThreshold = 4.0
)

// Scorer applies a fixed weighting and threshold policy.
type Scorer struct {
	weights map[string]float64
	dims    []string
	total   float64
	include float64
	exclude float64
}

// New validates cfg and returns a Scorer. An empty weight map selects
// DefaultWeights.
func New(cfg types.ScoringConfig) (*Scorer, error) {
	weights := cfg.Weights
	if len(weights) == 0 {
		weights = DefaultWeights
	}

	s := &Scorer{weights: make(map[string]float64, len(weights)), include: cfg.IncludeThreshold, exclude: cfg.ExcludeThreshold}
	for dim, w := range weights {
		if !strings.HasPrefix(dim, PaperPrefix) && !strings.HasPrefix(dim, RepoPrefix) {
			return nil, fmt.Errorf("weight %q: dimension must start with %q or %q", dim, PaperPrefix, RepoPrefix)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight %q: must be a non-negative number, got %v", dim, w)
		}
		s.weights[dim] = w
		s.dims = append(s.dims, dim)
		s.total += w
	}
	sort.Strings(s.dims)

	if s.total == 0 {
		return nil, fmt.Errorf("weights sum to zero")
	}
	if s.exclude >= s.include {
		return nil, fmt.Errorf("exclude threshold %v must be below include threshold %v", s.exclude, s.include)
	}
	return s, nil
}

// Combine prefixes the analyzers' scores and computes the weighted composite
// Σ w·s / Σ w over the configured dimensions. A missing dimension
// contributes zero. Repository scores are kept and counted only when the
// repository analysis is present and valid, so the returned scores feed the
// same dimensions as the composite. The composite is rounded to six decimals
// so it serializes identically across runs.
func (s *Scorer) Combine(paper *types.PaperAnalysis, repo *types.RepositoryAnalysis) (map[string]float64, float64) {
	scores := make(map[string]float64)
	if paper != nil {
		for k, v := range paper.Scores {
			scores[PaperPrefix+k] = v
		}
	}
	if repo != nil && repo.IsValid {
		for k, v := range repo.Scores {
			scores[RepoPrefix+k] = v
		}
	}

	var sum float64
	for _, dim := range s.dims {
		sum += s.weights[dim] * scores[dim]
	}
	return scores, round(sum / s.total)
}

// Classify maps a composite onto a decision. Both bands are inclusive:
// composite >= include is INCLUDE, composite <= exclude is EXCLUDE.
func (s *Scorer) Classify(composite float64) types.Decision {
	switch {
	case composite >= s.include:
		return types.DecisionInclude
	case composite <= s.exclude:
		return types.DecisionExclude
	default:
		return types.DecisionReview
	}
}

// Thresholds returns the include and exclude bands.
func (s *Scorer) Thresholds() (include, exclude float64) {
	return s.include, s.exclude
}

func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
