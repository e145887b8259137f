// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-triage/pkg/types"
)

func newScorer(t *testing.T, weights map[string]float64) *Scorer {
	t.Helper()
	s, err := New(types.ScoringConfig{
		Weights:          weights,
		IncludeThreshold: DefaultIncludeThreshold,
		ExcludeThreshold: DefaultExcludeThreshold,
	})
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.ScoringConfig
		err  string
	}{
		{
			name: "unprefixed dimension",
			cfg:  types.ScoringConfig{Weights: map[string]float64{"relevance": 1}, IncludeThreshold: 7, ExcludeThreshold: 4},
			err:  "must start with",
		},
		{
			name: "negative weight",
			cfg:  types.ScoringConfig{Weights: map[string]float64{"paper.relevance": -1}, IncludeThreshold: 7, ExcludeThreshold: 4},
			err:  "non-negative",
		},
		{
			name: "zero total",
			cfg:  types.ScoringConfig{Weights: map[string]float64{"paper.relevance": 0}, IncludeThreshold: 7, ExcludeThreshold: 4},
			err:  "sum to zero",
		},
		{
			name: "inverted bands",
			cfg:  types.ScoringConfig{IncludeThreshold: 4, ExcludeThreshold: 7},
			err:  "must be below",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestCombine(t *testing.T) {
	weights := map[string]float64{"paper.relevance": 2, "paper.novelty": 1, "repo.code_quality": 1}
	s := newScorer(t, weights)

	tests := []struct {
		name          string
		paper         *types.PaperAnalysis
		repo          *types.RepositoryAnalysis
		wantComposite float64
		wantScores    map[string]float64
	}{
		{
			name:          "paper and valid repo",
			paper:         &types.PaperAnalysis{Scores: map[string]float64{"relevance": 8, "novelty": 4}},
			repo:          &types.RepositoryAnalysis{IsValid: true, Scores: map[string]float64{"code_quality": 8}},
			wantComposite: 7, // (16 + 4 + 8) / 4
			wantScores:    map[string]float64{"paper.relevance": 8, "paper.novelty": 4, "repo.code_quality": 8},
		},
		{
			name:          "no repository contributes zero",
			paper:         &types.PaperAnalysis{Scores: map[string]float64{"relevance": 8, "novelty": 4}},
			wantComposite: 5,
			wantScores:    map[string]float64{"paper.relevance": 8, "paper.novelty": 4},
		},
		{
			name:          "invalid repository scores are dropped",
			paper:         &types.PaperAnalysis{Scores: map[string]float64{"relevance": 8, "novelty": 4}},
			repo:          &types.RepositoryAnalysis{IsValid: false, Scores: map[string]float64{"code_quality": 10}},
			wantComposite: 5,
			wantScores:    map[string]float64{"paper.relevance": 8, "paper.novelty": 4},
		},
		{
			name:          "missing dimension contributes zero",
			paper:         &types.PaperAnalysis{Scores: map[string]float64{"relevance": 10}},
			wantComposite: 5,
			wantScores:    map[string]float64{"paper.relevance": 10},
		},
		{
			name:          "unweighted dimensions are kept but ignored",
			paper:         &types.PaperAnalysis{Scores: map[string]float64{"relevance": 4, "clarity": 10}},
			wantComposite: 2,
			wantScores:    map[string]float64{"paper.relevance": 4, "paper.clarity": 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores, composite := s.Combine(tt.paper, tt.repo)
			assert.InDelta(t, tt.wantComposite, composite, 1e-9)
			assert.Equal(t, tt.wantScores, scores)
		})
	}
}

func TestCombine_DefaultWeights(t *testing.T) {
	s := newScorer(t, nil)
	all10 := func(dims ...string) map[string]float64 {
		m := make(map[string]float64)
		for _, d := range dims {
			m[d] = 10
		}
		return m
	}
	_, composite := s.Combine(
		&types.PaperAnalysis{Scores: all10("relevance", "novelty", "clarity")},
		&types.RepositoryAnalysis{IsValid: true, Scores: all10("code_quality", "documentation", "activity")},
	)
	assert.Equal(t, 10.0, composite)
}

func TestClassify_Boundaries(t *testing.T) {
	s := newScorer(t, nil)

	tests := []struct {
		composite float64
		want      types.Decision
	}{
		{10, types.DecisionInclude},
		{7.0, types.DecisionInclude},
		{6.999999, types.DecisionReview},
		{6.0, types.DecisionReview},
		{4.000001, types.DecisionReview},
		{4.0, types.DecisionExclude},
		{0, types.DecisionExclude},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Classify(tt.composite), "composite %v", tt.composite)
	}
}

func TestClassify_CompositeExactlyAtThreshold(t *testing.T) {
	s := newScorer(t, map[string]float64{"paper.relevance": 1, "paper.novelty": 1, "paper.clarity": 1})
	_, composite := s.Combine(&types.PaperAnalysis{Scores: map[string]float64{"relevance": 7, "novelty": 7, "clarity": 7}}, nil)
	require.Equal(t, 7.0, composite)
	assert.Equal(t, types.DecisionInclude, s.Classify(composite))

	_, below := s.Combine(&types.PaperAnalysis{Scores: map[string]float64{"relevance": 6, "novelty": 6, "clarity": 6}}, nil)
	assert.Equal(t, types.DecisionReview, s.Classify(below))
}
