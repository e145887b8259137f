// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-triage pipeline:
// paper records read from listings, analysis results produced by workers,
// failure records, and the persisted dataset.
package types

import "time"

// Decision is the triage outcome for an analyzed paper.
type Decision string

const (
	DecisionInclude Decision = "INCLUDE"
	DecisionExclude Decision = "EXCLUDE"
	DecisionReview  Decision = "REVIEW"
)

// Decisions lists every decision in dataset order.
var Decisions = []Decision{DecisionInclude, DecisionExclude, DecisionReview}

// Valid reports whether d is one of the known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionInclude, DecisionExclude, DecisionReview:
		return true
	}
	return false
}

// PaperRecord is one paper entry read from a source listing. Records are
// immutable once read.
type PaperRecord struct {
	// ID is derived from the source URL (e.g. "2401.00001" for arXiv links).
	ID string `json:"id" yaml:"id"`

	// Title is the paper title as written in the listing.
	Title string `json:"title" yaml:"title"`

	// SourceURL is the paper link from the listing.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// ContentSnippet is the free text surrounding the entry, truncated.
	ContentSnippet string `json:"content_snippet,omitempty" yaml:"content_snippet,omitempty"`

	// Tier is the listing-supplied priority class. 1 is the highest; 0 means untiered.
	Tier int `json:"tier,omitempty" yaml:"tier,omitempty"`

	// Source is the listing file the record was read from.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// PaperAnalysis is the output of the external paper analyzer.
type PaperAnalysis struct {
	// RepositoryURL is the code repository the analyzer found, if any.
	RepositoryURL string `json:"github_url,omitempty" yaml:"github_url,omitempty"`

	// Scores maps qualitative dimensions to values on a 0-10 scale.
	Scores map[string]float64 `json:"scores" yaml:"scores"`

	// Summary is a short free-text assessment.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// Raw is the full response mapping, kept opaque.
	Raw map[string]any `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// RepositoryAnalysis is the output of the external repository analyzer.
type RepositoryAnalysis struct {
	// IsValid reports whether the repository exists and implements the paper.
	IsValid bool `json:"is_valid" yaml:"is_valid"`

	// Scores maps qualitative repository dimensions to values on a 0-10 scale.
	Scores map[string]float64 `json:"scores" yaml:"scores"`

	// Summary describes the codebase.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// Error is the analyzer's own description of why validation failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Raw is the full response mapping, kept opaque.
	Raw map[string]any `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// AnalysisResult is the scored, classified outcome for one paper. It is
// created by a worker and never mutated afterwards.
type AnalysisResult struct {
	Record             PaperRecord         `json:"paper" yaml:"paper"`
	PaperAnalysis      *PaperAnalysis      `json:"paper_analysis,omitempty" yaml:"paper_analysis,omitempty"`
	RepositoryAnalysis *RepositoryAnalysis `json:"repository_analysis,omitempty" yaml:"repository_analysis,omitempty"`

	// Scores holds every named score, prefixed "paper." or "repo.". Repository
	// scores appear only when the repository analysis is valid.
	Scores map[string]float64 `json:"scores" yaml:"scores"`

	// Composite is the weighted combination of Scores on a 0-10 scale.
	Composite float64 `json:"composite" yaml:"composite"`

	Decision   Decision  `json:"decision" yaml:"decision"`
	AnalyzedAt time.Time `json:"analyzed_at" yaml:"analyzed_at"`
}

// FailureKind classifies why a record could not be analyzed.
type FailureKind string

const (
	FailureTransient FailureKind = "transient"
	FailureMalformed FailureKind = "malformed"
	FailurePermanent FailureKind = "permanent"
	FailureTimeout   FailureKind = "timeout"
)

// Retryable reports whether another attempt may succeed.
func (k FailureKind) Retryable() bool {
	return k != FailurePermanent
}

// FailureRecord is emitted instead of an AnalysisResult once a record has
// exhausted its attempts.
type FailureRecord struct {
	Record   PaperRecord `json:"paper" yaml:"paper"`
	Error    string      `json:"error" yaml:"error"`
	Kind     FailureKind `json:"kind" yaml:"kind"`
	Attempts int         `json:"attempts" yaml:"attempts"`
}

// Outcome is the dispatcher's per-record output. Exactly one of Result and
// Failure is set.
type Outcome struct {
	Result   *AnalysisResult `json:"result,omitempty" yaml:"result,omitempty"`
	Failure  *FailureRecord  `json:"failure,omitempty" yaml:"failure,omitempty"`
	Attempts int             `json:"attempts" yaml:"attempts"`
}

// ID returns the identifier of the record the outcome belongs to.
func (o Outcome) ID() string {
	if o.Result != nil {
		return o.Result.Record.ID
	}
	if o.Failure != nil {
		return o.Failure.Record.ID
	}
	return ""
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool {
	return o.Failure != nil
}
