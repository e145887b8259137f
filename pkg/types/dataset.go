// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Dataset is the persisted, deduplicated collection of analysis results.
type Dataset struct {
	Metadata   DatasetMetadata   `json:"metadata" yaml:"metadata"`
	Statistics DatasetStatistics `json:"statistics" yaml:"statistics"`
	Systems    Systems           `json:"systems" yaml:"systems"`
}

// DatasetMetadata records when the dataset was generated and how many
// entries it holds.
type DatasetMetadata struct {
	GeneratedAt     time.Time `json:"generated_at" yaml:"generated_at"`
	Total           int       `json:"total" yaml:"total"`
	Included        int       `json:"included" yaml:"included"`
	Excluded        int       `json:"excluded" yaml:"excluded"`
	Review          int       `json:"review" yaml:"review"`
	UpdateThreshold float64   `json:"update_threshold" yaml:"update_threshold"`
}

// DatasetStatistics holds aggregate numeric summaries over all entries.
type DatasetStatistics struct {
	// Counts maps each decision to its number of entries.
	Counts map[Decision]int `json:"counts" yaml:"counts"`

	// Scores maps each scoring dimension (plus "composite") to its distribution.
	Scores map[string]ScoreDistribution `json:"scores" yaml:"scores"`
}

// ScoreDistribution summarizes one scoring dimension.
type ScoreDistribution struct {
	Count int     `json:"count" yaml:"count"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Mean  float64 `json:"mean" yaml:"mean"`
}

// Systems holds the three decision collections.
type Systems struct {
	Included []AnalysisResult `json:"included" yaml:"included"`
	Excluded []AnalysisResult `json:"excluded" yaml:"excluded"`
	Review   []AnalysisResult `json:"review" yaml:"review"`
}

// Bucket returns the collection for a decision.
func (s *Systems) Bucket(d Decision) *[]AnalysisResult {
	switch d {
	case DecisionInclude:
		return &s.Included
	case DecisionExclude:
		return &s.Excluded
	default:
		return &s.Review
	}
}

// All returns every entry in included, excluded, review order.
func (s Systems) All() []AnalysisResult {
	all := make([]AnalysisResult, 0, len(s.Included)+len(s.Excluded)+len(s.Review))
	all = append(all, s.Included...)
	all = append(all, s.Excluded...)
	all = append(all, s.Review...)
	return all
}

// Lookup finds the entry with the given identifier.
func (d *Dataset) Lookup(id string) (AnalysisResult, bool) {
	if d == nil {
		return AnalysisResult{}, false
	}
	for _, r := range d.Systems.All() {
		if r.Record.ID == id {
			return r, true
		}
	}
	return AnalysisResult{}, false
}
