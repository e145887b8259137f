// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-triage/internal/assemble"
	"github.com/pdiddy/paper-triage/pkg/types"
)

func sampleResults() []types.AnalysisResult {
	at := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	return []types.AnalysisResult{
		{
			Record:             types.PaperRecord{ID: "2401.00002", Title: "Graph Kernels | Revisited", SourceURL: "https://arxiv.org/abs/2401.00002"},
			PaperAnalysis:      &types.PaperAnalysis{RepositoryURL: "https://github.com/org/kernels", Scores: map[string]float64{"relevance": 9}, Summary: "Kernels."},
			RepositoryAnalysis: &types.RepositoryAnalysis{IsValid: true, Scores: map[string]float64{"code_quality": 8}, Summary: "Well tested\nPython package."},
			Scores:             map[string]float64{"paper.relevance": 9, "repo.code_quality": 8},
			Composite:          8.5,
			Decision:           types.DecisionInclude,
			AnalyzedAt:         at,
		},
		{
			Record:        types.PaperRecord{ID: "2401.00001", Title: "Sparse Attention", SourceURL: "https://arxiv.org/abs/2401.00001"},
			PaperAnalysis: &types.PaperAnalysis{Scores: map[string]float64{"relevance": 3}, Summary: "Attention variant."},
			Scores:        map[string]float64{"paper.relevance": 3},
			Composite:     1.5,
			Decision:      types.DecisionExclude,
			AnalyzedAt:    at,
		},
		{
			Record:             types.PaperRecord{ID: "2401.00003", Title: "Cache Policies", SourceURL: "https://arxiv.org/abs/2401.00003"},
			PaperAnalysis:      &types.PaperAnalysis{RepositoryURL: "https://github.com/org/cache", Scores: map[string]float64{"relevance": 6}},
			RepositoryAnalysis: &types.RepositoryAnalysis{IsValid: false, Scores: map[string]float64{}, Error: "repository is archived"},
			Scores:             map[string]float64{"paper.relevance": 6},
			Composite:          5,
			Decision:           types.DecisionReview,
			AnalyzedAt:         at,
		},
	}
}

func assembled(results []types.AnalysisResult) *types.Dataset {
	return assemble.Assemble(results, nil, assemble.Options{
		UpdateThreshold: 0.5,
		Now:             func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) },
	})
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"dataset.json", FormatJSON, false},
		{"out/dataset.YAML", FormatYAML, false},
		{"dataset.yml", FormatYAML, false},
		{"dataset.md", "", true},
		{"dataset", "", true},
	}
	for _, tt := range tests {
		got, err := FormatFor(tt.path)
		if tt.wantErr {
			assert.Error(t, err, tt.path)
			continue
		}
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestWrite_DeterministicRegardlessOfOrder(t *testing.T) {
	for _, ext := range []string{".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			results := sampleResults()

			first := filepath.Join(dir, "first"+ext)
			require.NoError(t, Write(assembled(results), first))
			want, err := os.ReadFile(first)
			require.NoError(t, err)

			rng := rand.New(rand.NewSource(7))
			for i := 0; i < 10; i++ {
				rng.Shuffle(len(results), func(a, b int) { results[a], results[b] = results[b], results[a] })
				path := filepath.Join(dir, "again"+ext)
				require.NoError(t, Write(assembled(results), path))
				got, err := os.ReadFile(path)
				require.NoError(t, err)
				require.True(t, bytes.Equal(want, got), "shuffle %d produced different bytes", i)
			}
		})
	}
}

func TestWrite_JSONLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, Write(assembled(sampleResults()), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(data, []byte("}\n")))
	assert.True(t, bytes.HasPrefix(data, []byte("{\n  \"metadata\": {")))

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))
	assert.Len(t, top, 3)
	assert.Contains(t, top, "metadata")
	assert.Contains(t, top, "statistics")

	var systems map[string][]json.RawMessage
	require.NoError(t, json.Unmarshal(top["systems"], &systems))
	assert.Len(t, systems["included"], 1)
	assert.Len(t, systems["excluded"], 1)
	assert.Len(t, systems["review"], 1)
}

func TestWriteRead_RoundTripJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	ds := assembled(sampleResults())
	require.NoError(t, Write(ds, path))

	got, err := Read(path)
	require.NoError(t, err)
	if diff := cmp.Diff(ds, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteRead_RoundTripYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.yaml")
	ds := assembled(sampleResults())
	require.NoError(t, Write(ds, path))

	got, err := Read(path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ds.Metadata, got.Metadata)
	assert.Equal(t, ds.Statistics, got.Statistics)

	r, ok := got.Lookup("2401.00002")
	require.True(t, ok)
	assert.Equal(t, 8.5, r.Composite)
	assert.Equal(t, "https://github.com/org/kernels", r.PaperAnalysis.RepositoryURL)
	assert.True(t, r.RepositoryAnalysis.IsValid)
}

func TestWrite_ReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	require.NoError(t, Write(assembled(sampleResults()), path))

	ds, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Metadata.Total)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWrite_UnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := Write(assembled(sampleResults()), filepath.Join(blocker, "dataset.json"))
	require.Error(t, err)

	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, filepath.Join(blocker, "dataset.json"), we.Path)
}

func TestWrite_UnsupportedExtension(t *testing.T) {
	err := Write(assembled(nil), filepath.Join(t.TempDir(), "dataset.csv"))
	var we *WriteError
	assert.True(t, errors.As(err, &we))
}

func TestRead_MissingFile(t *testing.T) {
	ds, err := Read(filepath.Join(t.TempDir(), "dataset.json"))
	require.NoError(t, err)
	assert.Nil(t, ds)
}

func TestRead_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Read(path)
	assert.ErrorContains(t, err, "parsing dataset")
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(assembled(sampleResults()), &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "| Title | ArXiv URL | GitHub URL | Valid |"))

	// Included first, then excluded, then review.
	assert.Equal(t, `| Graph Kernels \| Revisited | https://arxiv.org/abs/2401.00002 | https://github.com/org/kernels | ✓ | Well tested Python package. | 8.50 | INCLUDE |`, lines[2])
	assert.Equal(t, `| Sparse Attention | https://arxiv.org/abs/2401.00001 | Not found | - | Attention variant. | 1.50 | EXCLUDE |`, lines[3])
	assert.Equal(t, `| Cache Policies | https://arxiv.org/abs/2401.00003 | https://github.com/org/cache | ✗ | repository is archived | 5.00 | REVIEW |`, lines[4])
}
