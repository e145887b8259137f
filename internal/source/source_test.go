// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-triage/pkg/types"
)

const sampleListing = `# Reading list

## [**Sparse Attention at Scale**](https://arxiv.org/abs/2401.00001v2)
Tier: 1
Efficient attention with learned sparsity.

---

## [Graph Kernels Revisited](https://arxiv.org/pdf/2401.00002)
**Tier 3**

---

Just a note with no link.

---

## [Cache Policies](https://www.arxiv.org/abs/2401.00003) and [a blog](https://example.com/post)
`

func TestIdentifierFor(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"arxiv abs", "https://arxiv.org/abs/2401.00001", "2401.00001"},
		{"arxiv abs versioned", "https://arxiv.org/abs/2401.00001v3", "2401.00001"},
		{"arxiv pdf", "https://arxiv.org/pdf/2401.00001.pdf", "2401.00001"},
		{"arxiv www", "http://www.arxiv.org/abs/2312.12345", "2312.12345"},
		{"bare arxiv id", "2401.00001v1", "2401.00001"},
		{"other host", "https://openreview.net/papers/attention.pdf", "attention"},
		{"trailing slash", "https://example.com/papers/kernels/", "kernels"},
		{"whitespace", "  https://arxiv.org/abs/2401.00009  ", "2401.00009"},
		{"query a", "https://openreview.net/forum?id=AAAA", "forum-id-AAAA"},
		{"query b", "https://openreview.net/forum?id=BBBB", "forum-id-BBBB"},
		{"numeric segment", "https://example.org/papers/1234.5678", "1234.5678"},
		{"html extension", "https://example.org/papers/kernels.html", "kernels"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IdentifierFor(tt.url))
		})
	}
}

func TestIdentifierFor_HashFallback(t *testing.T) {
	a := IdentifierFor("https://example.com/")
	b := IdentifierFor("https://example.org/")
	assert.True(t, strings.HasPrefix(a, "url-"))
	assert.Len(t, a, len("url-")+16)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, IdentifierFor("https://example.com/"))
}

func TestParseMarkdown(t *testing.T) {
	r := &Reader{}
	recs := r.ParseMarkdown(sampleListing, "list.md")
	require.Len(t, recs, 3)

	assert.Equal(t, "2401.00001", recs[0].ID)
	assert.Equal(t, "Sparse Attention at Scale", recs[0].Title)
	assert.Equal(t, "https://arxiv.org/abs/2401.00001v2", recs[0].SourceURL)
	assert.Equal(t, 1, recs[0].Tier)
	assert.Contains(t, recs[0].ContentSnippet, "learned sparsity")
	assert.Equal(t, "list.md", recs[0].Source)

	assert.Equal(t, "2401.00002", recs[1].ID)
	assert.Equal(t, 3, recs[1].Tier)

	assert.Equal(t, "2401.00003", recs[2].ID)
	assert.Equal(t, 0, recs[2].Tier)
}

func TestParseMarkdown_SnippetTruncated(t *testing.T) {
	r := &Reader{SnippetLength: 10}
	recs := r.ParseMarkdown("[Ünïcödé title](https://arxiv.org/abs/2401.00001) ééééééééééééé", "x.md")
	require.Len(t, recs, 1)
	assert.Equal(t, 10, len([]rune(recs[0].ContentSnippet)))
}

func TestReadAll_DedupFirstWins(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "list.md")
	require.NoError(t, os.WriteFile(md, []byte(sampleListing), 0o644))

	yml := filepath.Join(dir, "extra.yaml")
	require.NoError(t, os.WriteFile(yml, []byte(`papers:
  - title: Sparse Attention (duplicate)
    source_url: https://arxiv.org/abs/2401.00001
  - id: custom-id
    title: Hand Entered
    source_url: https://example.com/hand.pdf
    tier: 2
  - title: Derived
    source_url: https://arxiv.org/abs/2402.11111
`), 0o644))

	recs, err := NewReader(types.SourceConfig{}).ReadAll([]string{md, yml})
	require.NoError(t, err)
	require.Len(t, recs, 5)

	assert.Equal(t, "Sparse Attention at Scale", recs[0].Title)
	assert.Equal(t, "custom-id", recs[3].ID)
	assert.Equal(t, 2, recs[3].Tier)
	assert.Equal(t, yml, recs[3].Source)
	assert.Equal(t, "2402.11111", recs[4].ID)
}

func TestReadAll_SamePathDifferentQuery(t *testing.T) {
	yml := filepath.Join(t.TempDir(), "openreview.yaml")
	require.NoError(t, os.WriteFile(yml, []byte(`papers:
  - title: First Submission
    source_url: https://openreview.net/forum?id=AAAA
  - title: Second Submission
    source_url: https://openreview.net/forum?id=BBBB
  - title: Numbered Report
    source_url: https://example.org/papers/1234.5678
  - title: Other Numbered Report
    source_url: https://example.org/papers/1234.9999
`), 0o644))

	recs, err := NewReader(types.SourceConfig{}).ReadAll([]string{yml})
	require.NoError(t, err)
	require.Len(t, recs, 4)

	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"forum-id-AAAA", "forum-id-BBBB", "1234.5678", "1234.9999"}, ids)
}

func TestReadAll_NoPaths(t *testing.T) {
	_, err := NewReader(types.SourceConfig{}).ReadAll(nil)
	var re *ReadError
	assert.True(t, errors.As(err, &re))
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	r := &Reader{}

	_, err := r.ReadFile(filepath.Join(dir, "missing.md"))
	var re *ReadError
	require.True(t, errors.As(err, &re))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("papers: [unterminated"), 0o644))
	_, err = r.ReadFile(bad)
	assert.ErrorContains(t, err, "parsing YAML")

	noURL := filepath.Join(dir, "nourl.yml")
	require.NoError(t, os.WriteFile(noURL, []byte("papers:\n  - title: Orphan\n"), 0o644))
	_, err = r.ReadFile(noURL)
	assert.ErrorContains(t, err, "source_url is required")
}

type skipSet map[string]bool

func (s skipSet) Has(id string) bool { return s[id] }

func TestFilter(t *testing.T) {
	recs := []types.PaperRecord{
		{ID: "a", Tier: 1},
		{ID: "b", Tier: 2},
		{ID: "c", Tier: 3},
		{ID: "d"},
		{ID: "e", Tier: 1},
		{ID: "f", Tier: 2},
	}

	tests := []struct {
		name      string
		opts      FilterOptions
		wantIDs   []string
		wantStats FilterStats
	}{
		{"no filters", FilterOptions{}, []string{"a", "b", "c", "d", "e", "f"}, FilterStats{}},
		{"limit", FilterOptions{Limit: 2}, []string{"a", "b"}, FilterStats{OverLimit: 4}},
		{"tier", FilterOptions{MinTier: 2}, []string{"a", "b", "e", "f"}, FilterStats{BelowTier: 2}},
		{"skip", FilterOptions{Skip: skipSet{"a": true, "c": true}}, []string{"b", "d", "e", "f"}, FilterStats{Skipped: 2}},
		{
			"skip then tier then limit",
			FilterOptions{Skip: skipSet{"a": true}, MinTier: 1, Limit: 5},
			[]string{"e"},
			FilterStats{Skipped: 1, BelowTier: 4},
		},
		{
			"limit applies after skip",
			FilterOptions{Skip: skipSet{"a": true, "b": true}, Limit: 2},
			[]string{"c", "d"},
			FilterStats{Skipped: 2, OverLimit: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stats := Filter(recs, tt.opts)
			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantStats, stats)
		})
	}
}
