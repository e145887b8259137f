// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source reads paper records from listing files. Markdown listings
// hold entries separated by horizontal rules, each with a
// [title](https://arxiv.org/...) link; YAML listings hold a papers: list.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// DefaultSnippetLength is the number of characters of entry text kept per record.
const DefaultSnippetLength = 2000

var (
	// entrySeparator matches horizontal rules of three or more dashes.
	entrySeparator = regexp.MustCompile(`(?m)^[ \t]*-{3,}[ \t]*$`)

	// arxivLink matches a markdown link to arxiv.org.
	arxivLink = regexp.MustCompile(`\[([^\]]+)\]\((https?://(?:www\.|export\.)?arxiv\.org/[^)\s]+)\)`)

	// tierMarker matches "Tier: 1", "**Tier 2**", "tier-3".
	tierMarker = regexp.MustCompile(`(?i)\btier[\s:*_-]*([1-9])\b`)
)

// ReadError reports that a listing file could not be read or parsed. It is
// fatal to a run.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading source %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Reader parses listing files.
type Reader struct {
	SnippetLength int
}

// NewReader creates a Reader from cfg.
func NewReader(cfg types.SourceConfig) *Reader {
	return &Reader{SnippetLength: cfg.SnippetLength}
}

func (r *Reader) snippetLength() int {
	if r.SnippetLength <= 0 {
		return DefaultSnippetLength
	}
	return r.SnippetLength
}

// ReadAll reads paths in order and de-duplicates records by identifier; the
// first occurrence wins.
func (r *Reader) ReadAll(paths []string) ([]types.PaperRecord, error) {
	if len(paths) == 0 {
		return nil, &ReadError{Err: fmt.Errorf("no source files given")}
	}

	seen := make(map[string]bool)
	var out []types.PaperRecord
	for _, p := range paths {
		recs, err := r.ReadFile(p)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			out = append(out, rec)
		}
	}
	return out, nil
}

// ReadFile reads one listing. The format follows the extension: .yaml and
// .yml are YAML, anything else is markdown.
func (r *Reader) ReadFile(path string) ([]types.PaperRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		recs, err := r.parseYAML(data, path)
		if err != nil {
			return nil, &ReadError{Path: path, Err: err}
		}
		return recs, nil
	default:
		return r.ParseMarkdown(string(data), path), nil
	}
}

// ParseMarkdown extracts one record per entry that links to arXiv. Entries
// without an arXiv link are skipped.
func (r *Reader) ParseMarkdown(doc, sourceName string) []types.PaperRecord {
	var out []types.PaperRecord
	for _, entry := range entrySeparator.Split(doc, -1) {
		m := arxivLink.FindStringSubmatch(entry)
		if m == nil {
			continue
		}
		title := strings.Trim(strings.TrimSpace(m[1]), "*_`")
		link := m[2]

		rec := types.PaperRecord{
			ID:             IdentifierFor(link),
			Title:          title,
			SourceURL:      link,
			ContentSnippet: truncate(strings.TrimSpace(entry), r.snippetLength()),
			Source:         sourceName,
		}
		if t := tierMarker.FindStringSubmatch(entry); t != nil {
			rec.Tier, _ = strconv.Atoi(t[1])
		}
		out = append(out, rec)
	}
	return out
}

type yamlListing struct {
	Papers []types.PaperRecord `yaml:"papers"`
}

func (r *Reader) parseYAML(data []byte, sourceName string) ([]types.PaperRecord, error) {
	var listing yamlListing
	if err := yaml.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	out := make([]types.PaperRecord, 0, len(listing.Papers))
	for i, p := range listing.Papers {
		p.SourceURL = strings.TrimSpace(p.SourceURL)
		if p.SourceURL == "" {
			return nil, fmt.Errorf("papers[%d]: source_url is required", i)
		}
		if p.ID == "" {
			p.ID = IdentifierFor(p.SourceURL)
		}
		if p.Tier < 0 {
			return nil, fmt.Errorf("papers[%d]: tier must not be negative", i)
		}
		p.Title = strings.TrimSpace(p.Title)
		p.ContentSnippet = truncate(strings.TrimSpace(p.ContentSnippet), r.snippetLength())
		p.Source = sourceName
		out = append(out, p)
	}
	return out, nil
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Skipper reports identifiers that must not be processed again.
// checkpoint.Log implements it.
type Skipper interface {
	Has(id string) bool
}

// FilterOptions selects which records a run processes.
type FilterOptions struct {
	// Limit caps the number of records returned (0 = unlimited).
	Limit int

	// MinTier keeps records with 1 <= Tier <= MinTier (0 disables the filter).
	MinTier int

	// Skip drops already-completed records.
	Skip Skipper
}

// FilterStats counts the records each filter removed.
type FilterStats struct {
	Skipped   int
	BelowTier int
	OverLimit int
}

// Filter applies the skip set, then the tier filter, then the limit.
// Input order is preserved.
func Filter(records []types.PaperRecord, opts FilterOptions) ([]types.PaperRecord, FilterStats) {
	var stats FilterStats
	out := make([]types.PaperRecord, 0, len(records))
	for _, rec := range records {
		if opts.Skip != nil && opts.Skip.Has(rec.ID) {
			stats.Skipped++
			continue
		}
		if opts.MinTier > 0 && (rec.Tier < 1 || rec.Tier > opts.MinTier) {
			stats.BelowTier++
			continue
		}
		if opts.Limit > 0 && len(out) >= opts.Limit {
			stats.OverLimit++
			continue
		}
		out = append(out, rec)
	}
	return out, stats
}
