// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/paper-triage/pkg/types"
)

const markdownHeader = `| Title | ArXiv URL | GitHub URL | Valid | Codebase Summary | Composite | Decision |
|-------|-----------|------------|-------|------------------|-----------|----------|
`

// WriteMarkdown renders every dataset entry as one row of a markdown table,
// in included, excluded, review order.
func WriteMarkdown(ds *types.Dataset, w io.Writer) error {
	if _, err := io.WriteString(w, markdownHeader); err != nil {
		return err
	}
	if ds == nil {
		return nil
	}
	for _, r := range ds.Systems.All() {
		if _, err := fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %.2f | %s |\n",
			cell(r.Record.Title),
			cell(r.Record.SourceURL),
			cell(repositoryURL(r)),
			validMark(r),
			cell(summary(r)),
			r.Composite,
			r.Decision,
		); err != nil {
			return err
		}
	}
	return nil
}

func repositoryURL(r types.AnalysisResult) string {
	if r.PaperAnalysis == nil || r.PaperAnalysis.RepositoryURL == "" {
		return "Not found"
	}
	return r.PaperAnalysis.RepositoryURL
}

func validMark(r types.AnalysisResult) string {
	switch {
	case r.RepositoryAnalysis == nil:
		return "-"
	case r.RepositoryAnalysis.IsValid:
		return "✓"
	default:
		return "✗"
	}
}

func summary(r types.AnalysisResult) string {
	if r.RepositoryAnalysis != nil {
		if r.RepositoryAnalysis.Summary != "" {
			return r.RepositoryAnalysis.Summary
		}
		if r.RepositoryAnalysis.Error != "" {
			return r.RepositoryAnalysis.Error
		}
	}
	if r.PaperAnalysis != nil {
		return r.PaperAnalysis.Summary
	}
	return ""
}

// cell flattens s onto one line and escapes pipes.
func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
