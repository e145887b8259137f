// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyzer defines the contracts of the two external analyzers a
// paper worker calls, and the backends that reach them: the Claude Messages
// API and an arbitrary command that speaks JSON on stdin/stdout.
//
// Analyzers are black boxes. Everything this package knows about them is the
// request shape, the response shape, and how their failures are classified
// for the dispatcher's retry policy (see Classify).
package analyzer

import (
	"context"
	"fmt"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// PaperRequest is the input to the paper analyzer.
type PaperRequest struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// RepositoryRequest is the input to the repository analyzer.
type RepositoryRequest struct {
	RepositoryURL string `json:"repository_url"`
	PaperTitle    string `json:"paper_title"`
}

// PaperAnalyzer assesses one paper and reports an optional code repository.
type PaperAnalyzer interface {
	AnalyzePaper(ctx context.Context, req PaperRequest) (types.PaperAnalysis, error)
}

// RepositoryAnalyzer validates a repository against the paper it claims to
// implement.
type RepositoryAnalyzer interface {
	AnalyzeRepository(ctx context.Context, req RepositoryRequest) (types.RepositoryAnalysis, error)
}

// Backend serves both analyzers.
type Backend interface {
	PaperAnalyzer
	RepositoryAnalyzer
}

// New builds the backend selected by cfg.Backend, rate limited when
// cfg.RateLimit is positive.
func New(cfg types.AnalyzerConfig) (Backend, error) {
	var b Backend
	switch cfg.Backend {
	case types.BackendClaude, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude backend requires an API key (analyzer.api_key, PAPER_TRIAGE_ANALYZER_API_KEY or .secrets/anthropic-api-key)")
		}
		b = &ClaudeBackend{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			MaxTokens:  cfg.MaxTokens,
			MaxRetries: cfg.MaxRateLimitRetries,
		}
	case types.BackendCommand:
		cb, err := NewCommandBackend(cfg.Command)
		if err != nil {
			return nil, err
		}
		b = cb
	default:
		return nil, fmt.Errorf("unknown analyzer backend %q", cfg.Backend)
	}

	if cfg.RateLimit > 0 {
		b = WithRateLimit(b, NewRateLimiter(cfg.RateLimit, cfg.RateBurst))
	}
	return b, nil
}
