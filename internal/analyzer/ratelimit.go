// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyzer

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// RateLimiter is a token bucket shared by all workers. It is safe for
// concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing ratePerSecond sustained calls
// with bursts of up to burst calls. A burst below 1 is raised to 1.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a call is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the number of calls available now.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}

type limitedBackend struct {
	next    Backend
	limiter *RateLimiter
}

// WithRateLimit returns a Backend that waits on limiter before every call.
func WithRateLimit(b Backend, limiter *RateLimiter) Backend {
	return &limitedBackend{next: b, limiter: limiter}
}

func (l *limitedBackend) AnalyzePaper(ctx context.Context, req PaperRequest) (types.PaperAnalysis, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return types.PaperAnalysis{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return l.next.AnalyzePaper(ctx, req)
}

func (l *limitedBackend) AnalyzeRepository(ctx context.Context, req RepositoryRequest) (types.RepositoryAnalysis, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return types.RepositoryAnalysis{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return l.next.AnalyzeRepository(ctx, req)
}
