// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pdiddy/paper-triage/pkg/types"
)

// Sentinel errors for the failure taxonomy. Backends wrap them with %w.
var (
	// ErrTransient marks failures that may succeed on retry: network errors,
	// throttling, server errors, a crashed analyzer process.
	ErrTransient = errors.New("transient analyzer failure")

	// ErrMalformedOutput marks a response that does not match the expected
	// shape. It is retried up to the attempt cap.
	ErrMalformedOutput = errors.New("malformed analyzer output")

	// ErrPermanent marks failures that will not succeed on retry: rejected
	// credentials, invalid requests, a missing analyzer binary.
	ErrPermanent = errors.New("permanent analyzer failure")
)

// APIError is a non-success HTTP response from an analyzer API.
type APIError struct {
	// Backend names the analyzer backend (e.g. "claude").
	Backend string
	// StatusCode is the HTTP status; 0 means no response was received.
	StatusCode int
	// Message is the response body or error text.
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API error (status %d): %s", e.Backend, e.StatusCode, e.Message)
}

// IsTransient reports whether the request may succeed on retry: no response,
// throttling, a request timeout, or a server error.
func (e *APIError) IsTransient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// Unwrap maps the status onto ErrTransient or ErrPermanent.
func (e *APIError) Unwrap() error {
	if e.IsTransient() {
		return ErrTransient
	}
	return ErrPermanent
}

// Classify maps an analyzer error onto a failure kind. Deadline errors are
// timeouts; unknown errors are treated as transient.
func Classify(err error) types.FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return types.FailureTimeout
	case errors.Is(err, ErrMalformedOutput):
		return types.FailureMalformed
	case errors.Is(err, ErrPermanent):
		return types.FailurePermanent
	default:
		return types.FailureTransient
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedOutput, fmt.Sprintf(format, args...))
}
