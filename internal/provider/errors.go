package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies a single provider attempt failure.
type FailureKind string

const (
	KindTimeout       FailureKind = "timeout"
	KindHTTPError     FailureKind = "http-error"
	KindMalformedBody FailureKind = "malformed-body"
	KindNotConfigured FailureKind = "not-configured"
)

var (
	// ErrMalformedBody marks a response body the normalizer cannot decode.
	// Providers wrap decode failures with it so the chain classifies them
	// separately from transport errors.
	ErrMalformedBody = errors.New("malformed response body")

	// ErrNotConfigured is returned by providers missing a required
	// credential or endpoint.
	ErrNotConfigured = errors.New("provider not configured")
)

// AttemptError is one failed provider invocation inside a chain fetch.
type AttemptError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// ExhaustedError aggregates every failed attempt of one chain fetch. It is
// raised only when no provider in the chain succeeded.
type ExhaustedError struct {
	SubjectID string
	Attempts  []*AttemptError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.SubjectID, strings.Join(parts, "; "))
}

func classify(name string, err error) *AttemptError {
	kind := KindHTTPError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, ErrMalformedBody):
		kind = KindMalformedBody
	case errors.Is(err, ErrNotConfigured):
		kind = KindNotConfigured
	}
	return &AttemptError{Provider: name, Kind: kind, Err: err}
}
