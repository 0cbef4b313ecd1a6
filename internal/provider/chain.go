// Package provider implements the ordered provider chain shared by the
// weather and lift-status subsystems: a primary external source, a secondary
// tried on primary failure, and a single aggregated error when every source
// fails. Retry timing is the refresh scheduler's concern; a chain fetch makes
// at most one attempt per provider.
package provider

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gavlarad/nozawa-backend-sub001/internal/reading"
)

// Provider is one external data source producing a normalized payload.
type Provider[P any] interface {
	Name() string
	// Configured reports whether the provider has the credentials or
	// endpoints it needs. Unconfigured providers are skipped without
	// counting as a fallback.
	Configured() bool
	Fetch(ctx context.Context) (P, error)
}

// Result is a successful chain fetch, tagged with its origin.
type Result[P any] struct {
	Payload        P
	Provider       string
	Origin         reading.Origin
	Fallback       bool
	FallbackReason string
}

// Chain tries providers in order and returns the first success.
type Chain[P any] struct {
	subjectID string
	providers []Provider[P]
	timeout   time.Duration
	log       zerolog.Logger
}

// NewChain builds a chain over the given providers. If the primary is not
// configured the chain collapses to the remaining providers; that is logged
// here once, not per request.
func NewChain[P any](subjectID string, timeout time.Duration, log zerolog.Logger, providers ...Provider[P]) *Chain[P] {
	c := &Chain[P]{
		subjectID: subjectID,
		providers: providers,
		timeout:   timeout,
		log:       log,
	}
	for i, p := range providers {
		if !p.Configured() {
			c.log.Warn().
				Str("subject", subjectID).
				Str("provider", p.Name()).
				Msgf("provider not configured; chain position %d will be skipped", i)
		}
	}
	return c
}

// Fetch invokes providers in order with a bounded per-provider timeout.
// A timeout is treated like any other provider failure. The secondary's
// result is tagged fallback=true only when a configured provider actually
// failed before it.
func (c *Chain[P]) Fetch(ctx context.Context) (Result[P], error) {
	var (
		attempts []*AttemptError
		failed   bool
		reason   string
	)

	for i, p := range c.providers {
		if !p.Configured() {
			attempts = append(attempts, classify(p.Name(), ErrNotConfigured))
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		payload, err := p.Fetch(callCtx)
		cancel()

		if err != nil {
			attempt := classify(p.Name(), err)
			attempts = append(attempts, attempt)
			if !failed {
				failed = true
				reason = attempt.Error()
			}
			c.log.Warn().
				Str("subject", c.subjectID).
				Str("provider", p.Name()).
				Str("kind", string(attempt.Kind)).
				Err(err).
				Msg("provider attempt failed")
			continue
		}

		return Result[P]{
			Payload:        payload,
			Provider:       p.Name(),
			Origin:         originFor(i),
			Fallback:       failed,
			FallbackReason: reason,
		}, nil
	}

	return Result[P]{}, &ExhaustedError{SubjectID: c.subjectID, Attempts: attempts}
}

func originFor(position int) reading.Origin {
	if position == 0 {
		return reading.OriginProviderPrimary
	}
	return reading.OriginProviderSecondary
}
