// Package resolve walks ranked candidates until one yields a usable image.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/logo-resolver/internal/logging"
	"github.com/JakeFAU/logo-resolver/internal/logo"
	"github.com/JakeFAU/logo-resolver/internal/metrics"
	"github.com/JakeFAU/logo-resolver/internal/normalize"
)

// Candidate outcomes recorded in metrics.
const (
	OutcomeAccepted    = "accepted"
	OutcomeFetchError  = "fetch_error"
	OutcomeEmpty       = "empty"
	OutcomeTooLarge    = "too_large"
	OutcomeUndecodable = "undecodable"
	OutcomeTooSmall    = "too_small"
)

// Persister turns a validated image into a stored artifact.
type Persister interface {
	Persist(ctx context.Context, domain string, dec normalize.Decoded) (*logo.Artifact, error)
}

// Outcome describes a successful resolution.
type Outcome struct {
	Artifact  *logo.Artifact
	Candidate logo.Candidate
	Attempts  int
}

// Resolver is the greedy fetch-validate loop over a ranked list.
type Resolver struct {
	fetcher   logo.Fetcher
	validator normalize.Validator
	persister Persister
	logger    *zap.Logger
}

// New constructs a Resolver. fetcher serves RemoteAsset locators, including
// data: URLs when wrapped by the datauri fetcher.
func New(fetcher logo.Fetcher, validator normalize.Validator, persister Persister, logger *zap.Logger) *Resolver {
	return &Resolver{
		fetcher:   fetcher,
		validator: validator,
		persister: persister,
		logger:    logging.OrNop(logger),
	}
}

// Resolve tries candidates in order and persists the first that validates.
// Later candidates are never fetched. When every candidate is discarded the
// error wraps logo.ErrAllCandidatesFailed and Attempts is still reported.
// Storage failures and cancellation end the loop immediately.
func (r *Resolver) Resolve(ctx context.Context, domain string, ranked []logo.Candidate) (Outcome, error) {
	if len(ranked) == 0 {
		return Outcome{}, logo.ErrNoCandidate
	}
	var lastErr error
	attempts := 0
	for _, candidate := range ranked {
		if err := ctx.Err(); err != nil {
			return Outcome{Attempts: attempts}, fmt.Errorf("resolve canceled after %d attempts: %w", attempts, err)
		}
		attempts++
		dec, size, err := r.load(ctx, candidate)
		if err != nil {
			outcome := classify(err)
			metrics.ObserveCandidate(candidate.Strategy, outcome, size)
			r.logger.Debug("candidate discarded",
				zap.String("domain", domain),
				zap.String("candidate", shortLocator(candidate)),
				zap.Int("attempt", attempts),
				zap.String("outcome", outcome),
				zap.Error(err),
			)
			lastErr = err
			continue
		}
		metrics.ObserveCandidate(candidate.Strategy, OutcomeAccepted, size)

		artifact, err := r.persister.Persist(ctx, domain, dec)
		if err != nil {
			return Outcome{Attempts: attempts}, fmt.Errorf("persist artifact: %w", err)
		}
		r.logger.Debug("candidate accepted",
			zap.String("domain", domain),
			zap.String("candidate", shortLocator(candidate)),
			zap.Int("attempt", attempts),
			zap.String("artifact", artifact.Name),
		)
		return Outcome{Artifact: artifact, Candidate: candidate, Attempts: attempts}, nil
	}
	return Outcome{Attempts: attempts}, fmt.Errorf("%w: %d tried, last: %w", logo.ErrAllCandidatesFailed, attempts, lastErr)
}

func (r *Resolver) load(ctx context.Context, candidate logo.Candidate) (normalize.Decoded, int, error) {
	if candidate.Kind == logo.KindInlineMarkup {
		data := []byte(candidate.Locator)
		dec, err := r.validator.Validate(data, "image/svg+xml")
		return dec, 0, err //nolint:wrapcheck // validation errors are package sentinels
	}
	resp, err := r.fetcher.Fetch(ctx, logo.FetchRequest{URL: candidate.Locator})
	if err != nil {
		return normalize.Decoded{}, 0, fmt.Errorf("fetch asset: %w", err)
	}
	dec, err := r.validator.Validate(resp.Body, resp.Headers.Get("Content-Type"))
	if err != nil {
		return normalize.Decoded{}, len(resp.Body), fmt.Errorf("validate %s: %w", candidate.Locator, err)
	}
	return dec, len(resp.Body), nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, normalize.ErrEmpty):
		return OutcomeEmpty
	case errors.Is(err, normalize.ErrTooLarge):
		return OutcomeTooLarge
	case errors.Is(err, normalize.ErrTooSmall):
		return OutcomeTooSmall
	case errors.Is(err, normalize.ErrUndecodable):
		return OutcomeUndecodable
	default:
		return OutcomeFetchError
	}
}

// shortLocator keeps inline markup and data: URLs out of log lines.
func shortLocator(c logo.Candidate) string {
	const limit = 120
	if c.Kind == logo.KindInlineMarkup {
		return "inline-svg"
	}
	if len(c.Locator) > limit {
		return c.Locator[:limit] + "..."
	}
	return c.Locator
}
