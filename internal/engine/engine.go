// Package engine resolves the logo for a single URL. It chains the document
// fetch, optional headless promotion, discovery, ranking and the greedy
// resolver, and classifies the outcome into a logo.Result.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/logo-resolver/internal/clock"
	"github.com/JakeFAU/logo-resolver/internal/discovery"
	"github.com/JakeFAU/logo-resolver/internal/logging"
	"github.com/JakeFAU/logo-resolver/internal/logo"
	"github.com/JakeFAU/logo-resolver/internal/metrics"
	"github.com/JakeFAU/logo-resolver/internal/resolve"
)

// Deps wires the collaborators of an Engine. Headless and Detector are
// optional; promotion is skipped unless both are set.
type Deps struct {
	Fetcher    logo.Fetcher
	Headless   logo.Fetcher
	Detector   logo.HeadlessDetector
	Discoverer *discovery.Discoverer
	Resolver   *resolve.Resolver
	Clock      logo.Clock
	Logger     *zap.Logger
}

// Engine runs the single-URL pipeline.
type Engine struct {
	fetcher    logo.Fetcher
	headless   logo.Fetcher
	detector   logo.HeadlessDetector
	discoverer *discovery.Discoverer
	resolver   *resolve.Resolver
	clock      logo.Clock
	logger     *zap.Logger
}

// New constructs an Engine.
func New(deps Deps) (*Engine, error) {
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("document fetcher is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	logger := logging.OrNop(deps.Logger)
	if deps.Discoverer == nil {
		deps.Discoverer = discovery.New(logger)
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	return &Engine{
		fetcher:    deps.Fetcher,
		headless:   deps.Headless,
		detector:   deps.Detector,
		discoverer: deps.Discoverer,
		resolver:   deps.Resolver,
		clock:      deps.Clock,
		logger:     logger,
	}, nil
}

// Resolve processes rawURL and always returns a Result. SourceURL is rawURL
// exactly as given so callers can key reports by their input.
func (e *Engine) Resolve(ctx context.Context, rawURL string) logo.Result {
	result := logo.Result{SourceURL: rawURL, StartedAt: e.clock.Now()}
	err := e.run(ctx, rawURL, &result)
	return e.finish(result, err)
}

func (e *Engine) run(ctx context.Context, rawURL string, result *logo.Result) error {
	target, err := logo.NormalizeURL(rawURL)
	if err != nil {
		return err //nolint:wrapcheck // already wraps logo.ErrInvalidURL
	}
	result.Domain = logo.Domain(target)

	doc, err := e.fetchDocument(ctx, target)
	if err != nil {
		return err
	}
	result.UsedHeadless = doc.UsedHeadless

	base := doc.URL
	if base == "" {
		base = target
	}
	page, err := e.discoverer.Discover(doc.Body, base)
	if err != nil {
		return fmt.Errorf("discover candidates: %w", err)
	}
	result.SiteName = page.SiteName

	ranked, err := discovery.Rank(page.Candidates)
	if err != nil {
		return fmt.Errorf("rank %d candidates: %w", len(page.Candidates), err)
	}
	e.logger.Debug("candidates ranked",
		zap.String("url", target),
		zap.Int("discovered", len(page.Candidates)),
		zap.Int("ranked", len(ranked)),
	)

	outcome, err := e.resolver.Resolve(ctx, result.Domain, ranked)
	result.Attempts = outcome.Attempts
	if err != nil {
		return err //nolint:wrapcheck // resolver errors carry their sentinel
	}
	result.Artifact = outcome.Artifact
	result.CandidateLocator = outcome.Candidate.Locator
	return nil
}

func (e *Engine) fetchDocument(ctx context.Context, target string) (logo.FetchResponse, error) {
	resp, err := e.fetcher.Fetch(ctx, logo.FetchRequest{URL: target})
	if err != nil {
		return logo.FetchResponse{}, fmt.Errorf("fetch document: %w", err)
	}
	if promoted, ok := e.maybePromote(ctx, target, resp); ok {
		return promoted, nil
	}
	return resp, nil
}

func (e *Engine) maybePromote(ctx context.Context, target string, resp logo.FetchResponse) (logo.FetchResponse, bool) {
	if e.headless == nil || e.detector == nil || !e.detector.ShouldPromote(resp) {
		return resp, false
	}
	metrics.ObserveHeadlessPromotion()
	rendered, err := e.headless.Fetch(ctx, logo.FetchRequest{URL: target})
	if err != nil {
		e.logger.Warn("headless promotion failed", zap.String("url", target), zap.Error(err))
		return resp, false
	}
	rendered.UsedHeadless = true
	e.logger.Info("headless promotion applied", zap.String("url", target))
	return rendered, true
}

func (e *Engine) finish(result logo.Result, err error) logo.Result {
	result.Status = logo.StatusFor(err)
	if err != nil {
		result.Diagnostic = err.Error()
	}
	result.Duration = e.clock.Now().Sub(result.StartedAt)
	metrics.ObserveResolution(string(result.Status), result.Duration)

	fields := []zap.Field{
		zap.String("url", result.SourceURL),
		zap.String("domain", result.Domain),
		zap.String("status", string(result.Status)),
		zap.Int("attempts", result.Attempts),
		zap.Duration("duration", result.Duration),
	}
	if err != nil {
		e.logger.Info("logo not resolved", append(fields, zap.String("diagnostic", result.Diagnostic))...)
	} else {
		e.logger.Info("logo resolved", append(fields, zap.String("artifact", result.Artifact.Location))...)
	}
	return result
}
