// Package collyfetcher implements logo.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/logo-resolver/internal/logo"
)

const defaultTimeout = 10 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodyBytes caps the response body; zero keeps colly's default.
	MaxBodyBytes int
}

// Fetcher implements logo.Fetcher using the Colly collector. The same fetcher
// serves page documents and candidate assets.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly. Transport failures and
// non-2xx statuses are returned wrapped in logo.ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context, request logo.FetchRequest) (logo.FetchResponse, error) {
	var (
		result   logo.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(ctx)
	f.configureCollectorHooks(collector, request, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		return logo.FetchResponse{}, fmt.Errorf("%w: %s: %w", logo.ErrFetch, request.URL, err)
	}
	return result, nil
}

func (f *Fetcher) buildCollector(ctx context.Context) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	// Clones share the visited-URL store; the same asset may be requested by many units.
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	if f.cfg.MaxBodyBytes > 0 {
		collector.MaxBodySize = f.cfg.MaxBodyBytes
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request logo.FetchRequest,
	start time.Time,
	result *logo.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		copyHeaders(request.Headers, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
			*fetchErr = fmt.Errorf("unexpected status %d", r.StatusCode)
			return
		}
		*result = logo.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    cloneHeader(r.Headers),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func copyHeaders(headers http.Header, r *colly.Request) {
	for key, values := range headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func cloneHeader(h *http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
}
