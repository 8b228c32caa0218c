// Package headless renders JavaScript-built pages with headless Chrome so
// logos injected client-side become visible to discovery.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/logo-resolver/internal/logo"
)

const (
	defaultNavTimeout = 25 * time.Second
	settleDelay       = 500 * time.Millisecond
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// Fetcher implements logo.Fetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	slots       *semaphore.Weighted
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp. Chrome is only
// launched on the first Fetch.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	var slots *semaphore.Weighted
	if cfg.MaxParallel > 0 {
		slots = semaphore.NewWeighted(int64(cfg.MaxParallel))
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		slots:       slots,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates with a headless browser and returns the rendered DOM.
func (f *Fetcher) Fetch(ctx context.Context, request logo.FetchRequest) (logo.FetchResponse, error) {
	if f.slots != nil {
		if err := f.slots.Acquire(ctx, 1); err != nil {
			return logo.FetchResponse{}, fmt.Errorf("headless slot wait canceled: %w", err)
		}
		defer f.slots.Release(1)
	}

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()
	// Propagate caller cancellation into the browser tab.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	html, finalURL, err := f.render(taskCtx, request)
	if err != nil {
		return logo.FetchResponse{}, fmt.Errorf("%w: headless %s: %w", logo.ErrFetch, request.URL, err)
	}

	status, headers, responseURL := meta.resolve(request.URL, finalURL)
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return logo.FetchResponse{}, fmt.Errorf("%w: headless %s: unexpected status %d", logo.ErrFetch, request.URL, status)
	}
	return logo.FetchResponse{
		URL:          responseURL,
		StatusCode:   status,
		Headers:      headers,
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

func (f *Fetcher) render(ctx context.Context, request logo.FetchRequest) (string, string, error) {
	var html, finalURL string
	actions := []chromedp.Action{
		f.setup(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (f *Fetcher) setup(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// responseMeta remembers the main document response seen by the tab.
type responseMeta struct {
	mu      sync.Mutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) captureEvent(ev any) {
	event, ok := ev.(*network.EventResponseReceived)
	if !ok || event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := fromNetworkHeaders(event.Response.Headers)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
}

// resolve returns the captured response, falling back to the tab location
// and then the requested URL; a missing status counts as 200.
func (m *responseMeta) resolve(requestURL, finalURL string) (int, http.Header, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url := m.url
	if url == "" {
		url = finalURL
	}
	if url == "" {
		url = requestURL
	}
	status := m.status
	if status == 0 {
		status = http.StatusOK
	}
	return status, m.headers.Clone(), url
}

func fromNetworkHeaders(src network.Headers) http.Header {
	headers := http.Header{}
	for key, value := range src {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	return headers
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
