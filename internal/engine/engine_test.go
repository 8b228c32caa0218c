package engine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/logo-resolver/internal/clock"
	collyfetcher "github.com/JakeFAU/logo-resolver/internal/fetcher/colly"
	"github.com/JakeFAU/logo-resolver/internal/fetcher/datauri"
	"github.com/JakeFAU/logo-resolver/internal/id/uuid"
	"github.com/JakeFAU/logo-resolver/internal/logo"
	"github.com/JakeFAU/logo-resolver/internal/normalize"
	"github.com/JakeFAU/logo-resolver/internal/resolve"
	"github.com/JakeFAU/logo-resolver/internal/storage/memory"
)

type page struct {
	body   []byte
	status int
}

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]page
	calls []string
}

func (s *stubFetcher) Fetch(_ context.Context, req logo.FetchRequest) (logo.FetchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req.URL)
	p, ok := s.pages[req.URL]
	if !ok || p.status >= http.StatusMultipleChoices {
		return logo.FetchResponse{}, logo.ErrFetch
	}
	return logo.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Headers: http.Header{}, Body: p.body}, nil
}

type stubDetector bool

func (d stubDetector) ShouldPromote(logo.FetchResponse) bool { return bool(d) }

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 20, G: 40, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newEngine(t *testing.T, fetcher logo.Fetcher, extra ...func(*Deps)) (*Engine, *memory.Sink) {
	t.Helper()
	sink := memory.NewSink("")
	norm := normalize.New(normalize.Options{}, sink, uuid.NewRandom())
	res := resolve.New(&datauri.Fetcher{Next: fetcher}, normalize.Validator{MinDimension: 16, MaxBytes: 1 << 20}, norm, nil)
	deps := Deps{
		Fetcher:  fetcher,
		Resolver: res,
		Clock:    clock.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
	}
	for _, fn := range extra {
		fn(&deps)
	}
	e, err := New(deps)
	require.NoError(t, err)
	return e, sink
}

const acmeHTML = `<html><head>
<title>Acme Corp</title>
<link rel="apple-touch-icon" href="/touch.png">
</head><body>
<header><img class="site-logo" src="/img/logo.png" alt="Acme logo"></header>
</body></html>`

func TestResolvePicksHighestScoringCandidate(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]page{
		"https://acme.test":              {body: []byte(acmeHTML)},
		"https://acme.test/img/logo.png": {body: pngOf(t, 64, 32)},
		"https://acme.test/touch.png":    {body: pngOf(t, 180, 180)},
	}}
	e, sink := newEngine(t, fetcher)

	res := e.Resolve(context.Background(), "acme.test/")
	require.Equal(t, logo.StatusSuccess, res.Status, res.Diagnostic)
	assert.Equal(t, "acme.test/", res.SourceURL)
	assert.Equal(t, "acme.test", res.Domain)
	assert.Equal(t, "acme corp", res.SiteName)
	assert.Equal(t, "https://acme.test/img/logo.png", res.CandidateLocator)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.Diagnostic)
	require.NotNil(t, res.Artifact)
	assert.Equal(t, 64, res.Artifact.Width)
	assert.True(t, strings.HasPrefix(res.Artifact.Name, "acme_test_"))
	assert.Equal(t, []string{res.Artifact.Name}, sink.Keys())
	assert.NotContains(t, fetcher.calls, "https://acme.test/touch.png")
}

func TestResolveFallsBackToNextCandidate(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]page{
		"https://acme.test":              {body: []byte(acmeHTML)},
		"https://acme.test/img/logo.png": {status: http.StatusNotFound},
		"https://acme.test/touch.png":    {body: pngOf(t, 180, 180)},
	}}
	e, _ := newEngine(t, fetcher)

	res := e.Resolve(context.Background(), "https://acme.test")
	require.Equal(t, logo.StatusSuccess, res.Status, res.Diagnostic)
	assert.Equal(t, "https://acme.test/touch.png", res.CandidateLocator)
	assert.Equal(t, 2, res.Attempts)
}

func TestResolveIsDeterministic(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]page{
		"https://acme.test":              {body: []byte(acmeHTML)},
		"https://acme.test/img/logo.png": {body: pngOf(t, 64, 32)},
		"https://acme.test/touch.png":    {body: pngOf(t, 180, 180)},
	}}
	e, _ := newEngine(t, fetcher)

	first := e.Resolve(context.Background(), "https://acme.test")
	second := e.Resolve(context.Background(), "https://acme.test")
	assert.Equal(t, first.CandidateLocator, second.CandidateLocator)
	assert.Equal(t, first.Artifact.Digest, second.Artifact.Digest)
	assert.NotEqual(t, first.Artifact.Name, second.Artifact.Name)
}

func TestResolveStatuses(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{pages: map[string]page{
		"https://empty.test":  {body: []byte(`<html><head><meta property="og:site_name" content="Empty Inc"></head><body><p>hi</p></body></html>`)},
		"https://broken.test": {body: []byte(`<html><body><img id="logo" src="/missing.png"></body></html>`)},
		"https://down.test":   {status: http.StatusInternalServerError},
	}}
	e, _ := newEngine(t, fetcher)

	tests := []struct {
		url      string
		want     logo.Status
		siteName string
		attempts int
	}{
		{url: "", want: logo.StatusInvalidURL},
		{url: "ftp://files.test", want: logo.StatusInvalidURL},
		{url: "https://down.test", want: logo.StatusFetchError},
		{url: "https://empty.test", want: logo.StatusNoCandidateFound, siteName: "empty inc"},
		{url: "https://broken.test", want: logo.StatusAllCandidatesFailed, attempts: 1},
	}
	for _, tc := range tests {
		res := e.Resolve(context.Background(), tc.url)
		assert.Equal(t, tc.want, res.Status, tc.url)
		assert.NotEmpty(t, res.Diagnostic, tc.url)
		assert.Nil(t, res.Artifact, tc.url)
		assert.Equal(t, tc.siteName, res.SiteName, tc.url)
		assert.Equal(t, tc.attempts, res.Attempts, tc.url)
		assert.Equal(t, tc.url, res.SourceURL)
	}
}

func TestResolveInlineAndDataCandidates(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<svg class="brand-mark" viewBox="0 0 40 40"><title>Acme logo</title><rect width="40" height="40" fill="red"></rect></svg>
</body></html>`
	fetcher := &stubFetcher{pages: map[string]page{"https://inline.test": {body: []byte(html)}}}
	e, _ := newEngine(t, fetcher)

	res := e.Resolve(context.Background(), "https://inline.test")
	require.Equal(t, logo.StatusSuccess, res.Status, res.Diagnostic)
	assert.Equal(t, "png", res.Artifact.Format)
	assert.Equal(t, 1, len(fetcher.calls), "inline markup needs no asset fetch")
}

func TestResolvePromotesToHeadless(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{pages: map[string]page{
		"https://spa.test":          {body: []byte(`<html><body><div id="root"></div></body></html>`)},
		"https://spa.test/logo.png": {body: pngOf(t, 48, 48)},
	}}
	rendered := &stubFetcher{pages: map[string]page{
		"https://spa.test": {body: []byte(`<html><body><div id="root"><img class="logo" src="/logo.png"></div></body></html>`)},
	}}
	e, _ := newEngine(t, static, func(d *Deps) {
		d.Headless = rendered
		d.Detector = stubDetector(true)
	})

	res := e.Resolve(context.Background(), "https://spa.test")
	require.Equal(t, logo.StatusSuccess, res.Status, res.Diagnostic)
	assert.True(t, res.UsedHeadless)
	assert.Equal(t, []string{"https://spa.test"}, rendered.calls)
}

func TestResolveKeepsStaticDocumentWhenPromotionFails(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{pages: map[string]page{
		"https://spa.test": {body: []byte(`<html><body><div id="root"></div></body></html>`)},
	}}
	e, _ := newEngine(t, static, func(d *Deps) {
		d.Headless = &stubFetcher{}
		d.Detector = stubDetector(true)
	})

	res := e.Resolve(context.Background(), "https://spa.test")
	assert.Equal(t, logo.StatusNoCandidateFound, res.Status)
	assert.False(t, res.UsedHeadless)
}

func TestResolveOverHTTP(t *testing.T) {
	t.Parallel()

	logoPNG := pngOf(t, 40, 40)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/home" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><link rel="icon" href="/favicon.png"></head>
<body><nav><a href="/"><img src="assets/brand-logo.png"></a></nav></body></html>`))
	})
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	mux.HandleFunc("/assets/brand-logo.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(logoPNG)
	})
	mux.HandleFunc("/favicon.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngOf(t, 16, 16))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second})
	e, _ := newEngine(t, fetcher)

	res := e.Resolve(context.Background(), srv.URL+"/start")
	require.Equal(t, logo.StatusSuccess, res.Status, res.Diagnostic)
	assert.Equal(t, srv.URL+"/assets/brand-logo.png", res.CandidateLocator)
	assert.Equal(t, "127.0.0.1", res.Domain)
	assert.True(t, strings.HasPrefix(res.Artifact.Name, "127_0_0_1_"))
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{})
	assert.Error(t, err)
	_, err = New(Deps{Fetcher: &stubFetcher{}})
	assert.Error(t, err)
}
