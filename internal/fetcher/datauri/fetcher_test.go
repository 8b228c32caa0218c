package datauri

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/logo-resolver/internal/logo"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		mediaType string
		body      string
	}{
		{name: "base64", raw: "data:image/png;base64,aGVsbG8=", mediaType: "image/png", body: "hello"},
		{name: "unpadded base64", raw: "data:image/png;base64,aGVsbG8", mediaType: "image/png", body: "hello"},
		{name: "percent encoded", raw: "data:image/svg+xml,%3Csvg%3E%3C/svg%3E", mediaType: "image/svg+xml", body: "<svg></svg>"},
		{name: "default media type", raw: "data:,hi", mediaType: "text/plain", body: "hi"},
		{name: "charset param", raw: "DATA:image/svg+xml;charset=utf8,%3Csvg/%3E", mediaType: "image/svg+xml", body: "<svg/>"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			mediaType, body, err := Decode(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.mediaType, mediaType)
			assert.Equal(t, tc.body, string(body))
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"https://a.com", "data:image/png;base64", "data:image/png;base64,!!!"} {
		if _, _, err := Decode(raw); err == nil {
			t.Fatalf("Decode(%q) expected error", raw)
		}
	}
}

func TestFetcherRoutes(t *testing.T) {
	t.Parallel()

	next := &recordingFetcher{}
	f := &Fetcher{Next: next}

	resp, err := f.Fetch(context.Background(), logo.FetchRequest{URL: "data:image/gif;base64,R0lG"})
	require.NoError(t, err)
	assert.Equal(t, "image/gif", resp.Headers.Get("Content-Type"))
	assert.Equal(t, "GIF", string(resp.Body))
	assert.Empty(t, next.urls)

	_, err = f.Fetch(context.Background(), logo.FetchRequest{URL: "https://a.com/logo.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com/logo.png"}, next.urls)
}

func TestFetcherWrapsDecodeFailure(t *testing.T) {
	t.Parallel()

	f := &Fetcher{Next: &recordingFetcher{}}
	_, err := f.Fetch(context.Background(), logo.FetchRequest{URL: "data:image/png;base64"})
	if !errors.Is(err, logo.ErrFetch) {
		t.Fatalf("Fetch() error = %v, want ErrFetch", err)
	}
}

type recordingFetcher struct {
	urls []string
}

func (r *recordingFetcher) Fetch(_ context.Context, req logo.FetchRequest) (logo.FetchResponse, error) {
	r.urls = append(r.urls, req.URL)
	return logo.FetchResponse{URL: req.URL, StatusCode: 200}, nil
}
