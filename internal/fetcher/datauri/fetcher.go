// Package datauri serves data: URL candidates without touching the network.
package datauri

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/logo-resolver/internal/logo"
)

const scheme = "data:"

// Fetcher decodes data: URLs locally and hands every other URL to Next.
type Fetcher struct {
	Next logo.Fetcher
}

// Fetch implements logo.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, request logo.FetchRequest) (logo.FetchResponse, error) {
	if !IsDataURL(request.URL) {
		resp, err := f.Next.Fetch(ctx, request)
		if err != nil {
			return logo.FetchResponse{}, err //nolint:wrapcheck // passthrough decorator
		}
		return resp, nil
	}
	start := time.Now()
	mediaType, body, err := Decode(request.URL)
	if err != nil {
		return logo.FetchResponse{}, fmt.Errorf("%w: %w", logo.ErrFetch, err)
	}
	headers := http.Header{}
	headers.Set("Content-Type", mediaType)
	return logo.FetchResponse{
		URL:        request.URL,
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}

// IsDataURL reports whether raw uses the data: scheme.
func IsDataURL(raw string) bool {
	return len(raw) >= len(scheme) && strings.EqualFold(raw[:len(scheme)], scheme)
}

// Decode splits a data: URL into its media type and payload.
// The media type defaults to text/plain when omitted.
func Decode(raw string) (string, []byte, error) {
	if !IsDataURL(raw) {
		return "", nil, fmt.Errorf("not a data url")
	}
	header, payload, ok := strings.Cut(raw[len(scheme):], ",")
	if !ok {
		return "", nil, fmt.Errorf("data url missing payload separator")
	}
	params := strings.Split(header, ";")
	mediaType := strings.TrimSpace(params[0])
	if mediaType == "" {
		mediaType = "text/plain"
	}
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if isBase64 {
		cleaned := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		if unescaped, err := url.PathUnescape(cleaned); err == nil {
			cleaned = unescaped
		}
		body, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			body, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
			if err != nil {
				return "", nil, fmt.Errorf("decode base64 payload: %w", err)
			}
		}
		return strings.ToLower(mediaType), body, nil
	}
	body, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("unescape payload: %w", err)
	}
	return strings.ToLower(mediaType), []byte(body), nil
}
