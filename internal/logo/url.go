package logo

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL prepares user input for fetching. A missing scheme defaults to
// https and trailing slashes are trimmed. Empty or malformed input returns an
// error wrapping ErrInvalidURL.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidURL)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + strings.TrimPrefix(trimmed, "//")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}
	if strings.ContainsAny(u.Hostname(), " \t") {
		return "", fmt.Errorf("%w: malformed host %q", ErrInvalidURL, u.Hostname())
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

// Domain returns the lowercased host of rawURL without its port.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
