package logo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "adds scheme", in: "example.com", want: "https://example.com"},
		{name: "trims trailing slash", in: "https://example.com/", want: "https://example.com"},
		{name: "keeps path", in: "http://Example.com/brand/", want: "http://example.com/brand"},
		{name: "drops fragment", in: "example.com/#top", want: "https://example.com"},
		{name: "trims whitespace", in: "  example.org  ", want: "https://example.org"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURLRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "ftp://example.com", "https://", "exa mple.com"} {
		_, err := NormalizeURL(in)
		if !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("NormalizeURL(%q) error = %v, want ErrInvalidURL", in, err)
		}
	}
}

func TestDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "www.example.com", Domain("https://WWW.Example.com:8443/path"))
	assert.Equal(t, "", Domain("://bad"))
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StatusSuccess, StatusFor(nil))
	assert.Equal(t, StatusInvalidURL, StatusFor(ErrInvalidURL))
	assert.Equal(t, StatusNoCandidateFound, StatusFor(errors.Join(errors.New("ctx"), ErrNoCandidate)))
	assert.Equal(t, StatusAllCandidatesFailed, StatusFor(ErrAllCandidatesFailed))
	assert.Equal(t, StatusFetchError, StatusFor(ErrFetch))
	assert.Equal(t, StatusFetchError, StatusFor(errors.New("boom")))
}
