package discovery

import (
	"cmp"
	"net/url"
	"slices"
	"strings"

	"github.com/JakeFAU/logo-resolver/internal/logo"
)

// Rank drops invalid and duplicate candidates, then orders the rest by score,
// highest first, keeping discovery order among equal scores. A duplicate keeps
// the position of its first occurrence and the highest score seen. It returns
// logo.ErrNoCandidate when nothing survives.
func Rank(candidates []logo.Candidate) ([]logo.Candidate, error) {
	out := make([]logo.Candidate, 0, len(candidates))
	index := make(map[string]int, len(candidates))
	for _, c := range candidates {
		if !Valid(c) {
			continue
		}
		key := string(c.Kind) + "\x00" + c.Locator
		if i, ok := index[key]; ok {
			if c.Score > out[i].Score {
				out[i].Score = c.Score
				out[i].Strategy = c.Strategy
			}
			continue
		}
		index[key] = len(out)
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, logo.ErrNoCandidate
	}
	slices.SortStableFunc(out, func(a, b logo.Candidate) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.Order, b.Order)
	})
	return out, nil
}

// Valid reports whether a candidate is structurally usable.
func Valid(c logo.Candidate) bool {
	switch c.Kind {
	case logo.KindInlineMarkup:
		return strings.Contains(strings.ToLower(c.Locator), "<svg")
	case logo.KindRemoteAsset:
		if isDataURI(c.Locator) {
			return strings.HasPrefix(strings.ToLower(c.Locator), "data:image/")
		}
		u, err := url.Parse(c.Locator)
		if err != nil {
			return false
		}
		return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	default:
		return false
	}
}
