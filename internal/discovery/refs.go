package discovery

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// resolveRef makes ref absolute against base. It returns "" for references
// that can never be fetched (fragments, javascript:, mailto:, ...).
// data: URIs are returned unchanged.
func resolveRef(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ""
	}
	if isDataURI(ref) {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func isDataURI(ref string) bool {
	return len(ref) >= 5 && strings.EqualFold(ref[:5], "data:")
}

// imageSource returns the best raw reference of an <img>: src, then the usual
// lazy-loading attributes, then the first srcset entry.
func imageSource(s *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-original"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	for _, attr := range []string{"srcset", "data-srcset"} {
		if v, ok := s.Attr(attr); ok {
			if first := firstSrcset(v); first != "" {
				return first
			}
		}
	}
	return ""
}

func firstSrcset(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// filename is the lowercased last path segment of a resolved locator.
func filename(locator string) string {
	if locator == "" || isDataURI(locator) {
		return ""
	}
	u, err := url.Parse(locator)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Base(u.Path))
}

func isVectorRef(locator string) bool {
	if isDataURI(locator) {
		return strings.HasPrefix(strings.ToLower(locator), "data:image/svg+xml")
	}
	u, err := url.Parse(locator)
	if err != nil {
		return false
	}
	return strings.EqualFold(path.Ext(u.Path), ".svg")
}

// lowerAttr returns the lowercased attribute value or "".
func lowerAttr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.ToLower(v)
}
