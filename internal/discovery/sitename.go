package discovery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SiteName returns the page's self-declared name: og:site_name, then
// og:title, then <title>. The result is trimmed and lowercased.
func SiteName(doc *goquery.Document) string {
	for _, sel := range []string{`meta[property="og:site_name"]`, `meta[property="og:title"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return strings.ToLower(v)
			}
		}
	}
	return strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
}
