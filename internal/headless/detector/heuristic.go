// Package detector decides when a static document should be re-rendered
// headlessly before logo discovery.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/logo-resolver/internal/logo"
)

const defaultThreshold = 2048

// Heuristic promotes documents that carry no visual signals and look like a
// client-rendered shell.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

const mountPoints = "#__next, #__nuxt, #root, #app, [data-reactroot], [ng-app], [ng-version]"

// ShouldPromote decides whether a headless fetch is required.
func (h *Heuristic) ShouldPromote(resp logo.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return false
	}
	if hasVisualSignals(doc) {
		return false
	}
	if len(resp.Body) < h.BodyLengthThreshold && scriptDensityHigh(doc, len(resp.Body)) {
		return true
	}
	return emptyMountPoint(doc)
}

// hasVisualSignals reports whether discovery already has something to work with.
func hasVisualSignals(doc *goquery.Document) bool {
	if doc.Find("img, svg, picture").Length() > 0 {
		return true
	}
	found := false
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		rel = strings.ToLower(rel)
		found = strings.Contains(rel, "icon") || strings.Contains(rel, "logo")
		return !found
	})
	return found
}

func scriptDensityHigh(doc *goquery.Document, total int) bool {
	if total == 0 {
		return false
	}
	coverage := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if html, err := goquery.OuterHtml(s); err == nil {
			coverage += len(html)
		}
	})
	return coverage*100/total >= 25
}

func emptyMountPoint(doc *goquery.Document) bool {
	empty := false
	doc.Find(mountPoints).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		empty = s.Children().Length() == 0 && strings.TrimSpace(s.Text()) == ""
		return !empty
	})
	return empty
}
