package discovery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/logo-resolver/internal/logo"
)

// Strategy names, reported on every candidate.
const (
	StrategyLinkRel   = "link_rel"
	StrategyImageAttr = "image_attr"
	StrategyVector    = "inline_vector"
	StrategyRegion    = "regional_fallback"
)

// StrategyFunc proposes candidates from a parsed document. Locators it returns
// must already be absolute.
type StrategyFunc func(doc *goquery.Document, base *url.URL) []logo.Candidate

// Strategy is a named heuristic.
type Strategy struct {
	Name string
	Run  StrategyFunc
	// Fallback strategies run only when no earlier candidate reached StrongScore.
	Fallback bool
}

// DefaultStrategies returns the built-in heuristics in discovery order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyLinkRel, Run: LinkRelations},
		{Name: StrategyImageAttr, Run: ImageAttributes},
		{Name: StrategyVector, Run: InlineVectors},
		{Name: StrategyRegion, Run: RegionalFallback, Fallback: true},
	}
}

// LinkRelations scores <link> elements whose rel names an icon or logo.
func LinkRelations(doc *goquery.Document, base *url.URL) []logo.Candidate {
	var out []logo.Candidate
	doc.Find("link[rel][href]").Each(func(_ int, s *goquery.Selection) {
		score := linkRelScore(strings.Fields(lowerAttr(s, "rel")))
		if score == 0 {
			return
		}
		href, _ := s.Attr("href")
		if locator := resolveRef(base, href); locator != "" {
			out = append(out, logo.Candidate{Locator: locator, Kind: logo.KindRemoteAsset, Score: score})
		}
	})
	return out
}

func linkRelScore(tokens []string) int {
	best := 0
	for _, tok := range tokens {
		score := 0
		switch {
		case tok == "apple-touch-icon-precomposed":
			score = ScorePrecomposedTouchIcon
		case tok == "apple-touch-icon":
			score = ScoreTouchIcon
		case strings.Contains(tok, "logo"):
			score = ScoreLinkLogo
		case tok == "mask-icon":
			score = ScoreMaskIcon
		case strings.Contains(tok, "icon"):
			score = ScoreIcon
		}
		best = max(best, score)
	}
	return best
}

// ImageAttributes scores every <img> by the brand tokens in its attributes and filename.
func ImageAttributes(doc *goquery.Document, base *url.URL) []logo.Candidate {
	var out []logo.Candidate
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		locator := resolveRef(base, imageSource(s))
		if locator == "" {
			return
		}
		score := 0
		for _, attr := range []string{"class", "id", "alt", "title", "name"} {
			score += tokenScore(lowerAttr(s, attr))
		}
		score += tokenScore(filename(locator))
		if score > 0 {
			out = append(out, logo.Candidate{Locator: locator, Kind: logo.KindRemoteAsset, Score: score})
		}
	})
	return out
}

func tokenScore(value string) int {
	if value == "" {
		return 0
	}
	score := 0
	if strings.Contains(value, "logo") {
		score += ScoreAttrLogo
	}
	if strings.Contains(value, "brand") {
		score += ScoreAttrBrand
	}
	if strings.Contains(value, "header") {
		score += ScoreAttrHeader
	}
	return score
}

// InlineVectors captures labelled <svg> markup and references to .svg files.
func InlineVectors(doc *goquery.Document, base *url.URL) []logo.Candidate {
	var out []logo.Candidate
	doc.Find("svg").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("svg").Length() > 0 {
			return
		}
		label := strings.ToLower(strings.Join([]string{
			s.ChildrenFiltered("title").First().Text(),
			lowerAttr(s, "aria-label"),
			lowerAttr(s, "id"),
			lowerAttr(s, "class"),
		}, " "))
		score := 0
		switch {
		case strings.Contains(label, "logo"):
			score = ScoreInlineLogo
		case strings.Contains(label, "brand"):
			score = ScoreInlineBrand
		default:
			return
		}
		markup, err := goquery.OuterHtml(s)
		if err != nil || strings.TrimSpace(markup) == "" {
			return
		}
		out = append(out, logo.Candidate{Locator: markup, Kind: logo.KindInlineMarkup, Score: score})
	})
	doc.Find("img, object, embed").Each(func(_ int, s *goquery.Selection) {
		var ref string
		switch goquery.NodeName(s) {
		case "img":
			ref = imageSource(s)
		case "object":
			ref, _ = s.Attr("data")
		default:
			ref, _ = s.Attr("src")
		}
		locator := resolveRef(base, ref)
		if locator == "" || !isVectorRef(locator) {
			return
		}
		score := ScoreVectorRef
		if strings.Contains(strings.ToLower(locator), "logo") {
			score += ScoreVectorRefLogo
		}
		out = append(out, logo.Candidate{Locator: locator, Kind: logo.KindRemoteAsset, Score: score})
	})
	return out
}

var regionTokens = []string{"header", "nav", "top", "logo", "brand"}

// maxRegionDepth bounds how far below a container an image may sit and still
// count as one of its image children.
const maxRegionDepth = 3

// RegionalFallback nominates images that sit in header or navigation regions.
// When no region has a nearby image it falls back to the first image anywhere
// inside the first header-like element.
func RegionalFallback(doc *goquery.Document, base *url.URL) []logo.Candidate {
	regions := doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return headerLike(s)
	})
	var out []logo.Candidate
	seen := map[string]struct{}{}
	regions.Each(func(_ int, region *goquery.Selection) {
		regionNode := region.Get(0)
		region.Find("img").Each(func(_ int, img *goquery.Selection) {
			if depthBelow(img.Get(0), regionNode) > maxRegionDepth {
				return
			}
			locator := resolveRef(base, imageSource(img))
			if locator == "" {
				return
			}
			if _, ok := seen[locator]; ok {
				return
			}
			seen[locator] = struct{}{}
			out = append(out, logo.Candidate{Locator: locator, Kind: logo.KindRemoteAsset, Score: ScoreRegionImage})
		})
	})
	if len(out) > 0 || regions.Length() == 0 {
		return out
	}
	regions.First().Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		locator := resolveRef(base, imageSource(img))
		if locator == "" {
			return true
		}
		out = append(out, logo.Candidate{Locator: locator, Kind: logo.KindRemoteAsset, Score: ScoreRegionLastResort})
		return false
	})
	return out
}

func headerLike(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "header", "nav":
		return true
	case "html", "body", "head", "script", "style", "img", "svg":
		return false
	}
	return hasRegionToken(lowerAttr(s, "class")) || hasRegionToken(lowerAttr(s, "id"))
}

// hasRegionToken matches word parts such as "navbar", "site-header" or
// "top_bar" while ignoring incidental substrings like "desktop".
func hasRegionToken(value string) bool {
	if value == "" {
		return false
	}
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t' || r == '\n'
	})
	for _, part := range parts {
		for _, tok := range regionTokens {
			if strings.HasPrefix(part, tok) {
				return true
			}
		}
	}
	return false
}

func depthBelow(node, ancestor *html.Node) int {
	depth := 0
	for n := node; n != nil && n != ancestor; n = n.Parent {
		depth++
	}
	return depth
}
