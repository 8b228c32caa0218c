package discovery

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/logo-resolver/internal/logging"
	"github.com/JakeFAU/logo-resolver/internal/logo"
)

// Page is what discovery learned from one document.
type Page struct {
	SiteName   string
	Candidates []logo.Candidate
}

// Discoverer runs a fixed strategy list over documents.
type Discoverer struct {
	strategies []Strategy
	logger     *zap.Logger
}

// New builds a Discoverer. With no strategies it uses DefaultStrategies.
func New(logger *zap.Logger, strategies ...Strategy) *Discoverer {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Discoverer{strategies: strategies, logger: logging.OrNop(logger)}
}

// Discover parses body and runs every strategy against it. baseURL is the final
// URL the document was served from.
func (d *Discoverer) Discover(body []byte, baseURL string) (Page, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return Page{}, fmt.Errorf("%w: base url %q", logo.ErrInvalidURL, baseURL)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("parse document: %w", err)
	}
	return Page{
		SiteName:   SiteName(doc),
		Candidates: d.Candidates(doc, base),
	}, nil
}

// Candidates concatenates strategy output in list order and stamps each
// candidate with its strategy and discovery sequence.
func (d *Discoverer) Candidates(doc *goquery.Document, base *url.URL) []logo.Candidate {
	var out []logo.Candidate
	strong := false
	for _, strategy := range d.strategies {
		if strategy.Fallback && strong {
			continue
		}
		found := strategy.Run(doc, base)
		for _, c := range found {
			c.Strategy = strategy.Name
			c.Order = len(out)
			out = append(out, c)
			if c.Score >= StrongScore {
				strong = true
			}
		}
		d.logger.Debug("strategy finished",
			zap.String("strategy", strategy.Name),
			zap.Int("candidates", len(found)),
		)
	}
	return out
}
