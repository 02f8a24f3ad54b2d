// Package extract turns rendered career pages into job listing candidates.
package extract

import (
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

const defaultLocation = "Unknown"

// Extractor matches anchor text against a company's keywords.
type Extractor struct {
	logger *zap.Logger
}

// New constructs an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract implements crawler.ListingExtractor. Anchors are visited in
// document order and the first anchor producing a link wins. The returned
// sequence can be consumed once.
func (e *Extractor) Extract(target crawler.CompanyTarget, page crawler.RenderedPage) iter.Seq[crawler.JobListing] {
	consumed := false
	return func(yield func(crawler.JobListing) bool) {
		if consumed {
			return
		}
		consumed = true

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
		if err != nil {
			e.logger.Warn("parse page failed", zap.String("company", target.Name), zap.Error(err))
			return
		}
		base := page.URL
		if base == "" {
			base = target.URL
		}
		keywords := lowerKeywords(target.Keywords)
		location := strings.TrimSpace(target.Location)
		if location == "" {
			location = defaultLocation
		}
		titler := cases.Title(language.English)
		seen := make(map[string]struct{})

		for _, anchor := range doc.Find("a[href]").EachIter() {
			text := strings.Join(strings.Fields(anchor.Text()), " ")
			href, _ := anchor.Attr("href")
			if text == "" || strings.TrimSpace(href) == "" {
				continue
			}
			keyword, ok := firstMatch(strings.ToLower(text), keywords)
			if !ok {
				continue
			}
			link, err := crawler.ResolveLink(base, href)
			if err != nil {
				e.logger.Debug("skip unresolvable link", zap.String("href", href), zap.Error(err))
				continue
			}
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			listing := crawler.JobListing{
				Company:        target.Name,
				Title:          titler.String(text),
				NormalizedLink: link,
				MatchedKeyword: keyword.original,
				Location:       location,
			}
			if !yield(listing) {
				return
			}
		}
	}
}

type keyword struct {
	original string
	lower    string
}

func lowerKeywords(in []string) []keyword {
	normalized := crawler.NormalizeKeywords(in)
	out := make([]keyword, 0, len(normalized))
	for _, kw := range normalized {
		out = append(out, keyword{original: kw, lower: strings.ToLower(kw)})
	}
	return out
}

func firstMatch(text string, keywords []keyword) (keyword, bool) {
	for _, kw := range keywords {
		if strings.Contains(text, kw.lower) {
			return kw, true
		}
	}
	return keyword{}, false
}
