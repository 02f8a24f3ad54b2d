// Package detector inspects rendered markup: Challenge flags bot-verification
// pages and Heuristic decides when a static fetch must be re-rendered headless.
package detector

import (
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

const defaultMinVisibleText = 2048

// mountSelectors match the empty containers client-side frameworks hydrate.
// The HTML parser lowercases attribute names, so NG-APP matches too.
const mountSelectors = `#__next, #__nuxt, #root, #app, [data-reactroot], [ng-app], [data-v-app], [data-server-rendered]`

// Heuristic promotes static careers pages that are app shells.
type Heuristic struct {
	// MinVisibleText is the amount of body text, scripts excluded, under
	// which a page counts as thin.
	MinVisibleText int
}

// NewHeuristic creates a Heuristic; zero selects the default threshold.
func NewHeuristic(minVisibleText int) *Heuristic {
	if minVisibleText <= 0 {
		minVisibleText = defaultMinVisibleText
	}
	return &Heuristic{MinVisibleText: minVisibleText}
}

// pageShape is what ShouldPromote measures on a static page.
type pageShape struct {
	visibleText int
	scriptBytes int
	mounts      int
	jobLinks    int
}

func measure(html string) (pageShape, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return pageShape{}, err
	}
	var shape pageShape
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		shape.scriptBytes += len(s.Text())
		if _, external := s.Attr("src"); external {
			// An external bundle weighs more than its empty tag.
			shape.scriptBytes += 512
		}
	})
	shape.mounts = doc.Find(mountSelectors).Length()
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		if strings.TrimSpace(s.Text()) != "" {
			shape.jobLinks++
		}
	})
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	shape.visibleText = len(strings.Join(strings.Fields(body.Text()), " "))
	return shape, nil
}

// ShouldPromote reports whether a static page needs a headless render. Only
// 200 responses qualify. A page is promoted when it is empty, when a thin
// page mounts a client-side app, when a mount point holds no usable links,
// or when a thin page carries more script than text.
func (h *Heuristic) ShouldPromote(page crawler.RenderedPage) bool {
	if page.StatusCode != http.StatusOK {
		return false
	}
	if strings.TrimSpace(page.HTML) == "" {
		return true
	}
	shape, err := measure(page.HTML)
	if err != nil {
		return true
	}
	thin := shape.visibleText < h.MinVisibleText
	switch {
	case shape.mounts > 0 && (thin || shape.jobLinks == 0):
		return true
	case thin && shape.scriptBytes > shape.visibleText:
		return true
	}
	return false
}
