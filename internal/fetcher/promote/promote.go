// Package promote chains a cheap static renderer with a headless one.
package promote

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// Promoter decides whether a static page must be re-rendered headless.
type Promoter interface {
	ShouldPromote(page crawler.RenderedPage) bool
}

// Renderer fetches statically first and falls back to the headless renderer
// when the promoter judges the static markup incomplete.
type Renderer struct {
	static   crawler.Renderer
	headless crawler.Renderer
	promoter Promoter
	logger   *zap.Logger
}

// New wires a promoting renderer.
func New(static, headless crawler.Renderer, promoter Promoter, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		static:   static,
		headless: headless,
		promoter: promoter,
		logger:   logger,
	}
}

// Render implements crawler.Renderer. Static errors are returned unchanged so
// blocking status codes reach the retry policy without a second request.
func (r *Renderer) Render(ctx context.Context, rawURL string) (crawler.RenderedPage, error) {
	page, err := r.static.Render(ctx, rawURL)
	if err != nil {
		return crawler.RenderedPage{}, err
	}
	if !r.promoter.ShouldPromote(page) {
		return page, nil
	}
	r.logger.Debug("promoting to headless render",
		zap.String("url", rawURL),
		zap.Int("static_bytes", len(page.HTML)),
	)
	return r.headless.Render(ctx, rawURL)
}
