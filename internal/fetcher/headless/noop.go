package headless

import (
	"context"
	"errors"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// ErrNotConfigured is returned by Noop for every render.
var ErrNotConfigured = errors.New("headless renderer not configured")

// Noop implements crawler.Renderer but always fails, for builds or hosts
// where no browser is available.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render returns ErrNotConfigured.
func (Noop) Render(_ context.Context, _ string) (crawler.RenderedPage, error) {
	return crawler.RenderedPage{}, ErrNotConfigured
}
