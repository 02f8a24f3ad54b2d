// Package headless contains renderers that execute JavaScript via browsers.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/career-crawler/internal/crawler"
	"github.com/JakeFAU/career-crawler/internal/policy/ratelimit"
)

const (
	defaultNavigationTimeout = 45 * time.Second
	defaultSettle            = 500 * time.Millisecond
)

// Config controls the behavior of the headless renderer.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// Settle is how long the page is left to run scripts after the body is ready.
	Settle time.Duration
	// ExecPath overrides the Chrome binary chromedp would otherwise discover.
	ExecPath string
}

// Renderer implements crawler.Renderer using chromedp and headless Chrome.
type Renderer struct {
	cfg         Config
	limiter     chan struct{}
	domains     *ratelimit.Limiter
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless renderer backed by chromedp. domains may be nil.
func NewChromedp(cfg Config, domains *ratelimit.Limiter) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		limiter:     limiter,
		domains:     domains,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context and shuts the browser down.
func (r *Renderer) Close() {
	r.allocCancel()
}

// Render navigates with a headless browser and returns the fully rendered DOM.
// A document status of 400 or above is reported as *crawler.StatusError.
func (r *Renderer) Render(ctx context.Context, rawURL string) (crawler.RenderedPage, error) {
	if err := r.domains.Wait(ctx, rawURL); err != nil {
		return crawler.RenderedPage{}, err
	}
	if err := r.acquire(ctx); err != nil {
		return crawler.RenderedPage{}, err
	}
	defer r.release()

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()

	// Tie the browser tab to the caller's context as well as the navigation budget.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	taskCtx, cancel := context.WithTimeout(taskCtx, r.navTimeout())
	defer cancel()

	meta := &responseMeta{}
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	html, finalURL, err := r.runHeadless(taskCtx, rawURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return crawler.RenderedPage{}, fmt.Errorf("headless render canceled: %w", ctxErr)
		}
		if status, _ := meta.snapshot(); status >= http.StatusBadRequest {
			return crawler.RenderedPage{}, &crawler.StatusError{Code: status, URL: rawURL}
		}
		return crawler.RenderedPage{}, err
	}

	status, pageURL := meta.snapshotWithFallbacks(rawURL, finalURL)
	if status >= http.StatusBadRequest {
		return crawler.RenderedPage{}, &crawler.StatusError{Code: status, URL: pageURL}
	}
	return crawler.RenderedPage{
		URL:        pageURL,
		HTML:       html,
		StatusCode: status,
	}, nil
}

func (r *Renderer) runHeadless(ctx context.Context, rawURL string) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		r.networkSetupAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if r.cfg.Settle > 0 {
		actions = append(actions, chromedp.Sleep(r.cfg.Settle))
	}
	actions = append(actions,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (r *Renderer) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

func (r *Renderer) navTimeout() time.Duration {
	if r.cfg.NavigationTimeout > 0 {
		return r.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

// responseMeta remembers the top-level document response seen on the wire.
// The first document response fixes the main frame; document responses from
// other frames (iframes, embedded widgets) are ignored.
type responseMeta struct {
	mu      sync.RWMutex
	frame   cdp.FrameID
	latched bool
	status  int
	url     string
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.latched {
		m.frame = event.FrameID
		m.latched = true
	} else if event.FrameID != m.frame {
		return
	}
	// Chrome reports redirect hops on requestWillBeSent, so the latest
	// main-frame response is the final page.
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
}

func (m *responseMeta) snapshot() (int, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.url
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, string) {
	status, url := m.snapshot()
	switch {
	case finalURL != "":
		url = finalURL
	case url != "":
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}
