// Package collyfetcher implements a static crawler.Renderer using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/career-crawler/internal/crawler"
	"github.com/JakeFAU/career-crawler/internal/policy/ratelimit"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Renderer fetches raw HTML over plain HTTP without executing scripts.
type Renderer struct {
	cfg           Config
	domains       *ratelimit.Limiter
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// visitState collects what the collector callbacks observed for one visit.
type visitState struct {
	page     crawler.RenderedPage
	status   int
	fetchErr error
}

// New builds a Renderer. domains may be nil.
func New(cfg Config, domains *ratelimit.Limiter) *Renderer {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	// robots.txt is resolved by the crawl engine before any fetch.
	c.IgnoreRobotsTxt = true

	return &Renderer{
		cfg:           cfg,
		domains:       domains,
		baseCollector: c,
	}
}

// Render executes a single HTTP GET using Colly. Responses with status 400
// or above are reported as *crawler.StatusError.
func (r *Renderer) Render(ctx context.Context, rawURL string) (crawler.RenderedPage, error) {
	if err := r.domains.Wait(ctx, rawURL); err != nil {
		return crawler.RenderedPage{}, err
	}
	state := &visitState{}
	collector := r.buildCollector(state)

	err := r.runCollector(ctx, collector, rawURL, state)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// The visit goroutine may still be writing to state.
		return crawler.RenderedPage{}, fmt.Errorf("colly fetch canceled: %w", ctxErr)
	}
	if state.status >= http.StatusBadRequest {
		return crawler.RenderedPage{}, &crawler.StatusError{Code: state.status, URL: rawURL}
	}
	if err != nil {
		return crawler.RenderedPage{}, err
	}
	return state.page, nil
}

func (r *Renderer) buildCollector(state *visitState) *colly.Collector {
	collector := r.baseCollector.Clone()
	if r.cfg.UserAgent != "" {
		collector.UserAgent = r.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	// Retries revisit the same URL on purpose.
	collector.AllowURLRevisit = true
	timeout := r.cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)

	configureCollectorHooks(collector, state)
	return collector
}

func configureCollectorHooks(hooks collectorHooks, state *visitState) {
	hooks.OnResponse(func(resp *colly.Response) {
		state.status = resp.StatusCode
		state.page = crawler.RenderedPage{
			URL:        resp.Request.URL.String(),
			HTML:       string(resp.Body),
			StatusCode: resp.StatusCode,
		}
	})

	hooks.OnError(func(resp *colly.Response, err error) {
		if resp != nil {
			state.status = resp.StatusCode
		}
		state.fetchErr = err
	})
}

func (r *Renderer) runCollector(ctx context.Context, collector *colly.Collector, url string, state *visitState) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if state.fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", state.fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
