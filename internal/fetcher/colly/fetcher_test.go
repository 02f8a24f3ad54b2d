package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

func TestRendererBuildCollector(t *testing.T) {
	t.Parallel()

	r := New(Config{UserAgent: "coverage-agent", Timeout: time.Second}, nil)
	collector := r.buildCollector(&visitState{})
	if collector.UserAgent != "coverage-agent" {
		t.Fatalf("expected user agent override, got %q", collector.UserAgent)
	}
	if !collector.IgnoreRobotsTxt {
		t.Fatal("expected robots txt to be ignored by the collector")
	}
	if !collector.AllowURLRevisit {
		t.Fatal("expected revisits to be allowed for retries")
	}
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	state := &visitState{}
	hooks := &stubHooks{}
	configureCollectorHooks(hooks, state)
	if hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("<html>body</html>"),
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com/final"),
		},
	})
	if state.page.StatusCode != http.StatusOK || state.page.HTML != "<html>body</html>" {
		t.Fatalf("unexpected page: %+v", state.page)
	}
	if state.page.URL != "https://example.com/final" {
		t.Fatalf("expected final url, got %q", state.page.URL)
	}

	hooks.onError(&colly.Response{StatusCode: http.StatusTooManyRequests}, errors.New("Too Many Requests"))
	if state.status != http.StatusTooManyRequests || state.fetchErr == nil {
		t.Fatalf("expected error state captured, got %+v", state)
	}
}

func TestRenderAgainstServer(t *testing.T) {
	t.Parallel()

	agents := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/careers":
			agents <- req.UserAgent()
			_, _ = w.Write([]byte(`<html><body><a href="/jobs/1">Intern</a></body></html>`))
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			http.NotFound(w, req)
		}
	}))
	t.Cleanup(srv.Close)

	r := New(Config{UserAgent: "career-crawler-test/1.0", Timeout: 2 * time.Second}, nil)
	ctx := context.Background()

	page, err := r.Render(ctx, srv.URL+"/careers")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if page.StatusCode != http.StatusOK || page.URL != srv.URL+"/careers" {
		t.Fatalf("unexpected page: %+v", page)
	}
	if got := <-agents; got != "career-crawler-test/1.0" {
		t.Fatalf("expected configured user agent, got %q", got)
	}

	// Rendering twice must not trip colly's visited-URL tracking.
	if _, err := r.Render(ctx, srv.URL+"/careers"); err != nil {
		t.Fatalf("second render: %v", err)
	}

	_, err = r.Render(ctx, srv.URL+"/limited")
	var statusErr *crawler.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected StatusError 429, got %v", err)
	}
}

func TestRenderCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(Config{}, nil)
	if _, err := r.Render(ctx, "http://127.0.0.1:1/never"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
