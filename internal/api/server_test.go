package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/career-crawler/internal/crawler"
	"github.com/JakeFAU/career-crawler/internal/purge"
)

func TestServer_TriggerRun_ReturnsResult(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: crawler.RunResult{
		RunID:    "run-1",
		Stop:     crawler.StopCompleted,
		Listings: []crawler.JobListing{{Company: "Acme", Title: "Data Intern", NormalizedLink: "https://acme.test/1"}},
	}}
	server := newTestServer(runner, &fakePurger{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got crawler.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Listings, 1)
}

func TestServer_TriggerRun_DetachedFromClient(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: crawler.RunResult{RunID: "run-1", Stop: crawler.StopCompleted}}
	server := newTestServer(runner, &fakePurger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil).WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, runner.ctxErr, "client cancellation must not reach the run")
}

func TestServer_TriggerRun_Busy(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		result: crawler.RunResult{RunID: "run-2", Stop: crawler.StopBusy},
		err:    crawler.ErrRunInProgress,
	}
	server := newTestServer(runner, &fakePurger{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), `"stop_reason":"busy"`)
}

func TestServer_TriggerRun_Error(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New("context deadline exceeded")}
	server := newTestServer(runner, &fakePurger{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "deadline")
}

func TestServer_GetStatus(t *testing.T) {
	t.Parallel()

	until := time.Unix(1_700_021_600, 0).UTC()
	runner := &fakeRunner{companies: []crawler.CompanyTarget{{Name: "Acme"}, {Name: "Globex"}}}
	status := fakeStatus{status: crawler.GateStatus{Paused: true, PausedUntil: until, QuotaUsed: 12, QuotaCap: 100}}
	server := NewServer(runner, status, &fakePurger{}, Config{}, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.Paused)
	require.True(t, got.PausedUntil.Equal(until))
	require.Equal(t, 12, got.QuotaUsed)
	require.Equal(t, 100, got.QuotaCap)
	require.Equal(t, 2, got.Companies)
}

func TestServer_ListCompanies(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{companies: []crawler.CompanyTarget{{Name: "Acme", URL: "https://acme.test/careers"}}}
	server := newTestServer(runner, &fakePurger{})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/companies", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "https://acme.test/careers")
}

func TestServer_PurgeCompany(t *testing.T) {
	t.Parallel()

	purger := &fakePurger{result: purge.Result{Company: "Acme", LogEntries: 3, Listings: 2}}
	server := newTestServer(&fakeRunner{}, purger)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/companies/Acme", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"Acme"}, purger.calls)
	require.Contains(t, rec.Body.String(), `"log_entries":3`)
}

func TestServer_PurgeCompany_Errors(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, &fakePurger{err: purge.ErrEmptyCompany})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/companies/%20", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	server = newTestServer(&fakeRunner{}, &fakePurger{err: errors.New("db down")})
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/companies/Acme", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "db down")
}

func TestServer_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, &fakePurger{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_RecoversFromPanics(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{panics: true}, &fakePurger{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	newTestServer(&fakeRunner{}, &fakePurger{}).Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

type fakeRunner struct {
	mu        sync.Mutex
	result    crawler.RunResult
	err       error
	companies []crawler.CompanyTarget
	ctxErr    error
	panics    bool
}

func (f *fakeRunner) TryRun(ctx context.Context) (crawler.RunResult, error) {
	if f.panics {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErr = ctx.Err()
	return f.result, f.err
}

func (f *fakeRunner) Companies() []crawler.CompanyTarget {
	return f.companies
}

type fakeStatus struct {
	status crawler.GateStatus
}

func (f fakeStatus) Status(context.Context) crawler.GateStatus {
	return f.status
}

type fakePurger struct {
	mu     sync.Mutex
	calls  []string
	result purge.Result
	err    error
}

func (f *fakePurger) PurgeCompany(_ context.Context, company string) (purge.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, company)
	return f.result, f.err
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

func newTestServer(runner Runner, purger Purger) *Server {
	return NewServer(runner, fakeStatus{status: crawler.GateStatus{QuotaCap: 100}}, purger, Config{}, zap.NewNop())
}
