package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/career-crawler/internal/crawler"
	"github.com/JakeFAU/career-crawler/internal/metrics"
	"github.com/JakeFAU/career-crawler/internal/purge"
)

// Runner starts one crawl run unless another is active.
type Runner interface {
	TryRun(ctx context.Context) (crawler.RunResult, error)
	Companies() []crawler.CompanyTarget
}

// StatusReader reports the pause and quota gates.
type StatusReader interface {
	Status(ctx context.Context) crawler.GateStatus
}

// Purger removes a company's persisted data.
type Purger interface {
	PurgeCompany(ctx context.Context, company string) (purge.Result, error)
}

// Config tunes request handling.
type Config struct {
	// RequestTimeout bounds every route except run triggers.
	RequestTimeout time.Duration
	// RunTimeout bounds a triggered run; runs outlive client disconnects.
	RunTimeout time.Duration
}

// Server wires HTTP handlers to the crawl engine and purge service.
type Server struct {
	router chi.Router
	runner Runner
	status StatusReader
	purger Purger
	cfg    Config
	logger *zap.Logger
}

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	crawler.GateStatus
	Companies int `json:"companies"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, status StatusReader, purger Purger, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Hour
	}
	s := &Server{
		runner: runner,
		status: status,
		purger: purger,
		cfg:    cfg,
		logger: logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
		r.Get("/healthz", s.healthz)
		r.Get("/readyz", s.readyz)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
		r.Get("/v1/status", s.getStatus)
		r.Get("/v1/companies", s.listCompanies)
		r.Delete("/v1/companies/{name}", s.purgeCompany)
	})
	r.Post("/v1/runs", s.triggerRun)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	// A half-finished run still leaves politeness delays owed, so the run is
	// detached from the client connection and bounded by RunTimeout instead.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.RunTimeout)
	defer cancel()

	result, err := s.runner.TryRun(ctx)
	switch {
	case errors.Is(err, crawler.ErrRunInProgress):
		s.writeJSON(w, http.StatusConflict, result)
	case err != nil:
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusResponse{
		GateStatus: s.status.Status(r.Context()),
		Companies:  len(s.runner.Companies()),
	})
}

func (s *Server) listCompanies(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"companies": s.runner.Companies()})
}

func (s *Server) purgeCompany(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, err := s.purger.PurgeCompany(r.Context(), name)
	switch {
	case errors.Is(err, purge.ErrEmptyCompany):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error("purge failed", zap.String("company", name), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "purge failed")
	default:
		s.writeJSON(w, http.StatusOK, result)
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the identifier assigned by the request ID middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
