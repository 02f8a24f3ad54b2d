// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

var (
	crawlerCompaniesTotal         *prometheus.CounterVec
	crawlerListingsTotal          prometheus.Counter
	crawlerPausesTotal            prometheus.Counter
	crawlerRunsTotal              *prometheus.CounterVec
	crawlerRunDurationSeconds     prometheus.Histogram
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerCompaniesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "career_crawler_companies_total",
				Help: "Companies processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerListingsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "career_crawler_listings_total",
				Help: "Job listings extracted across all runs.",
			},
		)

		crawlerPausesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "career_crawler_pauses_total",
				Help: "Times a blocking response tripped the global pause.",
			},
		)

		crawlerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "career_crawler_runs_total",
				Help: "Runs finished, labeled by stop reason.",
			},
			[]string{"stop_reason"},
		)

		crawlerRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "career_crawler_run_duration_seconds",
				Help:    "Wall time of a run including politeness delays.",
				Buckets: []float64{1, 10, 30, 60, 120, 300, 600, 1200},
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "career_crawler_rate_limit_delays_seconds",
				Help:    "Histogram of per-domain rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observer implements crawler.RunObserver on the package collectors.
type Observer struct{}

// NewObserver initializes the collectors and returns an Observer.
func NewObserver() Observer {
	Init()
	return Observer{}
}

// ObserveCompany counts one processed company.
func (Observer) ObserveCompany(outcome crawler.Outcome) {
	crawlerCompaniesTotal.WithLabelValues(string(outcome)).Inc()
}

// ObserveListing counts one extracted listing.
func (Observer) ObserveListing() {
	crawlerListingsTotal.Inc()
}

// ObservePause counts a tripped pause.
func (Observer) ObservePause() {
	crawlerPausesTotal.Inc()
}

// ObserveRun records a finished run.
func (Observer) ObserveRun(stop crawler.StopReason, elapsed time.Duration) {
	crawlerRunsTotal.WithLabelValues(string(stop)).Inc()
	crawlerRunDurationSeconds.Observe(elapsed.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait. It matches
// ratelimit.DelayFunc.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
