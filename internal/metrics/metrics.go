// Package metrics exposes Prometheus collectors for the ingest service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	postsScrapedTotal          *prometheus.CounterVec
	postsStoredTotal           prometheus.Counter
	postsCachedTotal           prometheus.Counter
	cacheEvictionsTotal        prometheus.Counter
	crawlJobsTotal             *prometheus.CounterVec
	crawlDurationSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		postsScrapedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagefeed_posts_scraped_total",
				Help: "Total number of posts extracted, labeled by page and category.",
			},
			[]string{"page", "category"},
		)

		postsStoredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagefeed_posts_stored_total",
				Help: "Total number of posts newly persisted to the database.",
			},
		)

		postsCachedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagefeed_posts_cached_total",
				Help: "Total number of posts written to the cache.",
			},
		)

		cacheEvictionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagefeed_cache_evictions_total",
				Help: "Total number of stale index entries evicted from the cache.",
			},
		)

		crawlJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagefeed_crawl_jobs_total",
				Help: "Total number of crawl jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		crawlDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagefeed_crawl_duration_seconds",
				Help:    "Histogram of crawl pipeline durations, labeled by page.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"page"},
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

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagefeed_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)
	})
}

// SanitizePage sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizePage(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePost increments the extraction counter for one post.
func ObservePost(page string, category string) {
	postsScrapedTotal.WithLabelValues(SanitizePage(page), category).Inc()
}

// ObserveStored adds to the stored-post counter.
func ObserveStored(n int) {
	if n > 0 {
		postsStoredTotal.Add(float64(n))
	}
}

// ObserveCached adds to the cached-post counter.
func ObserveCached(n int) {
	if n > 0 {
		postsCachedTotal.Add(float64(n))
	}
}

// ObserveEvictions adds to the cache eviction counter.
func ObserveEvictions(n int64) {
	if n > 0 {
		cacheEvictionsTotal.Add(float64(n))
	}
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	crawlJobsTotal.WithLabelValues(status).Inc()
}

// ObserveCrawlDuration records the duration of one pipeline run.
func ObserveCrawlDuration(page string, duration time.Duration) {
	crawlDurationSeconds.WithLabelValues(SanitizePage(page)).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}
