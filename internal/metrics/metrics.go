// Package metrics exposes Prometheus collectors for the sentiment service.
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
	upstreamRequestsTotal         *prometheus.CounterVec
	upstreamBytesTotal            *prometheus.CounterVec
	reviewPagesTotal              prometheus.Counter
	reviewsCollectedTotal         prometheus.Counter
	sentimentQueriesTotal         *prometheus.CounterVec
	crawlerTitlesTotal            *prometheus.CounterVec
	crawlerRunning                prometheus.Gauge
	trendingRequestsTotal         *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steam_upstream_requests_total",
				Help: "Total number of upstream requests, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		upstreamBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steam_upstream_bytes_total",
				Help: "Total number of bytes fetched from upstream, labeled by site.",
			},
			[]string{"site"},
		)

		reviewPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "review_pages_total",
				Help: "Total number of review pages fetched.",
			},
		)

		reviewsCollectedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "reviews_collected_total",
				Help: "Total number of reviews collected.",
			},
		)

		sentimentQueriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentiment_queries_total",
				Help: "Total number of sentiment queries answered, labeled by result source.",
			},
			[]string{"source"},
		)

		crawlerTitlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_titles_total",
				Help: "Total number of titles processed by the background crawler, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerRunning = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_running",
				Help: "1 while a background crawl is in flight.",
			},
		)

		trendingRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trending_requests_total",
				Help: "Total number of trending payloads served, labeled by origin.",
			},
			[]string{"origin"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
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
	Init()
	return promhttp.Handler()
}

// ObserveUpstream records one upstream fetch.
func ObserveUpstream(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	upstreamRequestsTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		upstreamBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveReviewPage records a fetched review page holding n reviews.
func ObserveReviewPage(n int) {
	Init()
	reviewPagesTotal.Inc()
	if n > 0 {
		reviewsCollectedTotal.Add(float64(n))
	}
}

// ObserveSentimentQuery counts an answered sentiment query.
func ObserveSentimentQuery(source string) {
	Init()
	sentimentQueriesTotal.WithLabelValues(source).Inc()
}

// ObserveTitle counts a title processed by the background crawler.
func ObserveTitle(outcome string) {
	Init()
	crawlerTitlesTotal.WithLabelValues(outcome).Inc()
}

// SetCrawlerRunning flips the running gauge.
func SetCrawlerRunning(running bool) {
	Init()
	if running {
		crawlerRunning.Set(1)
		return
	}
	crawlerRunning.Set(0)
}

// ObserveTrending counts a served trending payload.
func ObserveTrending(origin string) {
	Init()
	trendingRequestsTotal.WithLabelValues(origin).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
