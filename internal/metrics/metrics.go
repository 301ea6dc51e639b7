// Package metrics exposes Prometheus collectors for the board crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal          *prometheus.CounterVec
	articlesEmittedTotal       prometheus.Counter
	articlesRejectedTotal      *prometheus.CounterVec
	itemFailuresTotal          *prometheus.CounterVec
	locatorProbesTotal         *prometheus.CounterVec
	activeSessions             prometheus.Gauge
	crawlRunsTotal             *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times. Until it runs every
// Record/Observe helper is a no-op.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardcrawler_pages_fetched_total",
				Help: "Total number of forum pages fetched, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		articlesEmittedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "boardcrawler_articles_emitted_total",
				Help: "Total number of article records streamed to clients.",
			},
		)

		articlesRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardcrawler_articles_rejected_total",
				Help: "Total number of article records dropped by the filter, labeled by reason.",
			},
			[]string{"reason"},
		)

		itemFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardcrawler_item_failures_total",
				Help: "Total number of listing pages or articles skipped after a failure, labeled by stage.",
			},
			[]string{"stage"},
		)

		locatorProbesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardcrawler_locator_probes_total",
				Help: "Total number of page window probes, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		activeSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "boardcrawler_active_sessions",
				Help: "Number of open streaming sessions.",
			},
		)

		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boardcrawler_crawl_runs_total",
				Help: "Total number of crawl runs, labeled by status.",
			},
			[]string{"status"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPageFetch counts one page download.
func RecordPageFetch(outcome string) {
	if pagesFetchedTotal == nil {
		return
	}
	pagesFetchedTotal.WithLabelValues(outcome).Inc()
}

// RecordEmitted counts one streamed article record.
func RecordEmitted() {
	if articlesEmittedTotal == nil {
		return
	}
	articlesEmittedTotal.Inc()
}

// RecordRejected counts one filtered-out record.
func RecordRejected(reason string) {
	if articlesRejectedTotal == nil {
		return
	}
	articlesRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordItemFailure counts one skipped listing page or article.
func RecordItemFailure(stage string) {
	if itemFailuresTotal == nil {
		return
	}
	itemFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordLocatorProbe counts one window probe.
func RecordLocatorProbe(outcome string) {
	if locatorProbesTotal == nil {
		return
	}
	locatorProbesTotal.WithLabelValues(outcome).Inc()
}

// RecordCrawlRun counts one finished crawl run.
func RecordCrawlRun(status string) {
	if crawlRunsTotal == nil {
		return
	}
	crawlRunsTotal.WithLabelValues(status).Inc()
}

// IncActiveSessions increments the open sessions gauge.
func IncActiveSessions() {
	if activeSessions == nil {
		return
	}
	activeSessions.Inc()
}

// DecActiveSessions decrements the open sessions gauge.
func DecActiveSessions() {
	if activeSessions == nil {
		return
	}
	activeSessions.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
