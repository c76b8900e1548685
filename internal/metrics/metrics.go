// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels shared by the sitemap and extraction counters.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

var (
	sitemapsTotal             *prometheus.CounterVec
	urlsDiscoveredTotal       prometheus.Counter
	extractionsTotal          *prometheus.CounterVec
	extractionsInFlight       prometheus.Gauge
	extractionDurationSeconds *prometheus.HistogramVec
	datasetRowsTotal          prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		sitemapsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_sitemaps_total",
				Help: "Total number of sitemap documents visited, labeled by result.",
			},
			[]string{"result"},
		)

		urlsDiscoveredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_urls_discovered_total",
				Help: "Total number of URL records appended to the URL store.",
			},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_extractions_total",
				Help: "Total number of page extractions, labeled by site and result.",
			},
			[]string{"site", "result"},
		)

		extractionsInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_extractions_in_flight",
				Help: "Number of browser sessions currently extracting a page.",
			},
		)

		extractionDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_extraction_duration_seconds",
				Help:    "Histogram of per-page extraction latencies, labeled by result.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"result"},
		)

		datasetRowsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_dataset_rows_total",
				Help: "Total number of rows written to aggregated datasets.",
			},
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
	return promhttp.Handler()
}

// ObserveSitemap counts one visited sitemap node.
func ObserveSitemap(result string) {
	Init()
	sitemapsTotal.WithLabelValues(result).Inc()
}

// ObserveDiscovered adds n appended URL records.
func ObserveDiscovered(n int) {
	Init()
	if n > 0 {
		urlsDiscoveredTotal.Add(float64(n))
	}
}

// ExtractionStarted marks a browser session as in flight.
func ExtractionStarted() {
	Init()
	extractionsInFlight.Inc()
}

// ExtractionFinished records the outcome of one page extraction.
func ExtractionFinished(pageURL string, result string, duration time.Duration) {
	Init()
	extractionsInFlight.Dec()
	extractionsTotal.WithLabelValues(SanitizeSite(pageURL), result).Inc()
	extractionDurationSeconds.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveDatasetRows adds n rows written to a dataset artifact.
func ObserveDatasetRows(n int) {
	Init()
	if n > 0 {
		datasetRowsTotal.Add(float64(n))
	}
}
