package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawler.
type Metrics struct {
	Registry              *prometheus.Registry
	RequestsTotal         *prometheus.CounterVec
	RequestDuration       prometheus.Histogram
	ItemsExtractedTotal   prometheus.Counter
	ItemsSkippedTotal     *prometheus.CounterVec
	ImagesDownloadedTotal prometheus.Counter
	CategoriesTotal       *prometheus.CounterVec
	CategoryMismatchTotal prometheus.Counter
	RetriesTotal          prometheus.Counter
	ErrorsTotal           *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_requests_total",
			Help: "Total HTTP requests issued by the crawler, by page kind.",
		},
		[]string{"kind"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_request_duration_seconds",
			Help:    "HTTP request latency for crawler requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsExtracted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_items_extracted_total",
			Help: "Total number of detail pages turned into records.",
		},
	)
	itemsSkipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_items_skipped_total",
			Help: "Total number of items skipped, by reason.",
		},
		[]string{"reason"},
	)
	imagesDownloaded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_images_downloaded_total",
			Help: "Total number of cover images written to disk.",
		},
	)
	categories := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_categories_total",
			Help: "Total number of categories processed, by outcome.",
		},
		[]string{"outcome"},
	)
	categoryMismatch := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_category_mismatch_total",
			Help: "Items whose breadcrumb category disagrees with the crawled category.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_retries_total",
			Help: "Total number of retry attempts issued.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_errors_total",
			Help: "Total number of crawler errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, itemsExtracted, itemsSkipped,
		imagesDownloaded, categories, categoryMismatch, retries, errorsTotal)

	return &Metrics{
		Registry:              registry,
		RequestsTotal:         requests,
		RequestDuration:       requestDuration,
		ItemsExtractedTotal:   itemsExtracted,
		ItemsSkippedTotal:     itemsSkipped,
		ImagesDownloadedTotal: imagesDownloaded,
		CategoriesTotal:       categories,
		CategoryMismatchTotal: categoryMismatch,
		RetriesTotal:          retries,
		ErrorsTotal:           errorsTotal,
	}
}

// IncRequest increments the requests counter for a page kind.
func (m *Metrics) IncRequest(kind string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncItems increments the extracted items counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsExtractedTotal.Inc()
}

// IncSkipped increments the skipped items counter for a reason label.
func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.ItemsSkippedTotal.WithLabelValues(reason).Inc()
}

// IncImages increments the downloaded images counter.
func (m *Metrics) IncImages() {
	if m == nil {
		return
	}
	m.ImagesDownloadedTotal.Inc()
}

// IncCategory increments the categories counter for an outcome label.
func (m *Metrics) IncCategory(outcome string) {
	if m == nil {
		return
	}
	m.CategoriesTotal.WithLabelValues(outcome).Inc()
}

// IncMismatch increments the breadcrumb/crawl category mismatch counter.
func (m *Metrics) IncMismatch() {
	if m == nil {
		return
	}
	m.CategoryMismatchTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
