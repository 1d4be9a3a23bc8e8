package metrics

import "github.com/prometheus/client_golang/prometheus"

// Catalog API client metrics.
var (
	CatalogRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flora",
			Name:      "catalog_requests_total",
			Help:      "Total number of catalog search requests",
		},
		[]string{"status"}, // "success" / "error"
	)

	CatalogRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flora",
			Name:      "catalog_request_duration_seconds",
			Help:      "Catalog search request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"}, // "text" / "image"
	)

	CatalogErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flora",
			Name:      "catalog_errors_total",
			Help:      "Total catalog search errors",
		},
		[]string{"error_type"},
	)

	CatalogResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flora",
			Name:      "catalog_results_total",
			Help:      "Total result items returned by the catalog",
		},
	)
)

// Query image preview, upload and session metrics.
var (
	PreviewsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flora",
			Name:      "previews_live",
			Help:      "Query image previews currently held",
		},
	)

	PreviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flora",
			Name:      "previews_total",
			Help:      "Query image preview lifecycle events",
		},
		[]string{"event"}, // "acquired" / "released"
	)

	UploadRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flora",
			Name:      "upload_rejections_total",
			Help:      "Uploads rejected before reaching the catalog",
		},
		[]string{"reason"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flora",
			Name:      "sessions_active",
			Help:      "Browser sessions currently held",
		},
	)
)

var appMetricsRegistered bool

// RegisterAppMetrics registers catalog, preview, upload and session metrics. Must be called once from main.
func RegisterAppMetrics() {
	if appMetricsRegistered {
		return
	}
	prometheus.MustRegister(CatalogRequestsTotal)
	prometheus.MustRegister(CatalogRequestDuration)
	prometheus.MustRegister(CatalogErrorsTotal)
	prometheus.MustRegister(CatalogResultsTotal)
	prometheus.MustRegister(PreviewsLive)
	prometheus.MustRegister(PreviewsTotal)
	prometheus.MustRegister(UploadRejectionsTotal)
	prometheus.MustRegister(SessionsActive)
	appMetricsRegistered = true
}
