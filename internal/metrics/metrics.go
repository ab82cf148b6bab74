// Package metrics defines the Prometheus collectors exported by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Prediction metrics
	PredictionsTotal          *prometheus.CounterVec
	PredictionDurationSeconds *prometheus.HistogramVec
	PredictionMatches         *prometheus.HistogramVec

	// Shortlist metrics
	ShortlistOpsTotal       *prometheus.CounterVec
	ShortlistOpDuration     *prometheus.HistogramVec
	ShortlistLockWaitSecond prometheus.Histogram

	// Catalog metrics
	CatalogColleges      prometheus.Gauge
	CatalogImportsTotal  *prometheus.CounterVec
	ShortlistEntriesSize prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPDurationSeconds *prometheus.HistogramVec
	HTTPErrorsTotal     *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterClients prometheus.Gauge

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		PredictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "college_predictor_predictions_total",
				Help: "Total number of prediction requests by mode and status",
			},
			[]string{"mode", "status"}, // mode: percentile, range; status: success, invalid, error
		),

		PredictionDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "college_predictor_prediction_duration_seconds",
				Help:    "Prediction latency including catalog load, by mode",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"mode"},
		),

		PredictionMatches: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "college_predictor_prediction_matches",
				Help:    "Number of qualifying colleges per prediction, by mode",
				Buckets: []float64{0, 1, 5, 15, 50, 100, 250, 500, 1000},
			},
			[]string{"mode"},
		),

		ShortlistOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "college_predictor_shortlist_operations_total",
				Help: "Total number of shortlist operations by operation and outcome",
			},
			[]string{"operation", "outcome"}, // outcome: success, duplicate, not_found, invalid, error
		),

		ShortlistOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "college_predictor_shortlist_operation_duration_seconds",
				Help:    "Shortlist operation latency by operation",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			},
			[]string{"operation"},
		),

		ShortlistLockWaitSecond: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "college_predictor_shortlist_lock_wait_seconds",
				Help:    "Time a mutation waited for the per-user shortlist lock",
				Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),

		CatalogColleges: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "college_predictor_catalog_colleges",
				Help: "Number of colleges currently stored in the catalog",
			},
		),

		CatalogImportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "college_predictor_catalog_imports_total",
				Help: "Catalog import runs by outcome",
			},
			[]string{"outcome"}, // outcome: success, invalid, error
		),

		ShortlistEntriesSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "college_predictor_shortlist_entries",
				Help: "Total number of shortlist entries across all users",
			},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "college_predictor_http_requests_total",
				Help: "HTTP requests by route template, method and status class",
			},
			[]string{"route", "method", "status"},
		),

		HTTPDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "college_predictor_http_request_duration_seconds",
				Help:    "HTTP request latency by route template",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "college_predictor_http_errors_total",
				Help: "Error responses by error type and module",
			},
			[]string{"error_type", "module"},
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "college_predictor_rate_limiter_dropped_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),

		RateLimiterClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "college_predictor_rate_limiter_active_clients",
				Help: "Clients currently tracked by the API rate limiter",
			},
		),

		SingleflightDedupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "college_predictor_singleflight_dedup_total",
				Help: "Calls that shared an in-flight result instead of running again",
			},
			[]string{"operation"},
		),
	}
}

// RecordPrediction records the outcome of a prediction.
func (m *Metrics) RecordPrediction(mode, status string, duration float64, matches int) {
	m.PredictionsTotal.WithLabelValues(mode, status).Inc()
	m.PredictionDurationSeconds.WithLabelValues(mode).Observe(duration)
	if status == "success" {
		m.PredictionMatches.WithLabelValues(mode).Observe(float64(matches))
	}
}

// RecordShortlistOp records a shortlist operation outcome and latency.
func (m *Metrics) RecordShortlistOp(operation, outcome string, duration float64) {
	m.ShortlistOpsTotal.WithLabelValues(operation, outcome).Inc()
	m.ShortlistOpDuration.WithLabelValues(operation).Observe(duration)
}

// RecordShortlistLockWait records how long a mutation waited for its user's lock.
func (m *Metrics) RecordShortlistLockWait(duration float64) {
	m.ShortlistLockWaitSecond.Observe(duration)
}

// SetCatalogSize sets the catalog size gauge.
func (m *Metrics) SetCatalogSize(count int) {
	m.CatalogColleges.Set(float64(count))
}

// SetShortlistEntries sets the shortlist entry gauge.
func (m *Metrics) SetShortlistEntries(count int) {
	m.ShortlistEntriesSize.Set(float64(count))
}

// RecordCatalogImport records a catalog import run.
func (m *Metrics) RecordCatalogImport(outcome string) {
	m.CatalogImportsTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method string, status int, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, statusClass(status)).Inc()
	m.HTTPDurationSeconds.WithLabelValues(route).Observe(duration)
}

// RecordHTTPError records an error response.
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordRateLimiterDrop records a rejected request.
func (m *Metrics) RecordRateLimiterDrop(limiter string) {
	m.RateLimiterDropped.WithLabelValues(limiter).Inc()
}

// SetRateLimiterClients sets the number of tracked clients.
func (m *Metrics) SetRateLimiterClients(count int) {
	m.RateLimiterClients.Set(float64(count))
}

// RecordSingleflightDedup records a deduplicated call.
func (m *Metrics) RecordSingleflightDedup(operation string) {
	m.SingleflightDedupTotal.WithLabelValues(operation).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
