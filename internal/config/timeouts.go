package config

import "time"

// HTTP server timeouts
const (
	// HTTPRead bounds reading a request; prediction and shortlist payloads are small JSON bodies.
	HTTPRead = 10 * time.Second

	// HTTPWrite bounds writing a response and must exceed RequestProcessing.
	HTTPWrite = 35 * time.Second

	// HTTPIdle is the keep-alive idle timeout.
	HTTPIdle = 120 * time.Second

	// RequestProcessing is the deadline applied to a single API request's catalog and shortlist work.
	RequestProcessing = 30 * time.Second
)

// Background task timeouts
const (
	// ReadinessCheckTimeout bounds the database ping performed by /readyz.
	ReadinessCheckTimeout = 3 * time.Second

	// MetricsUpdateInterval is how often catalog and shortlist gauges are refreshed.
	MetricsUpdateInterval = 5 * time.Minute

	// RateLimiterCleanupInterval is how often idle per-client limiters are evicted.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// Catalog import timeouts
const (
	// CatalogDownload bounds fetching a catalog dump from object storage.
	CatalogDownload = 2 * time.Minute

	// CatalogImport bounds validating and writing a whole catalog.
	CatalogImport = 5 * time.Minute
)

// Database timeouts
const (
	// SlowQueryThreshold marks single statements worth a warning log.
	SlowQueryThreshold = 100 * time.Millisecond

	// SlowBatchThreshold marks multi-statement transactions worth a warning log.
	SlowBatchThreshold = 500 * time.Millisecond
)
