// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/college-predictor-go/internal/buildinfo"
	"github.com/garyellow/college-predictor-go/internal/catalog"
	"github.com/garyellow/college-predictor-go/internal/config"
	"github.com/garyellow/college-predictor-go/internal/logger"
	"github.com/garyellow/college-predictor-go/internal/matching"
	"github.com/garyellow/college-predictor-go/internal/metrics"
	"github.com/garyellow/college-predictor-go/internal/modules/college"
	"github.com/garyellow/college-predictor-go/internal/modules/collegelist"
	"github.com/garyellow/college-predictor-go/internal/modules/predict"
	"github.com/garyellow/college-predictor-go/internal/objstore"
	"github.com/garyellow/college-predictor-go/internal/ratelimit"
	"github.com/garyellow/college-predictor-go/internal/sentry"
	"github.com/garyellow/college-predictor-go/internal/shortlist"
	"github.com/garyellow/college-predictor-go/internal/storage"
)

// burstRefillRate is the per-client token refill of the burst guard, in
// tokens per second. The window quota bounds the long run.
const burstRefillRate = 1.0

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg       *config.Config
	logger    *logger.Logger
	db        *storage.DB
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
	engine    *matching.Engine
	shortlist *shortlist.Service
	importer  *catalog.Importer
	limiter   *ratelimit.KeyedLimiter
	readiness *readinessState
	server    *http.Server
	wg        sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})

	log = log.WithField("service", cfg.ServiceName)
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog.*Context() calls pick up request_id and user_id through ContextHandler.
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Version,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	if sentry.IsEnabled() {
		log.WithField("environment", cfg.SentryEnvironment).Info("Error tracking enabled")
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	mappings := matching.DefaultMappings()
	if cfg.BranchMappingsFile != "" {
		if mappings, err = matching.LoadMappingsFile(cfg.BranchMappingsFile); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("branch mappings: %w", err)
		}
		log.WithField("path", cfg.BranchMappingsFile).
			WithField("entries", len(mappings)).
			Info("Branch mappings loaded")
	}

	normalizer := matching.NewNormalizer(mappings)
	if table := normalizer.Table(); len(table) > 0 {
		log.WithField("entries", len(table)).
			WithField("first_key", table[0].Key).
			WithField("last_key", table[len(table)-1].Key).
			Debug("Branch normalizer ready")
	}

	var downloader catalog.Downloader
	if cfg.Catalog.Enabled() {
		client, err := objstore.New(ctx, objstore.Config{
			Endpoint:    cfg.Catalog.Endpoint,
			AccessKeyID: cfg.Catalog.AccessKeyID,
			SecretKey:   cfg.Catalog.SecretKey,
			Bucket:      cfg.Catalog.Bucket,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("catalog storage: %w", err)
		}
		downloader = client
		log.WithField("bucket", cfg.Catalog.Bucket).Info("Catalog object storage enabled")
	}

	importer, err := catalog.NewImporter(db, downloader, m)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog importer: %w", err)
	}

	app := &Application{
		cfg:       cfg,
		logger:    log,
		db:        db,
		metrics:   m,
		registry:  registry,
		engine:    matching.NewEngine(db, normalizer, m),
		shortlist: shortlist.NewService(db, db, m),
		importer:  importer,
		limiter: ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          "api",
			Burst:         cfg.RateLimitBurst,
			RefillRate:    burstRefillRate,
			WindowLimit:   cfg.RateLimitRequests,
			Window:        cfg.RateLimitWindow,
			CleanupPeriod: config.RateLimiterCleanupInterval,
			Metrics:       m,
		}),
		readiness: newReadinessState(config.CatalogDownload + config.CatalogImport),
	}
	if !cfg.Catalog.Enabled() {
		app.readiness.markReady()
	}

	gin.SetMode(gin.ReleaseMode)
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.routes(),
		ReadHeaderTimeout: config.HTTPRead,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

// routes builds the gin engine. Global middleware also runs for unmatched
// routes, which is what lets CORS answer preflight requests.
func (a *Application) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(sentry.Middleware())
	router.Use(securityHeadersMiddleware())
	router.Use(requestContextMiddleware(a.logger))
	router.Use(httpMetricsMiddleware(a.metrics))
	router.Use(corsMiddleware(a.cfg.CORSAllowedOrigin, a.cfg.UserIDHeader))

	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsPassword != "", a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	api := router.Group("/api",
		rateLimitMiddleware(a.limiter, a.metrics),
		timeoutMiddleware(config.RequestProcessing))

	colleges := api.Group("/colleges")
	predict.NewHandler(a.engine, a.metrics, a.cfg.PredictDefaultLimit, a.cfg.PredictMaxLimit).Register(colleges)
	college.NewHandler(a.db, a.metrics, a.cfg.PredictDefaultLimit, a.cfg.PredictMaxLimit).Register(colleges)

	list := api.Group("/college-list", identityMiddleware(a.cfg.UserIDHeader, a.metrics))
	collegelist.NewHandler(a.shortlist, a.metrics).Register(list)

	return router
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	if status := a.readiness.status(); !status.Ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":          "not ready",
			"reason":          status.Reason,
			"elapsed_seconds": status.ElapsedSeconds,
			"timeout_seconds": status.TimeoutSeconds,
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if err := a.db.Ready(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	colleges, err := a.db.CountColleges(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: catalog unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "catalog unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"catalog": gin.H{
			"colleges": colleges,
		},
		"features": gin.H{
			"catalog_storage": a.cfg.Catalog.Enabled(),
			"error_tracking":  sentry.IsEnabled(),
		},
	})
}

// Run starts the HTTP server and background jobs, then blocks until
// SIGINT/SIGTERM.
//
// Shutdown order:
//  1. Cancel context so background jobs stop
//  2. Wait for background jobs (an in-flight catalog import finishes its transaction)
//  3. Stop the HTTP server and close resources
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.bootstrapCatalog(ctx)
	})
	a.wg.Go(func() {
		a.updateGaugeMetrics(ctx)
	})
}

// startHTTPServer starts the HTTP server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM is received.
func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown stops accepting requests, drains in-flight ones and closes resources.
// It must run after background jobs have returned.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Closing resources...")

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	if a.limiter != nil {
		a.limiter.Stop()
	}

	if !sentry.Flush(2 * time.Second) {
		a.logger.Warn("Error tracking flush timed out")
	}

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}

// bootstrapCatalog imports the configured catalog object when the local
// catalog is empty. Existing data is never replaced on startup. The
// readiness gate opens when it returns, whatever the outcome.
func (a *Application) bootstrapCatalog(ctx context.Context) {
	defer a.readiness.markReady()
	if !a.cfg.Catalog.Enabled() {
		return
	}

	count, err := a.db.CountColleges(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Catalog bootstrap skipped: count failed")
		return
	}
	if count > 0 {
		a.logger.WithField("colleges", count).Debug("Catalog bootstrap skipped: catalog present")
		return
	}

	importCtx, cancel := context.WithTimeout(ctx, config.CatalogDownload+config.CatalogImport)
	defer cancel()

	source := catalog.ObjectPrefix + a.cfg.Catalog.ObjectKey
	if _, err := a.importer.Import(importCtx, source); err != nil {
		a.logger.WithError(err).WithField("source", source).Error("Catalog bootstrap failed")
		return
	}
	a.recordGaugeMetrics(ctx)
}

// updateGaugeMetrics periodically records catalog and shortlist sizes to Prometheus.
func (a *Application) updateGaugeMetrics(ctx context.Context) {
	a.logger.Debug("Gauge metrics job started")
	defer a.logger.Debug("Gauge metrics job stopped")

	a.recordGaugeMetrics(ctx)

	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.recordGaugeMetrics(ctx)
		}
	}
}

func (a *Application) recordGaugeMetrics(ctx context.Context) {
	if a.metrics == nil {
		return
	}

	if count, err := a.db.CountColleges(ctx); err == nil {
		a.metrics.SetCatalogSize(count)
	} else if ctx.Err() == nil {
		a.logger.WithError(err).Warn("Failed to count colleges for metrics")
	}
	if count, err := a.db.CountShortlistEntries(ctx); err == nil {
		a.metrics.SetShortlistEntries(count)
	} else if ctx.Err() == nil {
		a.logger.WithError(err).Warn("Failed to count shortlist entries for metrics")
	}
	if a.limiter != nil {
		a.metrics.SetRateLimiterClients(a.limiter.ActiveCount())
	}
}
