package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "CP_PORT"
	EnvLogLevel        = "CP_LOG_LEVEL"
	EnvShutdownTimeout = "CP_SHUTDOWN_TIMEOUT"
	EnvServiceName     = "CP_SERVICE_NAME"

	// Data
	EnvDataDir            = "CP_DATA_DIR"
	EnvBranchMappingsFile = "CP_BRANCH_MAPPINGS_FILE"

	// HTTP API
	EnvUserIDHeader        = "CP_USER_ID_HEADER"
	EnvCORSAllowedOrigin   = "CP_CORS_ALLOWED_ORIGIN"
	EnvPredictDefaultLimit = "CP_PREDICT_DEFAULT_LIMIT"
	EnvPredictMaxLimit     = "CP_PREDICT_MAX_LIMIT"

	// Rate Limits
	EnvRateLimitRequests = "CP_RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "CP_RATE_LIMIT_WINDOW"
	EnvRateLimitBurst    = "CP_RATE_LIMIT_BURST"

	// Metrics
	EnvMetricsUsername = "CP_METRICS_USERNAME"
	EnvMetricsPassword = "CP_METRICS_PASSWORD"

	// Catalog object storage (S3 / R2)
	EnvCatalogEndpoint    = "CP_CATALOG_ENDPOINT"
	EnvCatalogAccessKeyID = "CP_CATALOG_ACCESS_KEY_ID"
	EnvCatalogSecretKey   = "CP_CATALOG_SECRET_ACCESS_KEY"
	EnvCatalogBucket      = "CP_CATALOG_BUCKET"
	EnvCatalogObjectKey   = "CP_CATALOG_OBJECT_KEY"

	// Sentry
	EnvSentryToken       = "CP_SENTRY_TOKEN"
	EnvSentryHost        = "CP_SENTRY_HOST"
	EnvSentryEnvironment = "CP_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "CP_SENTRY_SAMPLE_RATE"

	// Better Stack
	EnvBetterStackToken    = "CP_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "CP_BETTERSTACK_ENDPOINT"
)
