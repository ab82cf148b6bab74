package app

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/college-predictor-go/internal/ctxutil"
	domerrors "github.com/garyellow/college-predictor-go/internal/errors"
	"github.com/garyellow/college-predictor-go/internal/logger"
	"github.com/garyellow/college-predictor-go/internal/metrics"
	"github.com/garyellow/college-predictor-go/internal/modules/respond"
	"github.com/garyellow/college-predictor-go/internal/ratelimit"
)

const (
	requestIDHeader = "X-Request-Id"

	// rateLimitMessage is returned with every 429.
	rateLimitMessage = "Too many requests from this IP. Please try again later."

	unmatchedRoute = "unmatched"
)

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// requestContextMiddleware assigns a request ID (client supplied or generated),
// echoes it back and logs the request with status-based log levels:
// 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug.
func requestContextMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-Id")
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		status := c.Writer.Status()
		entry := log.WithRequestID(requestID).
			WithField("http_method", method).
			WithField("http_path", path).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP())

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status == http.StatusNotFound:
			entry.Debug("HTTP request not found")
		case status >= 400:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}

// httpMetricsMiddleware records request counts and latency per route template.
func httpMetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m.RecordHTTPRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start).Seconds())
	}
}

// corsMiddleware admits a single browser origin. An empty origin disables CORS
// headers entirely. Preflight requests are answered here with 204.
func corsMiddleware(origin, userIDHeader string) gin.HandlerFunc {
	allowHeaders := strings.Join([]string{"Content-Type", "Authorization", requestIDHeader, userIDHeader}, ", ")
	return func(c *gin.Context) {
		if origin == "" {
			c.Next()
			return
		}

		requestOrigin := c.GetHeader("Origin")
		if requestOrigin == "" || (origin != "*" && requestOrigin != origin) {
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		if origin != "*" {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Expose-Headers", requestIDHeader+", RateLimit-Limit, RateLimit-Remaining")
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			c.Header("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware limits API requests per client IP and reports the quota
// in RateLimit-* headers.
func rateLimitMiddleware(limiter *ratelimit.KeyedLimiter, m *metrics.Metrics) gin.HandlerFunc {
	wrapper := domerrors.NewWrapper("ratelimit", "allow")
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := c.ClientIP()
		allowed := limiter.Allow(key)
		if limit := limiter.Limit(); limit > 0 {
			c.Header("RateLimit-Limit", strconv.Itoa(limit))
			c.Header("RateLimit-Remaining", strconv.Itoa(max(limiter.Remaining(key), 0)))
		}
		if !allowed {
			respond.Error(c, "ratelimit", m, wrapper.Wrap(domerrors.ErrRateLimitExceeded, rateLimitMessage))
			return
		}
		c.Next()
	}
}

// timeoutMiddleware bounds the request context handed to handlers.
func timeoutMiddleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// identityMiddleware reads the user ID set by the upstream authentication
// gateway from header. Requests without one are rejected with 401.
func identityMiddleware(header string, m *metrics.Metrics) gin.HandlerFunc {
	wrapper := domerrors.NewWrapper("identity", "authenticate")
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(header))
		if userID == "" {
			respond.Error(c, "identity", m, wrapper.Wrap(domerrors.ErrUnauthenticated, "Authentication required"))
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}
