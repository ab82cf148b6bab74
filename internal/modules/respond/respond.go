// Package respond writes API error responses shared by the HTTP modules.
package respond

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	domerrors "github.com/garyellow/college-predictor-go/internal/errors"
	"github.com/garyellow/college-predictor-go/internal/metrics"
	"github.com/garyellow/college-predictor-go/internal/sentry"
)

// internalMessage replaces the detail of unexpected failures in responses.
const internalMessage = "Internal server error"

// ErrorBody is the JSON body of every non-2xx API response.
type ErrorBody struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Error classifies err, writes the matching status and body, and aborts the chain.
// Unexpected failures are logged, counted and reported to error tracking; their
// detail never reaches the client.
func Error(c *gin.Context, module string, m *metrics.Metrics, err error) {
	status := domerrors.HTTPStatus(err)
	body := ErrorBody{Message: domerrors.GetUserMessage(err)}

	var vErr *domerrors.ValidationError
	if errors.As(err, &vErr) {
		body.Field = vErr.Field
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"module", module,
			"route", c.FullPath(),
			"error", err)
		sentry.CaptureRequestError(c, module, err)
		body = ErrorBody{Message: internalMessage}
	}

	if m != nil {
		m.RecordHTTPError(errorType(status), module)
	}
	c.AbortWithStatusJSON(status, body)
}

// BadRequest reports a malformed request body as a validation failure on field.
func BadRequest(c *gin.Context, module string, m *metrics.Metrics, field string, err error) {
	Error(c, module, m, domerrors.NewValidationError(field, bindMessage(err)))
}

func bindMessage(err error) string {
	if errors.Is(err, io.EOF) {
		return "request body is required"
	}
	return "malformed request body: " + err.Error()
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "internal"
	}
}
