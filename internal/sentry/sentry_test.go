package sentry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/college-predictor-go/internal/ctxutil"
)

func TestInitialize_EmptyToken(t *testing.T) {
	t.Parallel()

	if err := Initialize(Config{Token: ""}); err != nil {
		t.Errorf("Expected nil error for empty token, got %v", err)
	}
}

func TestInitialize_MissingHost(t *testing.T) {
	t.Parallel()

	if err := Initialize(Config{Token: "test-token", Host: ""}); err == nil {
		t.Error("Expected error when host is missing")
	}
}

func TestInitialize_ValidConfig(t *testing.T) {
	// Sentry uses global state; no t.Parallel()

	err := Initialize(Config{
		Token:       "test-token",
		Host:        "errors.betterstack.com",
		Environment: "test",
		SampleRate:  0, // defaults to 1.0
	})
	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if !IsEnabled() {
		t.Error("Expected IsEnabled() to return true after initialization")
	}

	Flush(time.Second)
}

// captureEvents binds a client that records events instead of sending them.
func captureEvents(t *testing.T) func() []*sentry.Event {
	t.Helper()

	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn: "https://public@example.com/1",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)

	hub := sentry.CurrentHub()
	previous := hub.Client()
	hub.BindClient(client)
	t.Cleanup(func() { hub.BindClient(previous) })

	return func() []*sentry.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]*sentry.Event(nil), events...)
	}
}

func TestCaptureRequestError(t *testing.T) {
	// Sentry uses global state; no t.Parallel()
	events := captureEvents(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/api/college-list", func(c *gin.Context) {
		ctx := ctxutil.WithUserID(c.Request.Context(), "user-42")
		ctx = ctxutil.WithRequestID(ctx, "req-1")
		c.Request = c.Request.WithContext(ctx)

		CaptureRequestError(c, "collegelist", errors.New("database is locked"))
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/college-list", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	got := events()
	require.Len(t, got, 1)
	assert.Equal(t, "collegelist", got[0].Tags["module"])
	assert.Equal(t, "/api/college-list", got[0].Tags["route"])
	assert.Equal(t, "req-1", got[0].Tags["request_id"])
	assert.Equal(t, "user-42", got[0].User.ID)
}

func TestFlush(t *testing.T) {
	t.Parallel()

	if !Flush(100 * time.Millisecond) {
		t.Error("Expected Flush to return true when no events pending")
	}
}
