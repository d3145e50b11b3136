package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(Middleware(func(c echo.Context) bool { return c.Path() == "/metrics" }))
	e.GET("/api/exams/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/api/boom", func(c echo.Context) error { return errors.New("boom") })

	for _, path := range []string{"/api/exams/1", "/api/exams/2", "/api/boom"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/exams/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/boom", "500")))
}

func TestObserveCompletion(t *testing.T) {
	before := testutil.ToFloat64(aiCompletions.WithLabelValues("default", "error"))
	ObserveCompletion("", time.Second, errors.New("down"))
	assert.Equal(t, before+1, testutil.ToFloat64(aiCompletions.WithLabelValues("default", "error")))
}

func TestHandler(t *testing.T) {
	ObserveStorage("upload", nil)
	AddPurgedTokens(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `innergrow_storage_operations_total{op="upload",outcome="ok"} 1`))
	assert.True(t, strings.Contains(body, "innergrow_auth_tokens_purged_total 3"))
}
