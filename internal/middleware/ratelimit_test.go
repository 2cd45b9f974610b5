package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fetch-proxy-go/internal/config"
	"fetch-proxy-go/internal/middleware"
)

func newLimitedEcho() *echo.Echo {
	e := echo.New()
	e.Use(middleware.RateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1}))
	ok := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	e.GET("/api/proxy", ok)
	e.OPTIONS("/api/proxy", ok)
	e.GET("/healthz", ok)
	return e
}

func do(e *echo.Echo, method, path string) int {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	return rec.Code
}

func TestRateLimiter_Enabled(t *testing.T) {
	e := newLimitedEcho()

	// 1 request per second with a burst of 1; later requests are rejected.
	require.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/proxy"))

	got429 := false
	for i := 0; i < 10; i++ {
		if do(e, http.MethodGet, "/api/proxy") == http.StatusTooManyRequests {
			got429 = true
			break
		}
	}
	assert.True(t, got429, "expected at least one 429 response after burst")
}

func TestRateLimiter_SkipsHealthAndPreflight(t *testing.T) {
	e := newLimitedEcho()

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz"))
		require.Equal(t, http.StatusOK, do(e, http.MethodOptions, "/api/proxy"))
	}
}
