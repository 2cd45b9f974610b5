package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"fetch-proxy-go/internal/config"
	"fetch-proxy-go/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	policy  service.RetryPolicy
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, fw *service.Forwarder, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, policy: fw.Policy(), version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports the version and the retry policy in effect. The egress
// proxy URL may carry credentials, so only its presence is reported.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":          "ok",
		"version":         string(h.version),
		"max_attempts":    h.policy.MaxAttempts,
		"attempt_timeout": h.policy.AttemptTimeout.String(),
		"backoff_base":    h.policy.BackoffBase.String(),
		"deadline":        h.policy.Deadline.String(),
		"egress_proxy":    h.cfg.Upstream.EgressProxy != "",
	})
}
