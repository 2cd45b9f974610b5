package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"fetch-proxy-go/internal/metrics"
	"fetch-proxy-go/internal/model"
	"fetch-proxy-go/internal/service"
)

// ProxyHandler serves the forwarding endpoint.
type ProxyHandler struct {
	forwarder *service.Forwarder
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewProxyHandler creates a ProxyHandler. The metrics parameter is optional.
func NewProxyHandler(fw *service.Forwarder, logger *slog.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		forwarder: fw,
		logger:    logger.With("component", "proxy_handler"),
		metrics:   m,
	}
}

// Handle fetches the target named by the url query parameter and relays the
// result. Every outcome, including failures, is written as an envelope.
func (h *ProxyHandler) Handle(c echo.Context) error {
	fr := &model.ForwardRequest{TargetURL: c.QueryParam("url")}

	env, err := h.forwarder.Forward(c.Request().Context(), fr)
	if err != nil {
		env = h.mapError(c, fr, err)
	}
	return h.write(c, env)
}

// Preflight answers CORS preflight requests for the forwarding endpoint.
func (h *ProxyHandler) Preflight(c echo.Context) error {
	copyHeader(c.Response().Header(), service.CORSHeader())
	return c.NoContent(http.StatusNoContent)
}

func (h *ProxyHandler) mapError(c echo.Context, fr *model.ForwardRequest, err error) *model.ResponseEnvelope {
	attrs := []any{
		"err", err,
		"target", redactTarget(fr.TargetURL),
		"path", c.Request().URL.Path,
	}

	var fe *service.ForwardError
	switch {
	case errors.Is(err, service.ErrMissingParameter), errors.Is(err, service.ErrInvalidURL):
		h.logger.Warn("rejected request", attrs...)
	case errors.As(err, &fe) && fe.Kind == service.KindClientClosed:
		h.logger.Info("client went away", attrs...)
	default:
		h.logger.Error("forward failed", attrs...)
	}

	return service.ErrorEnvelope(err)
}

func (h *ProxyHandler) write(c echo.Context, env *model.ResponseEnvelope) error {
	copyHeader(c.Response().Header(), env.Header)
	if h.metrics != nil {
		h.metrics.Envelopes.WithLabelValues(strconv.Itoa(env.StatusCode)).Inc()
	}
	return c.Blob(env.StatusCode, env.Header.Get(echo.HeaderContentType), env.Body)
}

func copyHeader(dst, src http.Header) {
	for key, vals := range src {
		dst[key] = append([]string(nil), vals...)
	}
}

// redactTarget strips credentials and the query string from a target URL
// before it is logged.
func redactTarget(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if len(raw) > 64 {
			return raw[:64] + "..."
		}
		return raw
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "[REDACTED]"
	}
	u.Fragment = ""
	return u.String()
}
