package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"fetch-proxy-go/internal/service"
)

// ErrorHandler returns an echo.HTTPErrorHandler that renders router errors,
// rate limiting and recovered panics as JSON.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		body := map[string]string{
			"error": "internal server error",
			"type":  string(service.KindUnclassified),
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			body = map[string]string{"error": msg}
		} else {
			logger.Error("unhandled error",
				"err", err,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
			)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, body)
		}
		if werr != nil {
			logger.Error("write error response", "err", werr)
		}
	}
}
