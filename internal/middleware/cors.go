package middleware

import (
	"github.com/labstack/echo/v4"

	"fetch-proxy-go/internal/service"
)

// CORS returns an Echo middleware that sets the permissive cross-origin
// headers on every response, including router errors and rate limiting.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for key, vals := range service.CORSHeader() {
				h[key] = vals
			}
			return next(c)
		}
	}
}
