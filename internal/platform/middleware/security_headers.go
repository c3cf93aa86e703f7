package middleware

import (
	"github.com/labstack/echo/v4"
)

const (
	// APIPolicy denies all resource loading; responses are JSON or images.
	APIPolicy = "default-src 'none'; frame-ancestors 'none'"

	// PrintPagePolicy lets the self-printing label page show its embedded
	// image and run its inline print script, and nothing else.
	PrintPagePolicy = "default-src 'none'; img-src data:; style-src 'unsafe-inline'; script-src 'unsafe-inline'; frame-ancestors 'none'"
)

// SecurityHeaders sets security response headers on every request. Handlers
// serving the print page replace Content-Security-Policy with
// PrintPagePolicy.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", APIPolicy)
			h.Set("Referrer-Policy", "no-referrer")
			// Patient details must not be cached by browsers or proxies.
			h.Set("Cache-Control", "no-store")
			return next(c)
		}
	}
}
