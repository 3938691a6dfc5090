package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets the response headers for a read-only JSON API.
// Aggregates are derived from patient data, so responses are never stored
// by shared caches; with a positive maxAge a browser may keep them privately
// for as long as the server keeps its snapshot.
func SecurityHeaders(maxAge time.Duration) echo.MiddlewareFunc {
	cacheControl := "no-store"
	if secs := int(maxAge / time.Second); secs > 0 {
		cacheControl = "private, max-age=" + strconv.Itoa(secs)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", cacheControl)
			h.Set("Vary", "Accept, Authorization, X-Data-Schema")
			return next(c)
		}
	}
}
