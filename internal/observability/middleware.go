package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// UnmatchedRoute labels admin requests that hit no registered route.
const UnmatchedRoute = "unmatched"

// Probe and scrape routes log successful hits at debug.
var quietRoutes = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// AdminRoute returns the registered route pattern for c, or UnmatchedRoute.
func AdminRoute(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return UnmatchedRoute
}

// RequestLogger writes one line per admin request, tagged with service.
func RequestLogger(logger zerolog.Logger, service string) gin.HandlerFunc {
	logger = logger.With().Str("service", service).Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := AdminRoute(c)

		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			event = logger.Warn().Bool("denied", true)
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		case quietRoutes[route]:
			event = logger.Debug()
		default:
			event = logger.Info()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}

		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msgf("observability.RequestLogger %s %s", c.Request.Method, route)
	}
}

// RequestMetricsMiddleware counts admin requests per service and route.
// Unknown paths share the UnmatchedRoute label.
func RequestMetricsMiddleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(service, c.Request.Method, AdminRoute(c), c.Writer.Status(), time.Since(start))
	}
}
