package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/chatsync/internal/metrics"
)

// maxErrLogLen is the maximum length for logged handler errors before truncation.
const maxErrLogLen = 200

// slowRequestThreshold is the duration above which requests are logged at WARN level.
const slowRequestThreshold = 100 * time.Millisecond

// LoggingMiddleware logs every request with timing and records it in m when
// m is non-nil. Slow requests (>100ms) are logged at WARN level, server
// errors at ERROR. The websocket route is exempt from the slow threshold
// since it lives as long as the connection.
func LoggingMiddleware(logger *slog.Logger, m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", duration.Milliseconds(),
		}
		if errs := c.Errors.String(); errs != "" {
			attrs = append(attrs, "error", truncate(errs, maxErrLogLen))
		}

		switch {
		case status >= 500:
			logger.Error("request failed", attrs...)
		case route != socketPath && duration > slowRequestThreshold:
			logger.Warn("slow request", attrs...)
		default:
			logger.Debug("request completed", attrs...)
		}

		if m != nil {
			m.RecordRequest(c.Request.Method+" "+route, duration, status >= 500)
		}
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
