package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/enrollment-backend/internal/platform/ctxutil"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

// RequestLogger writes one access log line per request; the level follows the status class.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	httpLog := log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		ctx := c.Request.Context()
		if td := ctxutil.GetTraceData(ctx); td != nil {
			fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
		}
		// user_id is hashed by the logger's redaction.
		if rd := ctxutil.GetRequestData(ctx); rd != nil {
			fields = append(fields, "user_id", rd.UserID.String(), "role", rd.Role)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			httpLog.Error("HTTP request", fields...)
		case status >= 400:
			httpLog.Warn("HTTP request", fields...)
		default:
			httpLog.Info("HTTP request", fields...)
		}
	}
}
