package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iammrherb/authensi-smart-sub008/internal/shared/metrics"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the request log line.
const (
	CatalogVersionKey = "catalogVersion"
	OutcomeKey        = "outcome"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if p := PrincipalFromContext(c); p != "" {
			fields["principal"] = p
		}
		if v := c.GetString(CatalogVersionKey); v != "" {
			fields["catalog_version"] = v
		}
		if v := c.GetString(OutcomeKey); v != "" {
			fields["outcome"] = v
		}
		metrics.IncHTTPRequest(c.FullPath(), c.Writer.Status())
		telemetry.Info("request.complete", fields)
	}
}
