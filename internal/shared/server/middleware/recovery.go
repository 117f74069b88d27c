package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/iammrherb/authensi-smart-sub008/internal/shared/metrics"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/server/respond"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/telemetry"
)

const outcomePanic = "panic"

// Recovery turns a handler panic into a 500 envelope. The request log line
// written by Logging carries outcome=panic.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			route := c.FullPath()
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      rec,
				"stack":      string(debug.Stack()),
				"route":      route,
				"method":     c.Request.Method,
			}
			if p := PrincipalFromContext(c); p != "" {
				fields["principal"] = p
			}
			if v := c.GetString(CatalogVersionKey); v != "" {
				fields["catalog_version"] = v
			}
			telemetry.Error("request.panic", fields)
			metrics.IncPanic(route)

			c.Set(OutcomeKey, outcomePanic)
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Unexpected server error", nil)
		}()
		c.Next()
	}
}
