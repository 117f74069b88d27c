package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iammrherb/authensi-smart-sub008/internal/shared/server/respond"
)

const principalKey = "principal"

// AdminToken guards catalog administration routes with a static bearer token.
// An empty token disables the routes entirely.
func AdminToken(token string) gin.HandlerFunc {
	want := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if len(want) == 0 {
			respond.Error(c, http.StatusForbidden, "forbidden", "admin endpoints are disabled", nil)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		got, ok := strings.CutPrefix(authHeader, "Bearer ")
		got = strings.TrimSpace(got)
		if !ok || got == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(principalKey, "admin")
		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal, empty for anonymous callers.
func PrincipalFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(principalKey)
}
