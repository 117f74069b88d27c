package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/iammrherb/authensi-smart-sub008/internal/scoping"
	"github.com/iammrherb/authensi-smart-sub008/internal/services/health"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/config"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/metrics"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/server/middleware"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/server/respond"
)

// Rate limit groups.
const (
	GroupDefault  = "DEFAULT"
	GroupMetadata = "METADATA"
	GroupAdmin    = "ADMIN"
)

// RouterDeps carries the handlers the router mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config  config.Config
	Health  *health.Service
	Scoping *scoping.Handler
	Admin   *scoping.AdminHandler
	Limiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(rateLimitConfig(deps)))
	api.GET("/health", func(c *gin.Context) {
		report := healthSvc.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})

	if deps.Scoping != nil {
		deps.Scoping.RegisterRoutes(api)
	}
	if deps.Admin != nil {
		admin := api.Group("", middleware.AdminToken(deps.Config.AdminToken))
		deps.Admin.RegisterRoutes(admin)
	}

	return r
}

func rateLimitConfig(deps RouterDeps) middleware.RateLimitConfig {
	rps := deps.Config.RateLimitRPS
	burst := deps.Config.RateLimitBurst
	rules := map[string]middleware.RateLimitRule{}
	if rps > 0 && burst > 0 {
		rules[GroupDefault] = middleware.RateLimitRule{Rate: rps, Burst: burst}
		rules[GroupMetadata] = middleware.RateLimitRule{Rate: rps * 5, Burst: burst * 5}
		rules[GroupAdmin] = middleware.RateLimitRule{Rate: 1, Burst: 5}
	}
	return middleware.RateLimitConfig{
		Rules:        rules,
		DefaultGroup: GroupDefault,
		GroupFor:     groupFor,
		Limiter:      deps.Limiter,
	}
}

func groupFor(c *gin.Context) string {
	path := c.FullPath()
	switch {
	case path == "/api/v1/catalog/reload" || strings.HasPrefix(path, "/api/v1/catalog/revisions"):
		return GroupAdmin
	case c.Request.Method == http.MethodGet:
		return GroupMetadata
	default:
		return GroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
