package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gnresolver/api/handler"
	"github.com/use-agent/gnresolver/api/middleware"
	"github.com/use-agent/gnresolver/config"
	"github.com/use-agent/gnresolver/metrics"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:   Recovery → RequestID → AccessLog → BodyLimit
//	/resolve: RateLimit
//
// Health and metrics are never rate limited so probes and scrapes always work.
// Cancelling lifetime aborts in-flight resolutions.
func NewRouter(lifetime context.Context, rs handler.Resolver, m *metrics.Metrics, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(m))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	r.GET("/health", handler.Health())
	r.POST("/resolve", middleware.RateLimit(cfg.RateLimit), handler.Resolve(lifetime, rs))

	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	return r
}
