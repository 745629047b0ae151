package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sessionscrape/api/handler"
	"github.com/use-agent/sessionscrape/api/middleware"
	"github.com/use-agent/sessionscrape/config"
)

// evictInterval is how often idle rate-limit buckets are dropped.
const evictInterval = 5 * time.Minute

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// /api/v1 and the original POST /scrape share one rate limit budget per key
// but reject in their own body shape. Health is outside auth so monitoring
// probes always work. The bucket janitor stops when ctx is done.
func NewRouter(ctx context.Context, ex *handler.Executor, store *handler.BatchStore, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	var keys middleware.KeySet
	if cfg.Auth.Enabled {
		keys = middleware.NewKeySet(cfg.Auth.APIKeys)
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	go limiter.Run(ctx, evictInterval)

	guard := func(reject middleware.RejectFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{keys.Guard(reject), limiter.Guard(reject)}
	}

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(ex.Limiter, startTime))

	protected := v1.Group("", guard(middleware.RejectJSON)...)
	protected.POST("/scrape", handler.Scrape(ex))
	protected.POST("/batch", handler.PostBatch(ex, store))
	protected.GET("/batch/:id", handler.GetBatch(store))

	// Original single-route API.
	r.POST("/scrape", append(guard(middleware.RejectLegacy), handler.LegacyScrape(ex))...)

	return r
}
