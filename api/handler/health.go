package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sessionscrape/models"
	"github.com/use-agent/sessionscrape/pool"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports limiter utilisation and degrades status when > 80% of run slots
// are busy or recent runs crashed the browser.
func Health(lim *pool.Limiter, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := lim.Stats()

		status := "healthy"
		if lim.Health().Degraded() ||
			(stats.MaxRuns > 0 && stats.ActiveRuns > int(float64(stats.MaxRuns)*0.8)) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   Version,
		})
	}
}
