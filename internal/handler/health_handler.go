package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seatrush/reservation-engine/pkg/database"
	"github.com/seatrush/reservation-engine/pkg/redis"
)

// HealthHandler reports service and dependency health
type HealthHandler struct {
	db      *database.PostgresDB
	redis   *redis.Client
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.PostgresDB, redisClient *redis.Client, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redisClient,
		version: version,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	checks := gin.H{}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			checks["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["postgres"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}
	}

	c.JSON(status, gin.H{
		"status":  healthStatus(status),
		"version": h.version,
		"checks":  checks,
	})
}

// Ready handles GET /ready. Liveness without dependency checks.
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func healthStatus(code int) string {
	if code == http.StatusOK {
		return "healthy"
	}
	return "degraded"
}
