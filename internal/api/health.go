package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/quecocinohoy/backend/internal/logger"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db    Pinger
	redis *redis.Client
	log   *logger.Logger
}

// NewHealthHandler builds the health endpoint. redisClient may be nil.
func NewHealthHandler(db Pinger, redisClient *redis.Client, log *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, log: log.Named("health")}
}

// Check answers 200 when the database is reachable and 503 otherwise. Redis
// is reported but never fails the check.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}

	if err := h.db.HealthCheck(ctx); err != nil {
		h.log.Warnw("database health check failed", "error", err)
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = "unreachable"
	}

	if h.redis != nil {
		body["redis"] = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			h.log.Warnw("redis health check failed", "error", err)
			body["redis"] = "unreachable"
		}
	}

	c.JSON(status, body)
}
