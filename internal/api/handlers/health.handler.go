package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/recovery-core/pkg/cache"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

const serviceVersion = "v1.4.0"

type HealthHandler struct {
	cache  cache.ValkeyCluster
	logger logger.Logger
}

func NewHealthHandler(c cache.ValkeyCluster, logger logger.Logger) *HealthHandler {
	return &HealthHandler{cache: c, logger: logger}
}

// GET /health - Quick health check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "recovery-core",
		"version":   serviceVersion,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /ready - Readiness depends on the fallback cache being reachable.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK
	resp := gin.H{
		"status":    status,
		"service":   "recovery-core",
		"version":   serviceVersion,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if err := h.cache.HealthCheck(ctx); err != nil {
		resp["status"] = "unhealthy"
		resp["error"] = err.Error()
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, resp)
}
