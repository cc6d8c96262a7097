package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/recovery-core/internal/services"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

type CircuitBreakerHandler struct {
	circuits *services.CircuitBreakerService
	logger   logger.Logger
}

func NewCircuitBreakerHandler(circuits *services.CircuitBreakerService, logger logger.Logger) *CircuitBreakerHandler {
	return &CircuitBreakerHandler{circuits: circuits, logger: logger}
}

// GET /circuit-breaker/status
func (h *CircuitBreakerHandler) GetStatus(c *gin.Context) {
	respondData(c, h.circuits.GetStatus())
}

// GET /circuit-breaker/circuits
func (h *CircuitBreakerHandler) GetCircuits(c *gin.Context) {
	respondData(c, h.circuits.GetAllCircuits())
}

// GET /circuit-breaker/circuits/:id/stats
func (h *CircuitBreakerHandler) GetCircuitStats(c *gin.Context) {
	stats, err := h.circuits.GetCircuitStats(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "Circuit not found")
		return
	}
	respondData(c, stats)
}

// POST /circuit-breaker/circuits/:id/reset
func (h *CircuitBreakerHandler) ResetCircuit(c *gin.Context) {
	if err := h.circuits.ResetCircuit(c.Param("id")); err != nil {
		respondError(c, http.StatusNotFound, "Circuit not found")
		return
	}
	respondMessage(c, fmt.Sprintf("Circuit %s reset successfully", c.Param("id")))
}

// POST /circuit-breaker/reset-all
func (h *CircuitBreakerHandler) ResetAllCircuits(c *gin.Context) {
	count := h.circuits.ResetAllCircuits()
	respondMessage(c, fmt.Sprintf("Reset %d circuits successfully", count))
}

// POST /circuit-breaker/circuits/:id/force-open
func (h *CircuitBreakerHandler) ForceOpenCircuit(c *gin.Context) {
	if err := h.circuits.ForceOpenCircuit(c.Param("id")); err != nil {
		respondError(c, http.StatusNotFound, "Circuit not found")
		return
	}
	respondMessage(c, fmt.Sprintf("Circuit %s forced open", c.Param("id")))
}
