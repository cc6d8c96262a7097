package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/recovery-core/internal/services"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

type DegradationHandler struct {
	degradation *services.GracefulDegradationService
	logger      logger.Logger
}

func NewDegradationHandler(degradation *services.GracefulDegradationService, logger logger.Logger) *DegradationHandler {
	return &DegradationHandler{degradation: degradation, logger: logger}
}

// GET /degradation/status
func (h *DegradationHandler) GetStatus(c *gin.Context) {
	respondData(c, h.degradation.GetStatus())
}

// GET /degradation/active
func (h *DegradationHandler) GetActive(c *gin.Context) {
	respondData(c, h.degradation.GetActiveDegradations())
}

// GET /degradation/features
func (h *DegradationHandler) GetFeatures(c *gin.Context) {
	respondData(c, h.degradation.GetFeatureStates())
}

// POST /degradation/:ruleId/activate
func (h *DegradationHandler) Activate(c *gin.Context) {
	if !h.degradation.ManualActivation(c.Request.Context(), c.Param("ruleId")) {
		respondError(c, http.StatusNotFound, "Degradation rule not found or already active")
		return
	}
	respondMessage(c, "Degradation activated for rule "+c.Param("ruleId"))
}

// POST /degradation/:ruleId/revert
func (h *DegradationHandler) Revert(c *gin.Context) {
	if !h.degradation.ManualReversion(c.Request.Context(), c.Param("ruleId")) {
		respondError(c, http.StatusNotFound, "Degradation rule not found or not active")
		return
	}
	respondMessage(c, "Degradation reverted for rule "+c.Param("ruleId"))
}

// POST /degradation/enable
func (h *DegradationHandler) Enable(c *gin.Context) {
	h.degradation.Enable()
	respondMessage(c, "Graceful degradation enabled")
}

// POST /degradation/disable
func (h *DegradationHandler) Disable(c *gin.Context) {
	h.degradation.Disable(c.Request.Context())
	respondMessage(c, "Graceful degradation disabled")
}
