package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/recovery-core/internal/services"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

type EscalationHandler struct {
	escalation *services.IncidentEscalationService
	logger     logger.Logger
}

func NewEscalationHandler(escalation *services.IncidentEscalationService, logger logger.Logger) *EscalationHandler {
	return &EscalationHandler{escalation: escalation, logger: logger}
}

// GET /escalation/status
func (h *EscalationHandler) GetStatus(c *gin.Context) {
	respondData(c, h.escalation.GetStatus())
}

// GET /escalation/active
func (h *EscalationHandler) GetActive(c *gin.Context) {
	respondData(c, h.escalation.GetActiveEscalations())
}

// POST /escalation/:id/acknowledge body {acknowledgedBy, notes?}
func (h *EscalationHandler) Acknowledge(c *gin.Context) {
	var body struct {
		AcknowledgedBy string `json:"acknowledgedBy"`
		Notes          string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.AcknowledgedBy == "" {
		respondError(c, http.StatusBadRequest, "acknowledgedBy is required")
		return
	}
	if !h.escalation.AcknowledgeEscalation(c.Param("id"), body.AcknowledgedBy) {
		respondError(c, http.StatusNotFound, "Escalation not found or already acknowledged")
		return
	}
	respondMessage(c, "Escalation acknowledged")
}

// POST /escalation/:id/resolve body {resolvedBy, notes?}
func (h *EscalationHandler) Resolve(c *gin.Context) {
	var body struct {
		ResolvedBy string `json:"resolvedBy"`
		Notes      string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ResolvedBy == "" {
		respondError(c, http.StatusBadRequest, "resolvedBy is required")
		return
	}
	if !h.escalation.ResolveEscalation(c.Param("id"), body.ResolvedBy, body.Notes) {
		respondError(c, http.StatusNotFound, "Escalation not found")
		return
	}
	respondMessage(c, "Escalation resolved")
}
