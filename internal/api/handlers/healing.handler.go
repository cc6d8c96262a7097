package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/internal/services"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

type HealingHandler struct {
	healing *services.SelfHealingService
	logger  logger.Logger
}

func NewHealingHandler(healing *services.SelfHealingService, logger logger.Logger) *HealingHandler {
	return &HealingHandler{healing: healing, logger: logger}
}

// GET /self-healing/status
func (h *HealingHandler) GetStatus(c *gin.Context) {
	respondData(c, h.healing.GetStatus())
}

// GET /self-healing/health
func (h *HealingHandler) GetSystemHealth(c *gin.Context) {
	respondData(c, h.healing.GetSystemHealth())
}

// GET /self-healing/history
func (h *HealingHandler) GetHistory(c *gin.Context) {
	respondData(c, h.healing.GetHistory())
}

// GET /self-healing/active
func (h *HealingHandler) GetActive(c *gin.Context) {
	respondData(c, h.healing.GetActiveHealing())
}

// POST /self-healing/enable
func (h *HealingHandler) Enable(c *gin.Context) {
	h.healing.Enable()
	respondMessage(c, "Self-healing enabled")
}

// POST /self-healing/disable
func (h *HealingHandler) Disable(c *gin.Context) {
	h.healing.Disable()
	respondMessage(c, "Self-healing disabled")
}

// POST /self-healing/force body {issueType, component}
func (h *HealingHandler) ForceHealing(c *gin.Context) {
	var body struct {
		IssueType string `json:"issueType"`
		Component string `json:"component"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.IssueType == "" || body.Component == "" {
		respondError(c, http.StatusBadRequest, "issueType and component are required")
		return
	}

	output, err := h.healing.ForceHealing(c.Request.Context(), models.IssueType(body.IssueType), body.Component)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondData(c, gin.H{"output": output})
}
