package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/internal/services"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

type DeploymentHandler struct {
	deployments *services.DeploymentMonitoringService
	logger      logger.Logger
}

func NewDeploymentHandler(deployments *services.DeploymentMonitoringService, logger logger.Logger) *DeploymentHandler {
	return &DeploymentHandler{deployments: deployments, logger: logger}
}

// GET /deployment/status
func (h *DeploymentHandler) GetStatus(c *gin.Context) {
	respondData(c, h.deployments.GetStatus())
}

// GET /deployment/active
func (h *DeploymentHandler) GetActive(c *gin.Context) {
	respondData(c, h.deployments.GetActiveDeployments())
}

// GET /deployment/history
func (h *DeploymentHandler) GetHistory(c *gin.Context) {
	respondData(c, h.deployments.GetHistory())
}

// GET /deployment/:id
func (h *DeploymentHandler) GetDeployment(c *gin.Context) {
	d, err := h.deployments.GetDeployment(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "Deployment not found")
		return
	}
	respondData(c, d)
}

// POST /deployment/track
func (h *DeploymentHandler) TrackDeployment(c *gin.Context) {
	var d models.Deployment
	if err := c.ShouldBindJSON(&d); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid deployment payload")
		return
	}
	tracked, err := h.deployments.TrackDeployment(c.Request.Context(), &d)
	if err != nil {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	respondCreated(c, tracked)
}

// POST /deployment/:target/rollback body {reason, preserveData}
func (h *DeploymentHandler) Rollback(c *gin.Context) {
	var body struct {
		Reason       string `json:"reason"`
		PreserveData bool   `json:"preserveData"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid rollback payload")
		return
	}
	if body.Reason == "" {
		body.Reason = "manual rollback"
	}

	output, err := h.deployments.RollbackDeployment(c.Request.Context(), c.Param("id"), body.Reason, body.PreserveData)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(c, http.StatusNotFound, "Deployment not found")
			return
		}
		h.logger.Error("Rollback failed", "target", c.Param("id"), "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondData(c, gin.H{"output": output})
}

// POST /deployment/auto-rollback/enable
func (h *DeploymentHandler) EnableAutoRollback(c *gin.Context) {
	h.deployments.EnableAutoRollback()
	respondMessage(c, "Automatic rollback enabled")
}

// POST /deployment/auto-rollback/disable
func (h *DeploymentHandler) DisableAutoRollback(c *gin.Context) {
	h.deployments.DisableAutoRollback()
	respondMessage(c, "Automatic rollback disabled")
}
