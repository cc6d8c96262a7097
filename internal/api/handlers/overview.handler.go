package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/internal/services"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

// OverviewHandler aggregates the six subsystem statuses into one report.
type OverviewHandler struct {
	recovery    *services.AutoRecoveryService
	circuits    *services.CircuitBreakerService
	degradation *services.GracefulDegradationService
	healing     *services.SelfHealingService
	escalation  *services.IncidentEscalationService
	deployments *services.DeploymentMonitoringService
	logger      logger.Logger
}

func NewOverviewHandler(
	recovery *services.AutoRecoveryService,
	circuits *services.CircuitBreakerService,
	degradation *services.GracefulDegradationService,
	healing *services.SelfHealingService,
	escalation *services.IncidentEscalationService,
	deployments *services.DeploymentMonitoringService,
	logger logger.Logger,
) *OverviewHandler {
	return &OverviewHandler{
		recovery:    recovery,
		circuits:    circuits,
		degradation: degradation,
		healing:     healing,
		escalation:  escalation,
		deployments: deployments,
		logger:      logger,
	}
}

// GET /overview
func (h *OverviewHandler) GetOverview(c *gin.Context) {
	overview := models.SystemOverview{
		AutoRecovery:   h.recovery.GetStatus(),
		CircuitBreaker: h.circuits.GetStatus(),
		Degradation:    h.degradation.GetStatus(),
		SelfHealing:    h.healing.GetStatus(),
		Escalation:     h.escalation.GetStatus(),
		Deployment:     h.deployments.GetStatus(),
	}
	overview.OverallHealth = computeOverallHealth(overview)
	respondData(c, overview)
}

func computeOverallHealth(o models.SystemOverview) models.OverallHealth {
	statuses := []models.ComponentStatus{
		o.AutoRecovery, o.CircuitBreaker, o.Degradation,
		o.SelfHealing, o.Escalation, o.Deployment,
	}

	unhealthy := 0
	degraded := 0
	for _, s := range statuses {
		switch s.Status {
		case models.HealthUnhealthy:
			unhealthy++
		case models.HealthDegraded:
			degraded++
		}
	}

	switch {
	case unhealthy > 0:
		return models.OverallHealth{
			Status:      models.HealthUnhealthy,
			Description: fmt.Sprintf("%d subsystem(s) unhealthy, %d degraded", unhealthy, degraded),
		}
	case degraded > 0:
		return models.OverallHealth{
			Status:      models.HealthDegraded,
			Description: fmt.Sprintf("%d subsystem(s) degraded", degraded),
		}
	default:
		return models.OverallHealth{
			Status:      models.HealthHealthy,
			Description: "All auto-recovery subsystems operational",
		}
	}
}
