package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/internal/services"
	"github.com/platformbuilds/recovery-core/internal/storage"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

// RecoveryHandler exposes the alert-driven recovery engine: introspection,
// enable/disable, dry runs, and the alert ingestion endpoint that feeds it.
type RecoveryHandler struct {
	recovery *services.AutoRecoveryService
	alerts   storage.AlertStore
	metrics  storage.MetricsWriter
	logger   logger.Logger
}

func NewRecoveryHandler(recovery *services.AutoRecoveryService, alerts storage.AlertStore, metrics storage.MetricsWriter, logger logger.Logger) *RecoveryHandler {
	return &RecoveryHandler{
		recovery: recovery,
		alerts:   alerts,
		metrics:  metrics,
		logger:   logger,
	}
}

// GET /auto-recovery/status
func (h *RecoveryHandler) GetStatus(c *gin.Context) {
	respondData(c, h.recovery.GetStatus())
}

// GET /auto-recovery/stats
func (h *RecoveryHandler) GetStats(c *gin.Context) {
	respondData(c, h.recovery.GetRecoveryStats())
}

// GET /auto-recovery/active
func (h *RecoveryHandler) GetActive(c *gin.Context) {
	respondData(c, h.recovery.GetActiveRecoveries())
}

// GET /auto-recovery/history
func (h *RecoveryHandler) GetHistory(c *gin.Context) {
	respondData(c, h.recovery.GetHistory())
}

// GET /auto-recovery/actions
func (h *RecoveryHandler) GetActions(c *gin.Context) {
	respondData(c, h.recovery.GetRecoveryActions())
}

// POST /auto-recovery/actions
func (h *RecoveryHandler) RegisterAction(c *gin.Context) {
	var action models.RecoveryAction
	if err := c.ShouldBindJSON(&action); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid recovery action payload")
		return
	}
	if err := h.recovery.RegisterAction(action); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	respondCreated(c, action)
}

// POST /auto-recovery/enable
func (h *RecoveryHandler) Enable(c *gin.Context) {
	h.recovery.EnableAutoRecovery()
	respondMessage(c, "Auto-recovery enabled")
}

// POST /auto-recovery/disable
func (h *RecoveryHandler) Disable(c *gin.Context) {
	h.recovery.DisableAutoRecovery()
	respondMessage(c, "Auto-recovery disabled")
}

// POST /auto-recovery/test/:actionId body {alertId}
func (h *RecoveryHandler) TestAction(c *gin.Context) {
	var body struct {
		AlertID string `json:"alertId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.AlertID == "" {
		respondError(c, http.StatusBadRequest, "Alert ID is required")
		return
	}

	attempt, err := h.recovery.TestRecoveryAction(c.Request.Context(), c.Param("actionId"), body.AlertID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(c, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("Recovery dry run failed", "action", c.Param("actionId"), "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondData(c, attempt)
}

type alertRequest struct {
	Type         string  `json:"type"`
	Severity     string  `json:"severity"`
	Component    string  `json:"component"`
	Message      string  `json:"message"`
	Metric       string  `json:"metric"`
	CurrentValue float64 `json:"currentValue"`
	Threshold    float64 `json:"threshold"`
}

// POST /alerts ingests an alert from an external monitor and hands it to the
// recovery engine. The response reports whether an attempt started or queued.
func (h *RecoveryHandler) IngestAlert(c *gin.Context) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid alert payload")
		return
	}
	if req.Type == "" || req.Severity == "" {
		respondError(c, http.StatusBadRequest, "Alert type and severity are required")
		return
	}

	alert := &models.Alert{
		ID:           "alert_" + uuid.New().String()[:8],
		Type:         req.Type,
		Severity:     models.AlertSeverity(req.Severity),
		Component:    req.Component,
		Message:      req.Message,
		Status:       models.AlertActive,
		Metric:       req.Metric,
		CurrentValue: req.CurrentValue,
		Threshold:    req.Threshold,
		CreatedAt:    time.Now(),
	}
	if err := h.alerts.Create(c.Request.Context(), alert); err != nil {
		h.logger.Error("Failed to store alert", "type", alert.Type, "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	attempt, queued, err := h.recovery.TriggerRecovery(c.Request.Context(), alert)
	if err != nil {
		h.logger.Error("Recovery trigger failed", "alert", alert.ID, "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	respondCreated(c, gin.H{
		"alert":   alert,
		"attempt": attempt,
		"queued":  queued,
	})
}

// GET /alerts lists unresolved alerts.
func (h *RecoveryHandler) ListAlerts(c *gin.Context) {
	alerts, err := h.alerts.ListUnresolved(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondData(c, alerts)
}

type metricSampleRequest struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// POST /metrics records a metric sample into the shared store so external
// producers can feed trigger evaluation.
func (h *RecoveryHandler) RecordMetric(c *gin.Context) {
	var req metricSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		respondError(c, http.StatusBadRequest, "Metric name is required")
		return
	}
	point := storage.MetricPoint{Name: req.Name, Value: req.Value, Timestamp: time.Now()}
	if err := h.metrics.Record(c.Request.Context(), point); err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondCreated(c, point)
}
