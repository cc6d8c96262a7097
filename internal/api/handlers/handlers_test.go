package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/recovery-core/internal/config"
	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/internal/scheduler"
	"github.com/platformbuilds/recovery-core/internal/services"
	"github.com/platformbuilds/recovery-core/internal/storage"
	"github.com/platformbuilds/recovery-core/pkg/cache"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

type stubProber struct{}

func (stubProber) IsAvailable(ctx context.Context, service string) bool { return true }
func (stubProber) ProbeURL(ctx context.Context, url string) error       { return nil }

type stubExecutor struct{}

func (stubExecutor) RestartService(ctx context.Context, target string) (string, error) {
	return "ok", nil
}
func (stubExecutor) ClearCache(ctx context.Context, target string) (string, error) {
	return "ok", nil
}
func (stubExecutor) ResetConnections(ctx context.Context, target string) (string, error) {
	return "ok", nil
}
func (stubExecutor) ScaleResources(ctx context.Context, target string, params map[string]string) (string, error) {
	return "ok", nil
}
func (stubExecutor) CleanupLogs(ctx context.Context, target string) (string, error) {
	return "ok", nil
}
func (stubExecutor) CleanupTemp(ctx context.Context, target string) (string, error) {
	return "ok", nil
}
func (stubExecutor) GarbageCollect(ctx context.Context) (string, error) {
	return "ok", nil
}
func (stubExecutor) IsolateComponent(ctx context.Context, target string) (string, error) {
	return "ok", nil
}
func (stubExecutor) ExecuteScript(ctx context.Context, target string, params map[string]string) (string, error) {
	return "ok", nil
}

type stubNotifier struct{}

func (stubNotifier) Notify(ctx context.Context, member models.TeamMember, n *services.Notification) models.CommunicationStatus {
	return models.CommunicationSent
}
func (stubNotifier) Broadcast(ctx context.Context, n *services.Notification) error { return nil }

type apiFixture struct {
	router *gin.Engine
	alerts *storage.MemoryAlertStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	clock := scheduler.RealClock()
	alerts := storage.NewMemoryAlertStore()
	metrics := storage.NewMemoryMetricsStore()
	noop := cache.NewNoopValkeyCache(log)

	escalation := services.NewIncidentEscalationService(
		config.EscalationConfig{Enabled: true, BusinessHoursStart: 9, BusinessHoursEnd: 17},
		alerts, stubNotifier{}, clock, log)
	deployments := services.NewDeploymentMonitoringService(
		config.DeploymentConfig{Enabled: true, AutoRollbackEnabled: true, StabilizationMinutes: 15, MonitoringMinutes: 30},
		metrics, stubProber{}, clock, log)
	recovery := services.NewAutoRecoveryService(
		config.RecoveryConfig{Enabled: true, MaxConcurrentRecoveries: 2, QueueSize: 10, HistoryLimit: 50},
		alerts, metrics, stubExecutor{}, stubProber{}, escalation, deployments, clock, log)
	circuits := services.NewCircuitBreakerService(log)
	degradation := services.NewGracefulDegradationService(
		config.DegradationConfig{Enabled: true, EvaluationIntervalSeconds: 30, DefaultErrorRateThreshold: 10, DefaultResponseTimeMs: 5000, LongRunningWarnMinutes: 30},
		metrics, alerts, noop, stubProber{}, clock, log)
	healing := services.NewSelfHealingService(
		config.HealingConfig{Enabled: true, MaxConcurrentHealing: 3, HistoryLimit: 50},
		metrics, stubExecutor{}, stubProber{}, clock, log)

	router := gin.New()
	v1 := router.Group("/api/v1/recovery")

	recoveryHandler := NewRecoveryHandler(recovery, alerts, metrics, log)
	v1.GET("/auto-recovery/status", recoveryHandler.GetStatus)
	v1.GET("/auto-recovery/stats", recoveryHandler.GetStats)
	v1.GET("/auto-recovery/actions", recoveryHandler.GetActions)
	v1.POST("/auto-recovery/test/:actionId", recoveryHandler.TestAction)
	v1.POST("/alerts", recoveryHandler.IngestAlert)
	v1.GET("/alerts", recoveryHandler.ListAlerts)
	v1.POST("/metrics", recoveryHandler.RecordMetric)

	circuitHandler := NewCircuitBreakerHandler(circuits, log)
	v1.GET("/circuit-breaker/circuits/:id/stats", circuitHandler.GetCircuitStats)
	v1.POST("/circuit-breaker/circuits/:id/reset", circuitHandler.ResetCircuit)
	v1.POST("/circuit-breaker/reset-all", circuitHandler.ResetAllCircuits)

	degradationHandler := NewDegradationHandler(degradation, log)
	v1.GET("/degradation/features", degradationHandler.GetFeatures)
	v1.POST("/degradation/:ruleId/activate", degradationHandler.Activate)
	v1.POST("/degradation/:ruleId/revert", degradationHandler.Revert)

	escalationHandler := NewEscalationHandler(escalation, log)
	v1.POST("/escalation/:id/acknowledge", escalationHandler.Acknowledge)
	v1.POST("/escalation/:id/resolve", escalationHandler.Resolve)

	healingHandler := NewHealingHandler(healing, log)
	v1.POST("/self-healing/force", healingHandler.ForceHealing)

	deploymentHandler := NewDeploymentHandler(deployments, log)
	v1.POST("/deployment/track", deploymentHandler.TrackDeployment)
	v1.GET("/deployment/:id", deploymentHandler.GetDeployment)
	v1.POST("/deployment/:id/rollback", deploymentHandler.Rollback)

	overviewHandler := NewOverviewHandler(recovery, circuits, degradation, healing, escalation, deployments, log)
	v1.GET("/overview", overviewHandler.GetOverview)

	return &apiFixture{router: router, alerts: alerts}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestOverviewAllHealthy(t *testing.T) {
	f := newAPIFixture(t)

	w, resp := f.do(t, http.MethodGet, "/api/v1/recovery/overview", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])

	data := resp["data"].(map[string]interface{})
	overall := data["overall_health"].(map[string]interface{})
	assert.Equal(t, "healthy", overall["status"])
	assert.Equal(t, "All auto-recovery subsystems operational", overall["description"])
}

func TestTestActionRequiresAlertID(t *testing.T) {
	f := newAPIFixture(t)

	w, resp := f.do(t, http.MethodPost, "/api/v1/recovery/auto-recovery/test/high-memory-usage", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Alert ID is required", resp["error"])
}

func TestTestActionDryRun(t *testing.T) {
	f := newAPIFixture(t)
	alert := &models.Alert{
		ID:        "alert_dry1",
		Type:      "high_memory_usage",
		Severity:  models.SeverityHigh,
		Component: "api-server",
		Status:    models.AlertActive,
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.alerts.Create(context.Background(), alert))

	w, resp := f.do(t, http.MethodPost, "/api/v1/recovery/auto-recovery/test/high-memory-usage",
		map[string]string{"alertId": "alert_dry1"})
	assert.Equal(t, http.StatusOK, w.Code)

	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "success", data["status"])

	// Unknown action and unknown alert both map to 404.
	w, _ = f.do(t, http.MethodPost, "/api/v1/recovery/auto-recovery/test/no-such-action",
		map[string]string{"alertId": "alert_dry1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/v1/recovery/auto-recovery/test/high-memory-usage",
		map[string]string{"alertId": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestAlertWithoutMatchingAction(t *testing.T) {
	f := newAPIFixture(t)

	w, resp := f.do(t, http.MethodPost, "/api/v1/recovery/alerts", map[string]interface{}{
		"type":      "disk_latency",
		"severity":  "low",
		"component": "storage",
		"message":   "slow disk",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	data := resp["data"].(map[string]interface{})
	assert.Nil(t, data["attempt"])
	assert.Equal(t, false, data["queued"])

	alertData := data["alert"].(map[string]interface{})
	assert.NotEmpty(t, alertData["id"])

	w, resp = f.do(t, http.MethodGet, "/api/v1/recovery/alerts", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["data"].([]interface{}), 1)
}

func TestIngestAlertValidation(t *testing.T) {
	f := newAPIFixture(t)

	w, resp := f.do(t, http.MethodPost, "/api/v1/recovery/alerts", map[string]interface{}{
		"component": "storage",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Alert type and severity are required", resp["error"])
}

func TestRecordMetricSample(t *testing.T) {
	f := newAPIFixture(t)

	w, _ := f.do(t, http.MethodPost, "/api/v1/recovery/metrics",
		map[string]interface{}{"name": "memory_usage", "value": 72.5})
	assert.Equal(t, http.StatusCreated, w.Code)

	w, resp := f.do(t, http.MethodPost, "/api/v1/recovery/metrics", map[string]interface{}{"value": 1.0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Metric name is required", resp["error"])
}

func TestCircuitEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	w, resp := f.do(t, http.MethodGet, "/api/v1/recovery/circuit-breaker/circuits/payments/stats", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Circuit not found", resp["error"])

	w, _ = f.do(t, http.MethodPost, "/api/v1/recovery/circuit-breaker/circuits/payments/reset", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp = f.do(t, http.MethodPost, "/api/v1/recovery/circuit-breaker/reset-all", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Reset 0 circuits successfully", resp["message"])
}

func TestDegradationActivateAndRevert(t *testing.T) {
	f := newAPIFixture(t)

	w, _ := f.do(t, http.MethodPost, "/api/v1/recovery/degradation/high-memory-degradation/activate", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Second activation is not a no-op success; the rule is already active.
	w, resp := f.do(t, http.MethodPost, "/api/v1/recovery/degradation/high-memory-degradation/activate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Degradation rule not found or already active", resp["error"])

	w, _ = f.do(t, http.MethodPost, "/api/v1/recovery/degradation/high-memory-degradation/revert", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = f.do(t, http.MethodPost, "/api/v1/recovery/degradation/high-memory-degradation/revert", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Degradation rule not found or not active", resp["error"])

	w, resp = f.do(t, http.MethodGet, "/api/v1/recovery/degradation/features", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, resp["data"])
}

func TestEscalationEndpointsValidate(t *testing.T) {
	f := newAPIFixture(t)

	w, resp := f.do(t, http.MethodPost, "/api/v1/recovery/escalation/esc_1/acknowledge", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "acknowledgedBy is required", resp["error"])

	w, resp = f.do(t, http.MethodPost, "/api/v1/recovery/escalation/esc_1/acknowledge",
		map[string]string{"acknowledgedBy": "oncall"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Escalation not found or already acknowledged", resp["error"])

	w, resp = f.do(t, http.MethodPost, "/api/v1/recovery/escalation/esc_1/resolve", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "resolvedBy is required", resp["error"])

	w, resp = f.do(t, http.MethodPost, "/api/v1/recovery/escalation/esc_1/resolve",
		map[string]string{"resolvedBy": "oncall"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Escalation not found", resp["error"])
}

func TestForceHealingEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	w, resp := f.do(t, http.MethodPost, "/api/v1/recovery/self-healing/force", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "issueType and component are required", resp["error"])

	w, resp = f.do(t, http.MethodPost, "/api/v1/recovery/self-healing/force",
		map[string]string{"issueType": "high_cpu", "component": "api-server"})
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "Manual healing initiated for api-server", data["output"])
}

func TestDeploymentEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	w, resp := f.do(t, http.MethodPost, "/api/v1/recovery/deployment/track",
		map[string]string{"version": "v2.0.1"})
	assert.Equal(t, http.StatusCreated, w.Code)
	data := resp["data"].(map[string]interface{})
	id := data["id"].(string)
	require.NotEmpty(t, id)

	w, _ = f.do(t, http.MethodGet, "/api/v1/recovery/deployment/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = f.do(t, http.MethodGet, "/api/v1/recovery/deployment/deploy_none", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Deployment not found", resp["error"])

	w, resp = f.do(t, http.MethodPost, "/api/v1/recovery/deployment/deploy_none/rollback",
		map[string]interface{}{"reason": "bad deploy", "preserveData": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Deployment not found", resp["error"])

	w, resp = f.do(t, http.MethodPost, "/api/v1/recovery/deployment/"+id+"/rollback",
		map[string]interface{}{"reason": "bad deploy", "preserveData": true})
	assert.Equal(t, http.StatusOK, w.Code)
	data = resp["data"].(map[string]interface{})
	assert.Contains(t, data["output"], "Rollback initiated for deployment "+id)
}
