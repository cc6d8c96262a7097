package services

import (
	"context"
	"testing"
	"time"

	"github.com/platformbuilds/recovery-core/internal/config"
	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/internal/scheduler"
	"github.com/platformbuilds/recovery-core/internal/storage"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

type recoveryFixture struct {
	svc         *AutoRecoveryService
	alerts      *storage.MemoryAlertStore
	metrics     *storage.MemoryMetricsStore
	executor    *fakeExecutor
	prober      *fakeProber
	notifier    *fakeNotifier
	escalation  *IncidentEscalationService
	deployments *DeploymentMonitoringService
	clock       *scheduler.FakeClock
}

func newRecoveryFixture(t *testing.T, cfg config.RecoveryConfig) *recoveryFixture {
	t.Helper()

	clock := scheduler.NewFakeClock(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
	alerts := storage.NewMemoryAlertStore()
	metricsStore := storage.NewMemoryMetricsStoreWithClock(clock.Now)
	executor := newFakeExecutor()
	prober := newFakeProber()
	notifier := &fakeNotifier{}

	escalation := NewIncidentEscalationService(
		config.EscalationConfig{Enabled: true, BusinessHoursStart: 9, BusinessHoursEnd: 17},
		alerts, notifier, clock, logger.NewNop())
	deployments := NewDeploymentMonitoringService(
		config.DeploymentConfig{Enabled: true, AutoRollbackEnabled: true, StabilizationMinutes: 15, MonitoringMinutes: 60},
		metricsStore, prober, clock, logger.NewNop())

	svc := NewAutoRecoveryService(cfg, alerts, metricsStore, executor, prober, escalation, deployments, clock, logger.NewNop())
	return &recoveryFixture{
		svc: svc, alerts: alerts, metrics: metricsStore, executor: executor,
		prober: prober, notifier: notifier, escalation: escalation, deployments: deployments, clock: clock,
	}
}

func defaultRecoveryConfig() config.RecoveryConfig {
	return config.RecoveryConfig{
		Enabled:                 true,
		MaxConcurrentRecoveries: 5,
		GlobalCooldownSeconds:   0,
		HistoryLimit:            1000,
		HistoryRetentionDays:    7,
		QueueSize:               100,
		MonitorIntervalSeconds:  30,
		ValidationDelaySeconds:  0,
		MaintenanceIntervalSecs: 60,
	}
}

func (f *recoveryFixture) recordMetric(t *testing.T, name string, value float64) {
	t.Helper()
	err := f.metrics.Record(context.Background(), storage.MetricPoint{
		Name: name, Value: value, Timestamp: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("record metric: %v", err)
	}
}

func (f *recoveryFixture) memoryAlert(t *testing.T, id string, value float64) *models.Alert {
	t.Helper()
	alert := &models.Alert{
		ID:           id,
		Type:         "high_memory_usage",
		Severity:     models.SeverityHigh,
		Component:    "api-server",
		Message:      "memory climbing",
		Status:       models.AlertActive,
		Metric:       "memory_usage",
		CurrentValue: value,
		Threshold:    85,
		CreatedAt:    f.clock.Now(),
	}
	if err := f.alerts.Create(context.Background(), alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}
	return alert
}

func TestRecoveryResolvesAlertWhenValidationPasses(t *testing.T) {
	f := newRecoveryFixture(t, defaultRecoveryConfig())
	ctx := context.Background()

	// The remediation works: post-step metric readings are back under
	// threshold.
	f.recordMetric(t, "memory_usage", 70)
	alert := f.memoryAlert(t, "alert-1", 92)

	attempt, queued, err := f.svc.TriggerRecovery(ctx, alert)
	if err != nil {
		t.Fatalf("TriggerRecovery failed: %v", err)
	}
	if queued {
		t.Fatal("should execute immediately")
	}
	if attempt == nil || attempt.Status != models.AttemptSuccess {
		t.Fatalf("expected successful attempt, got %+v", attempt)
	}

	if f.executor.callCount("clear_cache:application") != 1 {
		t.Error("immediate phase should have cleared the cache")
	}
	if f.executor.callCount("restart_service:api-server") != 0 {
		t.Error("fallback must not run when validation passes")
	}

	resolved, err := f.alerts.Get(ctx, alert.ID)
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if resolved.Status != models.AlertResolved || resolved.ResolvedBy != "auto-recovery" {
		t.Errorf("alert should be auto-resolved, got %+v", resolved)
	}
}

func TestRecoveryFallsBackThenEscalates(t *testing.T) {
	f := newRecoveryFixture(t, defaultRecoveryConfig())
	ctx := context.Background()

	// Metric stays hot: the clear-cache success condition and both
	// validations fail, so the attempt runs every phase and escalates.
	f.recordMetric(t, "memory_usage", 92)
	alert := f.memoryAlert(t, "alert-2", 92)

	attempt, _, err := f.svc.TriggerRecovery(ctx, alert)
	if err != nil {
		t.Fatalf("TriggerRecovery failed: %v", err)
	}
	if attempt.Status != models.AttemptFailed {
		t.Fatalf("expected failed attempt, got %s", attempt.Status)
	}

	phases := map[models.RecoveryPhase]int{}
	for _, exec := range attempt.StepsExecuted {
		phases[exec.Phase]++
	}
	if phases[models.PhaseImmediate] != 1 {
		t.Errorf("immediate phase aborts on first failed step, got %d steps", phases[models.PhaseImmediate])
	}
	if phases[models.PhaseFallback] != 1 {
		t.Errorf("expected fallback to run, got %d steps", phases[models.PhaseFallback])
	}
	if phases[models.PhaseEscalation] != 2 {
		t.Errorf("escalation steps run to completion, got %d steps", phases[models.PhaseEscalation])
	}

	// Exactly one escalation opened for the alert.
	if active := f.escalation.GetActiveEscalations(); len(active) != 1 {
		t.Fatalf("expected exactly one escalation, got %d", len(active))
	}

	// Alert stays unresolved.
	got, _ := f.alerts.Get(ctx, alert.ID)
	if got.Status == models.AlertResolved {
		t.Error("failed recovery must not resolve the alert")
	}
}

func TestNoActionForUnmatchedAlert(t *testing.T) {
	f := newRecoveryFixture(t, defaultRecoveryConfig())

	alert := &models.Alert{
		ID: "alert-low", Type: "high_memory_usage", Severity: models.SeverityLow,
		Metric: "memory_usage", CurrentValue: 92, Status: models.AlertActive, CreatedAt: f.clock.Now(),
	}
	attempt, queued, err := f.svc.TriggerRecovery(context.Background(), alert)
	if err != nil || attempt != nil || queued {
		t.Fatalf("severity mismatch should do nothing, got %v %v %v", attempt, queued, err)
	}

	// Below-threshold measurements do not match either.
	below := f.memoryAlert(t, "alert-cool", 60)
	attempt, _, _ = f.svc.TriggerRecovery(context.Background(), below)
	if attempt != nil {
		t.Fatal("value under threshold should not trigger recovery")
	}
}

func TestPerActionCooldownSkipsRetrigger(t *testing.T) {
	f := newRecoveryFixture(t, defaultRecoveryConfig())
	ctx := context.Background()

	f.recordMetric(t, "memory_usage", 70)
	f.svc.TriggerRecovery(ctx, f.memoryAlert(t, "alert-a", 92))
	if len(f.svc.GetHistory()) != 1 {
		t.Fatal("first trigger should execute")
	}

	// Same action within its 10 minute cooldown is skipped outright.
	attempt, queued, _ := f.svc.TriggerRecovery(ctx, f.memoryAlert(t, "alert-b", 93))
	if attempt != nil || queued {
		t.Fatal("cooldown should skip, not queue")
	}

	f.clock.Advance(11 * time.Minute)
	f.recordMetric(t, "memory_usage", 70)
	attempt, _, _ = f.svc.TriggerRecovery(ctx, f.memoryAlert(t, "alert-c", 94))
	if attempt == nil {
		t.Fatal("cooldown expired, trigger should execute")
	}
}

func TestGlobalCooldownQueuesAndDrains(t *testing.T) {
	cfg := defaultRecoveryConfig()
	cfg.GlobalCooldownSeconds = 300
	f := newRecoveryFixture(t, cfg)
	ctx := context.Background()

	f.recordMetric(t, "memory_usage", 70)
	f.recordMetric(t, "disk_usage", 95)

	if attempt, _, _ := f.svc.TriggerRecovery(ctx, f.memoryAlert(t, "alert-mem", 92)); attempt == nil {
		t.Fatal("first trigger should execute")
	}

	diskAlert := &models.Alert{
		ID: "alert-disk", Type: "disk_space_full", Severity: models.SeverityCritical,
		Component: "system", Status: models.AlertActive,
		Metric: "disk_usage", CurrentValue: 95, Threshold: 90, CreatedAt: f.clock.Now(),
	}
	if err := f.alerts.Create(ctx, diskAlert); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	attempt, queued, _ := f.svc.TriggerRecovery(ctx, diskAlert)
	if attempt != nil || !queued {
		t.Fatal("second trigger inside the global cooldown should queue")
	}

	// Still cooling down: the queue does not drain.
	f.svc.ProcessRecoveryQueue(ctx)
	if len(f.svc.GetHistory()) != 1 {
		t.Fatal("queue must not drain during the global cooldown")
	}

	f.clock.Advance(301 * time.Second)
	f.svc.ProcessRecoveryQueue(ctx)
	if len(f.svc.GetHistory()) != 2 {
		t.Fatalf("expected queued recovery to execute, history has %d", len(f.svc.GetHistory()))
	}
}

func TestQueueIsBounded(t *testing.T) {
	cfg := defaultRecoveryConfig()
	cfg.GlobalCooldownSeconds = 300
	cfg.QueueSize = 1
	f := newRecoveryFixture(t, cfg)
	ctx := context.Background()

	f.recordMetric(t, "memory_usage", 70)
	f.svc.TriggerRecovery(ctx, f.memoryAlert(t, "alert-1", 92))

	mk := func(id, typ string, sev models.AlertSeverity, metric string, value, threshold float64) *models.Alert {
		a := &models.Alert{
			ID: id, Type: typ, Severity: sev, Status: models.AlertActive,
			Metric: metric, CurrentValue: value, Threshold: threshold, CreatedAt: f.clock.Now(),
		}
		f.alerts.Create(ctx, a)
		return a
	}

	_, queued, _ := f.svc.TriggerRecovery(ctx, mk("alert-disk", "disk_space_full", models.SeverityCritical, "disk_usage", 95, 90))
	if !queued {
		t.Fatal("first overflow should queue")
	}
	_, queued, _ = f.svc.TriggerRecovery(ctx, mk("alert-rt", "high_response_time", models.SeverityHigh, "response_time", 2500, 2000))
	if queued {
		t.Fatal("full queue should drop the request")
	}
}

func TestMonitorActiveAlertsTriggersRecovery(t *testing.T) {
	f := newRecoveryFixture(t, defaultRecoveryConfig())
	ctx := context.Background()

	f.recordMetric(t, "memory_usage", 70)
	f.memoryAlert(t, "alert-monitored", 92)

	f.svc.MonitorActiveAlerts(ctx)
	history := f.svc.GetHistory()
	if len(history) != 1 {
		t.Fatalf("monitor tick should have recovered the alert, history has %d", len(history))
	}
	if history[0].AlertID != "alert-monitored" {
		t.Errorf("unexpected alert id: %s", history[0].AlertID)
	}

	// Resolved alerts are left alone on the next tick.
	f.svc.MonitorActiveAlerts(ctx)
	if len(f.svc.GetHistory()) != 1 {
		t.Error("resolved alert must not re-trigger")
	}
}

func TestDeploymentFailureAlertRollsBack(t *testing.T) {
	f := newRecoveryFixture(t, defaultRecoveryConfig())
	ctx := context.Background()

	d, err := f.deployments.TrackDeployment(ctx, &models.Deployment{Version: "v3.0.0"})
	if err != nil {
		t.Fatalf("TrackDeployment failed: %v", err)
	}

	alert := &models.Alert{
		ID: "alert-deploy", Type: "deployment_failure", Severity: models.SeverityCritical,
		Component: "api-server", Message: "health checks failing after deploy",
		Status: models.AlertActive, CreatedAt: f.clock.Now(),
	}
	if err := f.alerts.Create(ctx, alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	attempt, _, err := f.svc.TriggerRecovery(ctx, alert)
	if err != nil {
		t.Fatalf("TriggerRecovery failed: %v", err)
	}
	if attempt.Status != models.AttemptSuccess {
		t.Fatalf("expected success, got %s (steps: %+v)", attempt.Status, attempt.StepsExecuted)
	}

	rolled, err := f.deployments.GetDeployment(d.ID)
	if err != nil {
		t.Fatalf("GetDeployment failed: %v", err)
	}
	if rolled.Status != models.DeploymentRolledBack {
		t.Errorf("expected rolled_back deployment, got %s", rolled.Status)
	}
}

func TestSystemHealthCheckRaisesAlerts(t *testing.T) {
	f := newRecoveryFixture(t, defaultRecoveryConfig())
	ctx := context.Background()

	f.recordMetric(t, "memory_usage", 95)
	f.svc.PerformSystemHealthCheck(ctx)

	alerts, err := f.alerts.ListUnresolved(ctx)
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Type != "high_memory_usage" {
		t.Fatalf("expected one high_memory_usage alert, got %v", alerts)
	}

	// No duplicate while the first alert is open.
	f.svc.PerformSystemHealthCheck(ctx)
	alerts, _ = f.alerts.ListUnresolved(ctx)
	if len(alerts) != 1 {
		t.Errorf("expected no duplicate alert, got %d", len(alerts))
	}
}

func TestTestRecoveryActionDryRun(t *testing.T) {
	f := newRecoveryFixture(t, defaultRecoveryConfig())
	ctx := context.Background()
	alert := f.memoryAlert(t, "alert-dry", 92)

	attempt, err := f.svc.TestRecoveryAction(ctx, "high-memory-usage", alert.ID)
	if err != nil {
		t.Fatalf("TestRecoveryAction failed: %v", err)
	}
	if attempt.Status != models.AttemptSuccess {
		t.Errorf("dry run reports success, got %s", attempt.Status)
	}
	if len(attempt.StepsExecuted) != 5 {
		t.Errorf("dry run lists every step of every phase, got %d", len(attempt.StepsExecuted))
	}
	if len(f.executor.calls) != 0 {
		t.Errorf("dry run must not execute anything, executor saw %v", f.executor.calls)
	}

	if _, err := f.svc.TestRecoveryAction(ctx, "nope", alert.ID); err == nil {
		t.Fatal("unknown action should error")
	}
	if _, err := f.svc.TestRecoveryAction(ctx, "high-memory-usage", "nope"); err == nil {
		t.Fatal("unknown alert should error")
	}
}

func TestRecoveryStats(t *testing.T) {
	f := newRecoveryFixture(t, defaultRecoveryConfig())
	ctx := context.Background()

	f.recordMetric(t, "memory_usage", 70)
	f.svc.TriggerRecovery(ctx, f.memoryAlert(t, "alert-ok", 92))

	f.clock.Advance(11 * time.Minute)
	f.recordMetric(t, "memory_usage", 92)
	f.svc.TriggerRecovery(ctx, f.memoryAlert(t, "alert-bad", 92))

	stats := f.svc.GetRecoveryStats()
	if stats.TotalAttempts != 2 || stats.SuccessfulAttempts != 1 || stats.FailedAttempts != 1 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.SuccessRate != 0.5 {
		t.Errorf("expected 0.5 success rate, got %f", stats.SuccessRate)
	}
	if len(stats.TopIssues) != 1 || stats.TopIssues[0].AlertType != "high_memory_usage" {
		t.Fatalf("unexpected top issues: %+v", stats.TopIssues)
	}
	if stats.TopIssues[0].Count != 2 {
		t.Errorf("expected 2 attempts for the issue, got %d", stats.TopIssues[0].Count)
	}
}

func TestRecoveryStatus(t *testing.T) {
	f := newRecoveryFixture(t, defaultRecoveryConfig())

	status := f.svc.GetStatus()
	if status.Status != models.HealthHealthy {
		t.Fatalf("expected healthy, got %s", status.Status)
	}
	if status.Details["recovery_actions"] != 5 {
		t.Errorf("expected 5 seeded actions, got %v", status.Details["recovery_actions"])
	}

	f.svc.DisableAutoRecovery()
	if got := f.svc.GetStatus(); got.Status != models.HealthUnhealthy {
		t.Fatalf("disabled engine reports unhealthy, got %s", got.Status)
	}

	// Disabled engine ignores triggers.
	f.recordMetric(t, "memory_usage", 70)
	attempt, _, _ := f.svc.TriggerRecovery(context.Background(), f.memoryAlert(t, "alert-x", 92))
	if attempt != nil {
		t.Fatal("disabled engine must not recover")
	}

	f.svc.EnableAutoRecovery()
	if got := f.svc.GetStatus(); got.Status != models.HealthHealthy {
		t.Fatalf("expected healthy after enable, got %s", got.Status)
	}
}
