package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/platformbuilds/recovery-core/internal/config"
	"github.com/platformbuilds/recovery-core/internal/metrics"
	"github.com/platformbuilds/recovery-core/internal/models"
	"github.com/platformbuilds/recovery-core/internal/scheduler"
	"github.com/platformbuilds/recovery-core/internal/storage"
	"github.com/platformbuilds/recovery-core/pkg/logger"
)

const (
	defaultStepTimeout = 60 * time.Second
	maxAttemptDuration = 10 * time.Minute
)

type queuedRecovery struct {
	AlertID  string
	ActionID string
	QueuedAt time.Time
}

// AutoRecoveryService matches alerts against declarative recovery actions and
// executes their remediation steps in phases. Immediate steps abort the phase
// on first failure; fallback and escalation steps run to completion. An
// attempt that still fails validation after its phases is escalated for
// manual intervention exactly once.
type AutoRecoveryService struct {
	cfg         config.RecoveryConfig
	alerts      storage.AlertStore
	metricsRead storage.MetricsReader
	executor    ActionExecutor
	prober      ServiceProber
	escalation  *IncidentEscalationService
	deployments *DeploymentMonitoringService
	clock       scheduler.Clock
	logger      logger.Logger

	mu                  sync.RWMutex
	enabled             bool
	actions             []models.RecoveryAction
	activeAttempts      map[string]*models.RecoveryAttempt
	activeByAlert       map[string]string
	lastAttemptByAction map[string]time.Time
	lastRecoveryTime    time.Time
	queue               []queuedRecovery
	history             []models.RecoveryAttempt
	selfCheckIssues     []string
}

func NewAutoRecoveryService(
	cfg config.RecoveryConfig,
	alerts storage.AlertStore,
	metricsReader storage.MetricsReader,
	executor ActionExecutor,
	prober ServiceProber,
	escalation *IncidentEscalationService,
	deployments *DeploymentMonitoringService,
	clock scheduler.Clock,
	log logger.Logger,
) *AutoRecoveryService {
	s := &AutoRecoveryService{
		cfg:                 cfg,
		alerts:              alerts,
		metricsRead:         metricsReader,
		executor:            executor,
		prober:              prober,
		escalation:          escalation,
		deployments:         deployments,
		clock:               clock,
		logger:              log,
		enabled:             cfg.Enabled,
		activeAttempts:      make(map[string]*models.RecoveryAttempt),
		activeByAlert:       make(map[string]string),
		lastAttemptByAction: make(map[string]time.Time),
	}
	s.initializeDefaultActions()
	return s
}

/* ---------------------------- default actions ---------------------------- */

// Actions are evaluated in declaration order; the first applicable one wins.
func (s *AutoRecoveryService) initializeDefaultActions() {
	s.actions = []models.RecoveryAction{
		{
			ID:       "high-memory-usage",
			Name:     "High Memory Usage Recovery",
			Severity: models.SeverityHigh,
			Conditions: models.RecoveryConditions{
				MetricThresholds: []models.MetricThreshold{{Metric: "memory_usage", Threshold: 85}},
				AlertTypes:       []string{"high_memory_usage", "memory_alert"},
			},
			Actions: models.RecoveryActions{
				Immediate: []models.RecoveryStep{
					{Type: models.StepClearCache, Target: "application", TimeoutSeconds: 30,
						SuccessCondition: "metric_threshold:memory_usage:lt:85"},
					{Type: models.StepExecuteScript, Target: "system", TimeoutSeconds: 60,
						Parameters: map[string]string{"script": "force_gc"}},
				},
				Fallback: []models.RecoveryStep{
					{Type: models.StepRestartService, Target: "api-server", TimeoutSeconds: 120, RetryCount: 1,
						SuccessCondition: "service_status:api-server"},
				},
				Escalation: []models.RecoveryStep{
					{Type: models.StepScaleResources, Target: "api-server", TimeoutSeconds: 60,
						Parameters: map[string]string{"replicas": "2"}},
					{Type: models.StepNotifyTeam, Target: "engineering", TimeoutSeconds: 30},
				},
			},
			MaxRetries:            3,
			CooldownPeriodMinutes: 10,
			AutoExecute:           true,
		},
		{
			ID:       "high-response-time",
			Name:     "High Response Time Recovery",
			Severity: models.SeverityHigh,
			Conditions: models.RecoveryConditions{
				MetricThresholds: []models.MetricThreshold{{Metric: "response_time", Threshold: 2000}},
				AlertTypes:       []string{"high_response_time", "slow_requests"},
			},
			Actions: models.RecoveryActions{
				Immediate: []models.RecoveryStep{
					{Type: models.StepClearCache, Target: "api-responses", TimeoutSeconds: 30},
					{Type: models.StepResetConnections, Target: "postgresql", TimeoutSeconds: 60,
						SuccessCondition: "service_status:postgresql"},
				},
				Fallback: []models.RecoveryStep{
					{Type: models.StepScaleResources, Target: "api-server", TimeoutSeconds: 60,
						Parameters: map[string]string{"replicas": "2"}},
				},
				Escalation: []models.RecoveryStep{
					{Type: models.StepNotifyTeam, Target: "engineering", TimeoutSeconds: 30},
				},
			},
			MaxRetries:            2,
			CooldownPeriodMinutes: 15,
			AutoExecute:           true,
		},
		{
			ID:       "database-connection-failure",
			Name:     "Database Connection Recovery",
			Severity: models.SeverityCritical,
			Conditions: models.RecoveryConditions{
				AlertTypes: []string{"database_connection_failure", "database_unavailable"},
			},
			Actions: models.RecoveryActions{
				Immediate: []models.RecoveryStep{
					{Type: models.StepResetConnections, Target: "postgresql", TimeoutSeconds: 60, RetryCount: 2,
						SuccessCondition: "service_status:postgresql"},
				},
				Fallback: []models.RecoveryStep{
					{Type: models.StepRestartService, Target: "postgresql", TimeoutSeconds: 180,
						SuccessCondition: "service_status:postgresql"},
				},
				Escalation: []models.RecoveryStep{
					{Type: models.StepIsolateComponent, Target: "postgresql", TimeoutSeconds: 30},
					{Type: models.StepNotifyTeam, Target: "engineering", TimeoutSeconds: 30},
				},
			},
			MaxRetries:            3,
			CooldownPeriodMinutes: 5,
			AutoExecute:           true,
		},
		{
			ID:       "disk-space-full",
			Name:     "Disk Space Recovery",
			Severity: models.SeverityCritical,
			Conditions: models.RecoveryConditions{
				MetricThresholds: []models.MetricThreshold{{Metric: "disk_usage", Threshold: 90}},
				AlertTypes:       []string{"disk_space_full", "disk_usage_high"},
			},
			Actions: models.RecoveryActions{
				Immediate: []models.RecoveryStep{
					{Type: models.StepExecuteScript, Target: "system", TimeoutSeconds: 120,
						Parameters:       map[string]string{"script": "cleanup_logs"},
						SuccessCondition: "metric_threshold:disk_usage:lt:90"},
					{Type: models.StepExecuteScript, Target: "system", TimeoutSeconds: 120,
						Parameters: map[string]string{"script": "cleanup_temp"}},
				},
				Escalation: []models.RecoveryStep{
					{Type: models.StepNotifyTeam, Target: "engineering", TimeoutSeconds: 30},
				},
			},
			MaxRetries:            2,
			CooldownPeriodMinutes: 30,
			AutoExecute:           true,
		},
		{
			ID:       "deployment-failure",
			Name:     "Deployment Failure Recovery",
			Severity: models.SeverityCritical,
			Conditions: models.RecoveryConditions{
				AlertTypes: []string{"deployment_failure", "deployment_health_check_failed"},
			},
			Actions: models.RecoveryActions{
				Immediate: []models.RecoveryStep{
					{Type: models.StepRollbackDeployment, Target: "latest", TimeoutSeconds: 300},
				},
				Escalation: []models.RecoveryStep{
					{Type: models.StepNotifyTeam, Target: "engineering", TimeoutSeconds: 30},
				},
			},
			MaxRetries:            1,
			CooldownPeriodMinutes: 10,
			AutoExecute:           true,
		},
	}
}

// RegisterAction adds a custom recovery action behind the defaults.
func (s *AutoRecoveryService) RegisterAction(action models.RecoveryAction) error {
	if action.ID == "" {
		return fmt.Errorf("action id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.actions {
		if existing.ID == action.ID {
			return fmt.Errorf("action already registered: %s", action.ID)
		}
	}
	s.actions = append(s.actions, action)
	return nil
}

/* ------------------------------ triggering ------------------------------ */

// TriggerRecovery matches the alert against registered actions and either
// executes the first applicable one, queues it when the engine is saturated,
// or does nothing when no action applies. The boolean reports queueing.
func (s *AutoRecoveryService) TriggerRecovery(ctx context.Context, alert *models.Alert) (*models.RecoveryAttempt, bool, error) {
	s.mu.RLock()
	enabled := s.enabled
	s.mu.RUnlock()
	if !enabled {
		return nil, false, nil
	}

	action := s.findApplicableAction(alert)
	if action == nil {
		s.logger.Debug("No recovery action applicable", "alert", alert.ID, "type", alert.Type)
		return nil, false, nil
	}
	if !action.AutoExecute {
		s.logger.Info("Matched action requires manual execution", "alert", alert.ID, "action", action.ID)
		return nil, false, nil
	}

	now := s.clock.Now()

	s.mu.Lock()
	if _, running := s.activeByAlert[alert.ID]; running {
		s.mu.Unlock()
		return nil, false, nil
	}
	if last, ok := s.lastAttemptByAction[action.ID]; ok {
		cooldown := time.Duration(action.CooldownPeriodMinutes) * time.Minute
		if now.Sub(last) < cooldown {
			s.mu.Unlock()
			s.logger.Debug("Recovery action in cooldown", "action", action.ID, "alert", alert.ID)
			return nil, false, nil
		}
	}
	if !s.hasCapacityLocked(now) {
		queued := s.enqueueLocked(alert.ID, action.ID, now)
		s.mu.Unlock()
		if queued {
			s.logger.Info("Recovery queued", "alert", alert.ID, "action", action.ID)
		} else {
			s.logger.Warn("Recovery queue full, dropping request", "alert", alert.ID, "action", action.ID)
		}
		return nil, queued, nil
	}
	s.mu.Unlock()

	attempt := s.executeRecovery(ctx, alert, action)
	return attempt, false, nil
}

// findApplicableAction returns the first action whose conditions all hold.
func (s *AutoRecoveryService) findApplicableAction(alert *models.Alert) *models.RecoveryAction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.actions {
		action := &s.actions[i]
		if action.Severity != alert.Severity {
			continue
		}
		if len(action.Conditions.AlertTypes) > 0 && !containsString(action.Conditions.AlertTypes, alert.Type) {
			continue
		}
		if !metricThresholdsReached(action.Conditions.MetricThresholds, alert) {
			continue
		}
		copied := *action
		return &copied
	}
	return nil
}

// metricThresholdsReached requires the alert's measurement to have reached
// every threshold declared for its metric. Thresholds for other metrics are
// not checkable from the alert and fail the condition.
func metricThresholdsReached(thresholds []models.MetricThreshold, alert *models.Alert) bool {
	for _, t := range thresholds {
		if t.Metric != alert.Metric {
			return false
		}
		if alert.CurrentValue < t.Threshold {
			return false
		}
	}
	return true
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (s *AutoRecoveryService) hasCapacityLocked(now time.Time) bool {
	if len(s.activeAttempts) >= s.cfg.MaxConcurrentRecoveries {
		return false
	}
	cooldown := time.Duration(s.cfg.GlobalCooldownSeconds) * time.Second
	if !s.lastRecoveryTime.IsZero() && now.Sub(s.lastRecoveryTime) < cooldown {
		return false
	}
	return true
}

func (s *AutoRecoveryService) enqueueLocked(alertID, actionID string, now time.Time) bool {
	for _, q := range s.queue {
		if q.AlertID == alertID && q.ActionID == actionID {
			return true
		}
	}
	if len(s.queue) >= s.cfg.QueueSize {
		return false
	}
	s.queue = append(s.queue, queuedRecovery{AlertID: alertID, ActionID: actionID, QueuedAt: now})
	return true
}

/* ------------------------------- execution ------------------------------- */

func (s *AutoRecoveryService) executeRecovery(ctx context.Context, alert *models.Alert, action *models.RecoveryAction) *models.RecoveryAttempt {
	now := s.clock.Now()
	attempt := &models.RecoveryAttempt{
		ID:        fmt.Sprintf("recovery_%s", uuid.New().String()[:8]),
		AlertID:   alert.ID,
		AlertType: alert.Type,
		ActionID:  action.ID,
		StartTime: now,
		Status:    models.AttemptInProgress,
	}

	s.mu.Lock()
	s.activeAttempts[attempt.ID] = attempt
	s.activeByAlert[alert.ID] = attempt.ID
	s.lastAttemptByAction[action.ID] = now
	s.lastRecoveryTime = now
	s.mu.Unlock()
	metrics.ActiveRecoveries.Inc()

	s.logger.Info("Recovery started", "attempt", attempt.ID, "alert", alert.ID, "action", action.ID)

	validated := false
	escalated := false

	immediateOK := s.runPhase(ctx, attempt, alert, models.PhaseImmediate, action.Actions.Immediate, true)
	if immediateOK {
		validated = s.validateRecovery(ctx, alert)
	}

	if !validated && len(action.Actions.Fallback) > 0 {
		s.logger.Warn("Immediate recovery insufficient, running fallback", "attempt", attempt.ID)
		if s.runPhase(ctx, attempt, alert, models.PhaseFallback, action.Actions.Fallback, false) {
			validated = s.validateRecovery(ctx, alert)
		}
	}

	if validated {
		attempt.Status = models.AttemptSuccess
		attempt.Result = "Recovery validated, alert resolved"
		s.resolveAlert(ctx, alert)
	} else {
		s.runPhase(ctx, attempt, alert, models.PhaseEscalation, action.Actions.Escalation, false)
		s.escalateToManualIntervention(ctx, alert, attempt, &escalated)
		attempt.Status = models.AttemptFailed
		attempt.Result = "Recovery failed, escalated for manual intervention"
	}

	s.finalizeAttempt(attempt, action)
	return attempt
}

// runPhase executes a phase's steps in order. When abortOnFailure is set the
// phase stops at the first failed step; otherwise every step runs. Returns
// true when all executed steps succeeded.
func (s *AutoRecoveryService) runPhase(ctx context.Context, attempt *models.RecoveryAttempt, alert *models.Alert, phase models.RecoveryPhase, steps []models.RecoveryStep, abortOnFailure bool) bool {
	allOK := len(steps) > 0
	for _, step := range steps {
		exec := s.executeStep(ctx, alert, phase, step)

		s.mu.Lock()
		attempt.StepsExecuted = append(attempt.StepsExecuted, exec)
		s.mu.Unlock()

		if !exec.Success {
			allOK = false
			s.logger.Error("Recovery step failed",
				"attempt", attempt.ID, "phase", phase, "step", step.Type, "target", step.Target, "error", exec.Error)
			if abortOnFailure {
				return false
			}
		}
	}
	return allOK
}

func (s *AutoRecoveryService) executeStep(ctx context.Context, alert *models.Alert, phase models.RecoveryPhase, step models.RecoveryStep) models.StepExecution {
	exec := models.StepExecution{Step: step, Phase: phase, StartTime: s.clock.Now()}

	timeout := time.Duration(step.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var output string
	err := retry.Do(
		func() error {
			out, runErr := s.runStepAction(stepCtx, alert, step)
			if runErr != nil {
				return runErr
			}
			output = out
			return nil
		},
		retry.Attempts(uint(step.RetryCount)+1),
		retry.Delay(time.Second),
		retry.Context(stepCtx),
		retry.LastErrorOnly(true),
	)

	if err == nil && step.SuccessCondition != "" {
		ok, condErr := s.checkSuccessCondition(stepCtx, step.SuccessCondition)
		if condErr != nil {
			err = condErr
		} else if !ok {
			err = fmt.Errorf("success condition not met: %s", step.SuccessCondition)
		}
	}

	exec.EndTime = s.clock.Now()
	exec.Output = output
	if err != nil {
		exec.Error = err.Error()
	} else {
		exec.Success = true
	}
	return exec
}

// runStepAction dispatches one step to its remediation primitive. An unknown
// step type is an error, never a silent no-op.
func (s *AutoRecoveryService) runStepAction(ctx context.Context, alert *models.Alert, step models.RecoveryStep) (string, error) {
	switch step.Type {
	case models.StepRestartService:
		return s.executor.RestartService(ctx, step.Target)
	case models.StepClearCache:
		return s.executor.ClearCache(ctx, step.Target)
	case models.StepResetConnections:
		return s.executor.ResetConnections(ctx, step.Target)
	case models.StepScaleResources:
		return s.executor.ScaleResources(ctx, step.Target, step.Parameters)
	case models.StepRollbackDeployment:
		target := step.Target
		if target == "" {
			target = "latest"
		}
		reason := fmt.Sprintf("automated recovery for alert %s", alert.ID)
		return s.deployments.RollbackDeployment(ctx, target, reason, true)
	case models.StepIsolateComponent:
		return s.executor.IsolateComponent(ctx, step.Target)
	case models.StepExecuteScript:
		return s.executor.ExecuteScript(ctx, step.Target, step.Parameters)
	case models.StepNotifyTeam:
		return s.escalation.NotifyTeam(ctx, step.Target, map[string]string{
			"alert_id": alert.ID,
			"message":  alert.Message,
		})
	default:
		return "", fmt.Errorf("unknown recovery step type: %s", step.Type)
	}
}

// checkSuccessCondition evaluates a step's declarative postcondition.
func (s *AutoRecoveryService) checkSuccessCondition(ctx context.Context, condition string) (bool, error) {
	switch {
	case strings.HasPrefix(condition, "metric_threshold:"):
		parts := strings.SplitN(condition, ":", 4)
		if len(parts) != 4 {
			return false, fmt.Errorf("malformed metric_threshold condition: %s", condition)
		}
		threshold, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return false, fmt.Errorf("malformed threshold in condition %s: %w", condition, err)
		}
		value, err := s.metricsRead.LatestValue(ctx, parts[1])
		if err != nil {
			return false, fmt.Errorf("read metric %s: %w", parts[1], err)
		}
		switch parts[2] {
		case "lt":
			return value < threshold, nil
		case "gt":
			return value > threshold, nil
		case "eq":
			return value == threshold, nil
		default:
			return false, fmt.Errorf("unknown comparator in condition %s", condition)
		}
	case strings.HasPrefix(condition, "service_status:"):
		service := strings.TrimPrefix(condition, "service_status:")
		return s.prober.IsAvailable(ctx, service), nil
	case strings.HasPrefix(condition, "http_response:"):
		url := strings.TrimPrefix(condition, "http_response:")
		return s.prober.ProbeURL(ctx, url) == nil, nil
	default:
		return false, fmt.Errorf("unknown success condition: %s", condition)
	}
}

/* ------------------------------ validation ------------------------------ */

// validateRecovery waits for the system to settle, then re-checks the metric
// that tripped the alert. Alerts without a measurable metric validate on step
// success alone.
func (s *AutoRecoveryService) validateRecovery(ctx context.Context, alert *models.Alert) bool {
	s.wait(ctx, time.Duration(s.cfg.ValidationDelaySeconds)*time.Second)
	if ctx.Err() != nil {
		return false
	}

	if alert.Metric == "" {
		return true
	}
	value, err := s.metricsRead.LatestValue(ctx, alert.Metric)
	if err != nil {
		s.logger.Warn("Validation metric unavailable", "alert", alert.ID, "metric", alert.Metric, "error", err)
		return false
	}
	// The alert fired when the value reached its threshold; recovery holds
	// once the value is back under it.
	recovered := value < alert.Threshold
	s.logger.Info("Recovery validation",
		"alert", alert.ID, "metric", alert.Metric, "value", value, "threshold", alert.Threshold, "recovered", recovered)
	return recovered
}

func (s *AutoRecoveryService) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := s.clock.NewTicker(d)
	defer t.Stop()
	select {
	case <-t.C():
	case <-ctx.Done():
	}
}

func (s *AutoRecoveryService) resolveAlert(ctx context.Context, alert *models.Alert) {
	now := s.clock.Now()
	alert.Status = models.AlertResolved
	alert.ResolvedAt = &now
	alert.ResolvedBy = "auto-recovery"
	if err := s.alerts.Update(ctx, alert); err != nil {
		s.logger.Error("Failed to resolve alert after recovery", "alert", alert.ID, "error", err)
	}
}

func (s *AutoRecoveryService) escalateToManualIntervention(ctx context.Context, alert *models.Alert, attempt *models.RecoveryAttempt, escalated *bool) {
	if *escalated {
		return
	}
	*escalated = true
	s.logger.Warn("Recovery exhausted, escalating for manual intervention", "attempt", attempt.ID, "alert", alert.ID)
	s.escalation.EscalateAlert(ctx, alert, models.TriggerAutoRecoveryFailure)
}

func (s *AutoRecoveryService) finalizeAttempt(attempt *models.RecoveryAttempt, action *models.RecoveryAction) {
	now := s.clock.Now()
	attempt.EndTime = &now

	s.mu.Lock()
	delete(s.activeAttempts, attempt.ID)
	delete(s.activeByAlert, attempt.AlertID)
	s.history = append(s.history, *attempt)
	if len(s.history) > s.cfg.HistoryLimit {
		s.history = s.history[len(s.history)-s.cfg.HistoryLimit:]
	}
	s.mu.Unlock()

	metrics.ActiveRecoveries.Dec()
	success := attempt.Status == models.AttemptSuccess
	metrics.RecoveryAttemptsTotal.WithLabelValues(action.ID, lastPhase(attempt), strconv.FormatBool(success)).Inc()
	metrics.RecoveryDuration.WithLabelValues(action.ID).Observe(now.Sub(attempt.StartTime).Seconds())

	s.logger.Info("Recovery finished",
		"attempt", attempt.ID, "alert", attempt.AlertID, "status", attempt.Status,
		"steps", len(attempt.StepsExecuted), "duration", now.Sub(attempt.StartTime))
}

func lastPhase(attempt *models.RecoveryAttempt) string {
	if len(attempt.StepsExecuted) == 0 {
		return string(models.PhaseImmediate)
	}
	return string(attempt.StepsExecuted[len(attempt.StepsExecuted)-1].Phase)
}

/* ------------------------------- poll loops ------------------------------ */

// MonitorActiveAlerts triggers recovery for unresolved active alerts.
func (s *AutoRecoveryService) MonitorActiveAlerts(ctx context.Context) {
	s.mu.RLock()
	enabled := s.enabled
	s.mu.RUnlock()
	if !enabled {
		return
	}

	alerts, err := s.alerts.ListUnresolved(ctx)
	if err != nil {
		s.logger.Error("Failed to list unresolved alerts", "error", err)
		return
	}
	for _, alert := range alerts {
		if alert.Status != models.AlertActive {
			continue
		}
		if _, _, err := s.TriggerRecovery(ctx, alert); err != nil {
			s.logger.Error("Recovery trigger failed", "alert", alert.ID, "error", err)
		}
	}
}

// ProcessRecoveryQueue drains queued recoveries while capacity allows.
func (s *AutoRecoveryService) ProcessRecoveryQueue(ctx context.Context) {
	for {
		s.mu.Lock()
		if !s.enabled || len(s.queue) == 0 || !s.hasCapacityLocked(s.clock.Now()) {
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		alert, err := s.alerts.Get(ctx, next.AlertID)
		if err != nil {
			s.logger.Warn("Queued alert no longer exists", "alert", next.AlertID)
			continue
		}
		if alert.Status == models.AlertResolved {
			continue
		}
		action := s.actionByID(next.ActionID)
		if action == nil {
			continue
		}
		s.logger.Info("Executing queued recovery", "alert", alert.ID, "action", action.ID)
		s.executeRecovery(ctx, alert, action)
	}
}

// PerformSystemHealthCheck samples core metrics and raises alerts for
// breaches so the recovery loop can pick them up.
func (s *AutoRecoveryService) PerformSystemHealthCheck(ctx context.Context) {
	s.mu.RLock()
	enabled := s.enabled
	s.mu.RUnlock()
	if !enabled {
		return
	}

	checks := []struct {
		metric    string
		threshold float64
		alertType string
		severity  models.AlertSeverity
		component string
	}{
		{"memory_usage", 90, "high_memory_usage", models.SeverityHigh, "api-server"},
		{"disk_usage", 90, "disk_space_full", models.SeverityCritical, "system"},
		{"response_time", 2000, "high_response_time", models.SeverityHigh, "api-server"},
	}

	unresolved, err := s.alerts.ListUnresolved(ctx)
	if err != nil {
		s.logger.Error("Health check could not list alerts", "error", err)
		return
	}
	open := make(map[string]bool, len(unresolved))
	for _, a := range unresolved {
		open[a.Type] = true
	}

	for _, check := range checks {
		value, err := s.metricsRead.LatestValue(ctx, check.metric)
		if err != nil || value < check.threshold {
			continue
		}
		if open[check.alertType] {
			continue
		}
		alert := &models.Alert{
			ID:           fmt.Sprintf("alert_%s", uuid.New().String()[:8]),
			Type:         check.alertType,
			Severity:     check.severity,
			Component:    check.component,
			Message:      fmt.Sprintf("%s at %.1f exceeds threshold %.1f", check.metric, value, check.threshold),
			Status:       models.AlertActive,
			Metric:       check.metric,
			CurrentValue: value,
			Threshold:    check.threshold,
			CreatedAt:    s.clock.Now(),
		}
		if err := s.alerts.Create(ctx, alert); err != nil {
			s.logger.Error("Failed to raise health check alert", "type", check.alertType, "error", err)
			continue
		}
		s.logger.Warn("Health check raised alert", "type", check.alertType, "metric", check.metric, "value", value)
	}
}

// PerformHealthSelfCheck inspects the engine itself: stuck attempts are timed
// out, and saturation is surfaced through GetStatus issues.
func (s *AutoRecoveryService) PerformHealthSelfCheck(ctx context.Context) {
	now := s.clock.Now()
	var issues []string
	var stuck []*models.RecoveryAttempt

	s.mu.Lock()
	for _, attempt := range s.activeAttempts {
		if now.Sub(attempt.StartTime) > maxAttemptDuration {
			stuck = append(stuck, attempt)
		}
	}
	for _, attempt := range stuck {
		attempt.Status = models.AttemptTimeout
		attempt.Result = "Recovery timed out"
		end := now
		attempt.EndTime = &end
		delete(s.activeAttempts, attempt.ID)
		delete(s.activeByAlert, attempt.AlertID)
		s.history = append(s.history, *attempt)
		metrics.ActiveRecoveries.Dec()
	}
	if len(s.queue) > s.cfg.QueueSize/2 {
		issues = append(issues, fmt.Sprintf("recovery queue at %d of %d", len(s.queue), s.cfg.QueueSize))
	}
	s.selfCheckIssues = issues
	s.mu.Unlock()

	for _, attempt := range stuck {
		s.logger.Error("Recovery attempt timed out", "attempt", attempt.ID, "alert", attempt.AlertID)
	}
}

// UpdateRecoveryMetrics refreshes the engine gauges.
func (s *AutoRecoveryService) UpdateRecoveryMetrics(ctx context.Context) {
	s.mu.RLock()
	active := len(s.activeAttempts)
	s.mu.RUnlock()
	metrics.ActiveRecoveries.Set(float64(active))
}

// CleanupOldAttempts drops history beyond the retention window.
func (s *AutoRecoveryService) CleanupOldAttempts(ctx context.Context) {
	cutoff := s.clock.Now().AddDate(0, 0, -s.cfg.HistoryRetentionDays)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.history[:0]
	for _, attempt := range s.history {
		if attempt.StartTime.After(cutoff) {
			kept = append(kept, attempt)
		}
	}
	s.history = kept
}

/* --------------------------- manual operations --------------------------- */

// TestRecoveryAction dry-runs an action against an alert without executing
// any remediation.
func (s *AutoRecoveryService) TestRecoveryAction(ctx context.Context, actionID, alertID string) (*models.RecoveryAttempt, error) {
	action := s.actionByID(actionID)
	if action == nil {
		return nil, fmt.Errorf("recovery action not found: %s", actionID)
	}
	alert, err := s.alerts.Get(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("alert not found: %s", alertID)
	}

	now := s.clock.Now()
	attempt := &models.RecoveryAttempt{
		ID:        fmt.Sprintf("dryrun_%s", uuid.New().String()[:8]),
		AlertID:   alert.ID,
		AlertType: alert.Type,
		ActionID:  action.ID,
		StartTime: now,
		EndTime:   &now,
		Status:    models.AttemptSuccess,
		Result:    "Dry run completed, no steps executed",
	}
	phases := []struct {
		phase models.RecoveryPhase
		steps []models.RecoveryStep
	}{
		{models.PhaseImmediate, action.Actions.Immediate},
		{models.PhaseFallback, action.Actions.Fallback},
		{models.PhaseEscalation, action.Actions.Escalation},
	}
	for _, p := range phases {
		for _, step := range p.steps {
			attempt.StepsExecuted = append(attempt.StepsExecuted, models.StepExecution{
				Step: step, Phase: p.phase, StartTime: now, EndTime: now,
				Success: true, Output: "dry run, step skipped",
			})
		}
	}
	return attempt, nil
}

func (s *AutoRecoveryService) EnableAutoRecovery() {
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()
	s.logger.Info("Auto-recovery enabled")
}

func (s *AutoRecoveryService) DisableAutoRecovery() {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
	s.logger.Warn("Auto-recovery disabled")
}

/* ------------------------------ observation ------------------------------ */

func (s *AutoRecoveryService) actionByID(id string) *models.RecoveryAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.actions {
		if s.actions[i].ID == id {
			copied := s.actions[i]
			return &copied
		}
	}
	return nil
}

func (s *AutoRecoveryService) GetRecoveryActions() []models.RecoveryAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RecoveryAction, len(s.actions))
	copy(out, s.actions)
	return out
}

func (s *AutoRecoveryService) GetActiveRecoveries() []models.RecoveryAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RecoveryAttempt, 0, len(s.activeAttempts))
	for _, attempt := range s.activeAttempts {
		out = append(out, *attempt)
	}
	return out
}

func (s *AutoRecoveryService) GetHistory() []models.RecoveryAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RecoveryAttempt, len(s.history))
	copy(out, s.history)
	return out
}

// GetRecoveryStats aggregates attempt outcomes, including the ten most
// frequent alert types.
func (s *AutoRecoveryService) GetRecoveryStats() models.RecoveryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.RecoveryStats{TopIssues: []models.RecoveryIssueStats{}}
	type agg struct {
		count, success int
		totalSeconds   float64
	}
	byType := make(map[string]*agg)
	var totalSeconds float64

	for i := range s.history {
		attempt := &s.history[i]
		stats.TotalAttempts++
		duration := 0.0
		if attempt.EndTime != nil {
			duration = attempt.EndTime.Sub(attempt.StartTime).Seconds()
		}
		totalSeconds += duration

		a := byType[attempt.AlertType]
		if a == nil {
			a = &agg{}
			byType[attempt.AlertType] = a
		}
		a.count++
		a.totalSeconds += duration

		if attempt.Status == models.AttemptSuccess {
			stats.SuccessfulAttempts++
			a.success++
		} else {
			stats.FailedAttempts++
		}
	}

	if stats.TotalAttempts > 0 {
		stats.SuccessRate = float64(stats.SuccessfulAttempts) / float64(stats.TotalAttempts)
		stats.AverageTime = totalSeconds / float64(stats.TotalAttempts)
	}

	for alertType, a := range byType {
		stats.TopIssues = append(stats.TopIssues, models.RecoveryIssueStats{
			AlertType:   alertType,
			Count:       a.count,
			SuccessRate: float64(a.success) / float64(a.count),
			AverageTime: a.totalSeconds / float64(a.count),
		})
	}
	sort.Slice(stats.TopIssues, func(i, j int) bool {
		if stats.TopIssues[i].Count != stats.TopIssues[j].Count {
			return stats.TopIssues[i].Count > stats.TopIssues[j].Count
		}
		return stats.TopIssues[i].AlertType < stats.TopIssues[j].AlertType
	})
	if len(stats.TopIssues) > 10 {
		stats.TopIssues = stats.TopIssues[:10]
	}
	return stats
}

// GetStatus reports engine health: unhealthy when disabled or saturated,
// degraded when the self check found issues.
func (s *AutoRecoveryService) GetStatus() models.ComponentStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := models.ComponentStatus{
		Status:  models.HealthHealthy,
		Enabled: s.enabled,
		Issues:  []string{},
	}
	if len(s.selfCheckIssues) > 0 {
		status.Status = models.HealthDegraded
		status.Issues = append(status.Issues, s.selfCheckIssues...)
	}
	if !s.enabled {
		status.Status = models.HealthUnhealthy
		status.Issues = append(status.Issues, "auto-recovery is disabled")
	}
	if len(s.activeAttempts) >= s.cfg.MaxConcurrentRecoveries {
		status.Status = models.HealthUnhealthy
		status.Issues = append(status.Issues, "recovery capacity exhausted")
	}

	status.Details = map[string]interface{}{
		"active_recoveries": len(s.activeAttempts),
		"recovery_actions":  len(s.actions),
		"queued":            len(s.queue),
	}
	return status
}
